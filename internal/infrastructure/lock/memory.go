// Package lock implementa el candado por documento que excluye timbrado y
// cancelación simultáneos.
package lock

import (
	"context"
	"sync"

	"github.com/jhoicas/cartaporte-api/internal/domain"
)

// MemoryLocker candado en proceso; basta con una sola réplica.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker crea el candado en memoria.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

// Acquire no espera: si el documento está tomado devuelve domain.ErrOperationInFlight.
func (l *MemoryLocker) Acquire(_ context.Context, documentID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[documentID]; ok {
		return nil, domain.ErrOperationInFlight
	}
	l.held[documentID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, documentID)
			l.mu.Unlock()
		})
	}, nil
}
