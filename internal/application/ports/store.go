package ports

import (
	"context"

	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
)

// TxRunner ejecuta fn en una transacción con repositorios atados a ella. Si fn
// devuelve error no se persiste nada.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		docRepo repository.FiscalDocumentRepository,
		eventRepo repository.LifecycleEventRepository,
		cancelRepo repository.CancellationRepository,
	) error) error
}

// DocumentLocker garantiza una sola operación fiscal (timbrado o cancelación) por
// documento a la vez, también entre réplicas.
type DocumentLocker interface {
	// Acquire toma el candado o devuelve domain.ErrOperationInFlight si otro lo tiene.
	// release es idempotente.
	Acquire(ctx context.Context, documentID string) (release func(), err error)
}
