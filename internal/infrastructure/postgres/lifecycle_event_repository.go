package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
)

var _ repository.LifecycleEventRepository = (*LifecycleEventRepo)(nil)

// LifecycleEventRepo registro append-only de eventos.
type LifecycleEventRepo struct {
	q Querier
}

// NewLifecycleEventRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLifecycleEventRepository(q Querier) *LifecycleEventRepo {
	return &LifecycleEventRepo{q: q}
}

// Append inserta el evento y asigna su secuencia.
func (r *LifecycleEventRepo) Append(ctx context.Context, ev *entity.LifecycleEvent) error {
	query := `
		INSERT INTO lifecycle_events (id, document_id, event_type, occurred_at, automatic, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING sequence`
	meta := ev.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	err := r.q.QueryRow(ctx, query,
		ev.ID, ev.DocumentID, string(ev.EventType), ev.Timestamp, ev.Automatic, meta,
	).Scan(&ev.Sequence)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: documento %s", domain.ErrNotFound, ev.DocumentID)
		}
		return fmt.Errorf("append lifecycle event: %w", err)
	}
	return nil
}

// ListByDocument eventos del documento en orden de inserción.
func (r *LifecycleEventRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.LifecycleEvent, error) {
	query := `
		SELECT id, sequence, document_id, event_type, occurred_at, automatic, metadata
		FROM lifecycle_events WHERE document_id = $1 ORDER BY sequence`
	rows, err := r.q.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list lifecycle events: %w", err)
	}
	defer rows.Close()

	var list []*entity.LifecycleEvent
	for rows.Next() {
		var (
			ev        entity.LifecycleEvent
			eventType string
		)
		if err := rows.Scan(&ev.ID, &ev.Sequence, &ev.DocumentID, &eventType, &ev.Timestamp, &ev.Automatic, &ev.Metadata); err != nil {
			return nil, fmt.Errorf("scan lifecycle event: %w", err)
		}
		ev.EventType = entity.EventType(eventType)
		list = append(list, &ev)
	}
	return list, rows.Err()
}
