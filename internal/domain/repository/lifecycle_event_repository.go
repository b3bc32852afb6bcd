package repository

import (
	"context"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// LifecycleEventRepository registro de eventos; solo inserción y lectura.
type LifecycleEventRepository interface {
	Append(ctx context.Context, event *entity.LifecycleEvent) error
	// ListByDocument devuelve los eventos en orden de inserción.
	ListByDocument(ctx context.Context, documentID string) ([]*entity.LifecycleEvent, error)
}
