package repository

import (
	"context"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// CancellationRepository persistencia de solicitudes de cancelación.
type CancellationRepository interface {
	// Create falla con domain.ErrCancellationInProgress si el documento ya tiene
	// una solicitud en procesando o pendiente.
	Create(ctx context.Context, req *entity.CancellationRequest) error
	Update(ctx context.Context, req *entity.CancellationRequest) error
	GetByID(ctx context.Context, id string) (*entity.CancellationRequest, error)
	// GetActiveByDocument devuelve la solicitud no terminal del documento (nil si no hay).
	GetActiveByDocument(ctx context.Context, documentID string) (*entity.CancellationRequest, error)
}
