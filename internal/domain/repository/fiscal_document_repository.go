package repository

import (
	"context"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// FiscalDocumentRepository puerto de persistencia de documentos fiscales.
// Get* devuelve nil, nil cuando no existe.
type FiscalDocumentRepository interface {
	Create(ctx context.Context, doc *entity.FiscalDocument) error
	GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error)
	GetByUUID(ctx context.Context, uuid string) (*entity.FiscalDocument, error)
	// ApplyStamp persiste el resultado del timbrado solo si el documento no tiene UUID
	// (compare-and-set). Devuelve domain.ErrAlreadyStamped si ya lo tenía.
	ApplyStamp(ctx context.Context, doc *entity.FiscalDocument) error
	// SetCancellation enlaza la solicitud de cancelación vigente.
	SetCancellation(ctx context.Context, documentID, cancellationID string) error
}
