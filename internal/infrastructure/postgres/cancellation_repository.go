package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
)

var _ repository.CancellationRepository = (*CancellationRepo)(nil)

// CancellationRepo solicitudes de cancelación. El índice único parcial
// cancellation_requests_one_active garantiza una sola activa por documento.
type CancellationRepo struct {
	q Querier
}

// NewCancellationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCancellationRepository(q Querier) *CancellationRepo {
	return &CancellationRepo{q: q}
}

const cancellationColumns = `
	id, document_id, uuid, rfc, motivo, COALESCE(folio_sustitucion, ''), estado, requiere_aceptacion,
	COALESCE(acuse, ''), COALESCE(codigo_respuesta, ''), provider, COALESCE(error_message, ''),
	created_at, updated_at`

// Create inserta la solicitud.
func (r *CancellationRepo) Create(ctx context.Context, c *entity.CancellationRequest) error {
	query := `
		INSERT INTO cancellation_requests (id, document_id, uuid, rfc, motivo, folio_sustitucion, estado,
			requiere_aceptacion, acuse, codigo_respuesta, provider, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.DocumentID, c.UUID, c.RFC, c.MotivoCode, nullable(c.FolioSustitucion), string(c.Estado),
		c.RequiereAceptacion, nullable(c.Acuse), nullable(c.CodigoRespuesta), c.Provider, nullable(c.ErrorMessage),
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCancellationInProgress
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: documento %s", domain.ErrNotFound, c.DocumentID)
		}
		return fmt.Errorf("insert cancellation request: %w", err)
	}
	return nil
}

// Update guarda estado, acuse y código de respuesta.
func (r *CancellationRepo) Update(ctx context.Context, c *entity.CancellationRequest) error {
	query := `
		UPDATE cancellation_requests SET estado = $2, requiere_aceptacion = $3, acuse = $4,
			codigo_respuesta = $5, error_message = $6, updated_at = $7
		WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query,
		c.ID, string(c.Estado), c.RequiereAceptacion, nullable(c.Acuse),
		nullable(c.CodigoRespuesta), nullable(c.ErrorMessage), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update cancellation request: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID obtiene una solicitud por ID.
func (r *CancellationRepo) GetByID(ctx context.Context, id string) (*entity.CancellationRequest, error) {
	c, err := scanCancellation(r.q.QueryRow(ctx, `SELECT `+cancellationColumns+` FROM cancellation_requests WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cancellation request: %w", err)
	}
	return c, nil
}

// GetActiveByDocument solicitud en procesando o pendiente del documento.
func (r *CancellationRepo) GetActiveByDocument(ctx context.Context, documentID string) (*entity.CancellationRequest, error) {
	query := `SELECT ` + cancellationColumns + ` FROM cancellation_requests
		WHERE document_id = $1 AND estado IN ('procesando', 'pendiente')`
	c, err := scanCancellation(r.q.QueryRow(ctx, query, documentID))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active cancellation: %w", err)
	}
	return c, nil
}

func scanCancellation(row pgxScanner) (*entity.CancellationRequest, error) {
	var (
		c      entity.CancellationRequest
		estado string
	)
	err := row.Scan(
		&c.ID, &c.DocumentID, &c.UUID, &c.RFC, &c.MotivoCode, &c.FolioSustitucion, &estado, &c.RequiereAceptacion,
		&c.Acuse, &c.CodigoRespuesta, &c.Provider, &c.ErrorMessage,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Estado = entity.CancellationState(estado)
	return &c, nil
}
