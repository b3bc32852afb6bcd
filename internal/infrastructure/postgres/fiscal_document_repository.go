package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/cfdixml"
)

var _ repository.FiscalDocumentRepository = (*FiscalDocumentRepo)(nil)

// FiscalDocumentRepo documentos fiscales sobre PostgreSQL (usable con pool o tx).
type FiscalDocumentRepo struct {
	q Querier
}

// NewFiscalDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFiscalDocumentRepository(q Querier) *FiscalDocumentRepo {
	return &FiscalDocumentRepo{q: q}
}

const documentColumns = `
	id, raw_xml, COALESCE(stamped_xml, ''), uuid, COALESCE(id_ccp, ''),
	COALESCE(sello_digital, ''), COALESCE(sello_sat, ''), COALESCE(cadena_original, ''),
	COALESCE(qr_code, ''), fecha_timbrado, COALESCE(provider_used, ''), cancellation_request_id,
	created_at, updated_at`

// Create persiste el borrador. El UUID normalmente está vacío (NULL) hasta el timbrado.
func (r *FiscalDocumentRepo) Create(ctx context.Context, doc *entity.FiscalDocument) error {
	query := `
		INSERT INTO fiscal_documents (id, raw_xml, uuid, total_distancia, peso_bruto_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	summary := summarize(doc.RawXML)
	_, err := r.q.Exec(ctx, query,
		doc.ID, doc.RawXML, nullable(doc.UUID), summary.distancia, summary.peso,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: documento %s ya existe", domain.ErrConflict, doc.ID)
		}
		return fmt.Errorf("insert fiscal document: %w", err)
	}
	return nil
}

// GetByID obtiene un documento por ID.
func (r *FiscalDocumentRepo) GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	doc, err := scanDocument(r.q.QueryRow(ctx, `SELECT `+documentColumns+` FROM fiscal_documents WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal document: %w", err)
	}
	return doc, nil
}

// GetByUUID obtiene un documento por folio fiscal.
func (r *FiscalDocumentRepo) GetByUUID(ctx context.Context, uuid string) (*entity.FiscalDocument, error) {
	doc, err := scanDocument(r.q.QueryRow(ctx, `SELECT `+documentColumns+` FROM fiscal_documents WHERE uuid = $1`, uuid))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal document by uuid: %w", err)
	}
	return doc, nil
}

// ApplyStamp escribe la identidad fiscal solo si el documento aún no la tiene.
func (r *FiscalDocumentRepo) ApplyStamp(ctx context.Context, doc *entity.FiscalDocument) error {
	query := `
		UPDATE fiscal_documents SET
			uuid = $2, stamped_xml = $3, id_ccp = $4, sello_digital = $5, sello_sat = $6,
			cadena_original = $7, qr_code = $8, fecha_timbrado = $9, provider_used = $10, updated_at = $11
		WHERE id = $1 AND uuid IS NULL`
	cmd, err := r.q.Exec(ctx, query,
		doc.ID, doc.UUID, doc.StampedXML, nullable(doc.IDCCP), doc.SelloDigital, doc.SelloSAT,
		doc.CadenaOriginal, doc.QRCode, doc.FechaTimbrado, doc.ProviderUsed, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: el UUID %s pertenece a otro documento", domain.ErrConflict, doc.UUID)
		}
		return fmt.Errorf("apply stamp: %w", err)
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fiscal_documents WHERE id = $1)`, doc.ID).Scan(&exists); err != nil {
		return fmt.Errorf("apply stamp: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrAlreadyStamped
}

// SetCancellation enlaza la solicitud de cancelación vigente.
func (r *FiscalDocumentRepo) SetCancellation(ctx context.Context, documentID, cancellationID string) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE fiscal_documents SET cancellation_request_id = $2, updated_at = now() WHERE id = $1`,
		documentID, cancellationID)
	if err != nil {
		return fmt.Errorf("set cancellation: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanDocument(row pgxScanner) (*entity.FiscalDocument, error) {
	var (
		d        entity.FiscalDocument
		uuid     *string
		cancelID *string
	)
	err := row.Scan(
		&d.ID, &d.RawXML, &d.StampedXML, &uuid, &d.IDCCP,
		&d.SelloDigital, &d.SelloSAT, &d.CadenaOriginal,
		&d.QRCode, &d.FechaTimbrado, &d.ProviderUsed, &cancelID,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.UUID = deref(uuid)
	d.CancellationRequestID = deref(cancelID)
	return &d, nil
}

// documentSummary columnas de consulta derivadas del XML; NULL si el XML no se puede leer.
type documentSummary struct {
	distancia decimal.NullDecimal
	peso      decimal.NullDecimal
}

func summarize(raw string) documentSummary {
	var s documentSummary
	comp, err := cfdixml.Parse([]byte(raw))
	if err != nil || comp.CartaPorte == nil {
		return s
	}
	s.distancia = decimal.NullDecimal{Decimal: comp.CartaPorte.TotalDistRec, Valid: true}
	s.peso = decimal.NullDecimal{Decimal: comp.CartaPorte.Mercancias.PesoBrutoTotal, Valid: true}
	return s
}
