package usecase

import (
	"context"
	"strings"

	"github.com/jhoicas/cartaporte-api/internal/application/cancellation"
	"github.com/jhoicas/cartaporte-api/internal/application/dto"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// CancellationUseCase expone el coordinador de cancelaciones con DTOs.
type CancellationUseCase struct {
	coord *cancellation.Coordinator
	env   entity.Environment
}

// NewCancellationUseCase construye el caso de uso. env es el ambiente por defecto.
func NewCancellationUseCase(coord *cancellation.Coordinator, env entity.Environment) *CancellationUseCase {
	if env == "" {
		env = entity.EnvironmentSandbox
	}
	return &CancellationUseCase{coord: coord, env: env}
}

// Cancel solicita la cancelación de un CFDI timbrado.
func (uc *CancellationUseCase) Cancel(ctx context.Context, in dto.CancelRequest) (*dto.CancellationResponse, error) {
	env := uc.env
	if strings.TrimSpace(in.Environment) != "" {
		parsed, err := entity.ParseEnvironment(in.Environment)
		if err != nil {
			return nil, err
		}
		env = parsed
	}
	cr, err := uc.coord.Cancel(ctx, cancellation.Request{
		UUID:             in.UUID,
		RFC:              in.RFC,
		Motivo:           strings.TrimSpace(in.Motivo),
		FolioSustitucion: in.FolioSustitucion,
		Environment:      env,
	})
	if err != nil {
		return nil, err
	}
	return toCancellationResponse(cr), nil
}

// Resolve cierra la cancelación pendiente del documento.
func (uc *CancellationUseCase) Resolve(ctx context.Context, documentID string, in dto.ResolutionRequest) (*dto.CancellationResponse, error) {
	cr, err := uc.coord.ResolvePending(ctx, documentID, cancellation.Resolution{
		Accepted: in.Accepted,
		Codigo:   in.Codigo,
		Acuse:    in.Acuse,
	})
	if err != nil {
		return nil, err
	}
	return toCancellationResponse(cr), nil
}

// GetByID devuelve una solicitud de cancelación.
func (uc *CancellationUseCase) GetByID(ctx context.Context, id string) (*dto.CancellationResponse, error) {
	cr, err := uc.coord.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toCancellationResponse(cr), nil
}

func toCancellationResponse(cr *entity.CancellationRequest) *dto.CancellationResponse {
	return &dto.CancellationResponse{
		ID:                 cr.ID,
		DocumentID:         cr.DocumentID,
		UUID:               cr.UUID,
		RFC:                cr.RFC,
		Motivo:             cr.MotivoCode,
		FolioSustitucion:   cr.FolioSustitucion,
		Estado:             string(cr.Estado),
		RequiereAceptacion: cr.RequiereAceptacion,
		Acuse:              cr.Acuse,
		CodigoRespuesta:    cr.CodigoRespuesta,
		Provider:           cr.Provider,
		Error:              cr.ErrorMessage,
		CreatedAt:          cr.CreatedAt,
		UpdatedAt:          cr.UpdatedAt,
	}
}
