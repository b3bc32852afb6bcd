package dto

import "github.com/jhoicas/cartaporte-api/internal/domain"

// ErrorResponse cuerpo de error HTTP. Details solo viaja en errores de validación.
type ErrorResponse struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details []domain.FieldError `json:"details,omitempty"`
}
