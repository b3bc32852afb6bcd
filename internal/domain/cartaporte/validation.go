package cartaporte

import (
	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// Result resultado combinado de esquema + reglas de negocio.
type Result struct {
	IsValid  bool                `json:"is_valid"`
	Errors   []domain.FieldError `json:"errors"`
	Warnings []domain.FieldError `json:"warnings"`
}

// Validate ejecuta ambas validaciones completas; nunca se detiene en el primer error.
func Validate(c *entity.Comprobante) Result {
	schema := ValidateSchema(c)
	rules := ValidateBusinessRules(c)

	errs := make([]domain.FieldError, 0, len(schema.Errors)+len(rules.Errors))
	errs = append(errs, schema.Errors...)
	errs = append(errs, rules.Errors...)
	warns := rules.Warnings
	if warns == nil {
		warns = []domain.FieldError{}
	}
	return Result{IsValid: len(errs) == 0, Errors: errs, Warnings: warns}
}

// Err devuelve *domain.ValidationError si hay errores bloqueantes.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return &domain.ValidationError{Errors: r.Errors}
}
