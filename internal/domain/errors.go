package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound               = errors.New("recurso no encontrado")
	ErrInvalidInput           = errors.New("entrada inválida")
	ErrConflict               = errors.New("conflicto con el estado actual")
	ErrValidation             = errors.New("documento inválido")
	ErrConfiguration          = errors.New("no hay proveedores PAC activos configurados")
	ErrStampingFailed         = errors.New("timbrado fallido en todos los proveedores")
	ErrRejected               = errors.New("documento rechazado por el PAC")
	ErrAlreadyStamped         = errors.New("el documento ya fue timbrado")
	ErrOperationInFlight      = errors.New("hay una operación fiscal en curso para el documento")
	ErrCancellationInProgress = errors.New("el documento ya tiene una cancelación en curso")
	ErrInvalidTransition      = errors.New("transición de estado no permitida")
	ErrUnknownEvent           = errors.New("evento de ciclo de vida desconocido")
)

// FieldError violación atribuida a un campo del documento.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationError lista completa de violaciones de esquema y reglas de negocio.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.String()
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ProviderRejectionError el PAC rechazó explícitamente el contenido; no se reintenta.
type ProviderRejectionError struct {
	Provider string
	Message  string
}

func (e *ProviderRejectionError) Error() string {
	return fmt.Sprintf("%s (%s): %s", ErrRejected.Error(), e.Provider, e.Message)
}

func (e *ProviderRejectionError) Unwrap() error { return ErrRejected }
