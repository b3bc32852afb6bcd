package entity

import "time"

// CancellationState estado de una solicitud de cancelación.
type CancellationState string

const (
	CancellationPendiente  CancellationState = "pendiente"
	CancellationProcesando CancellationState = "procesando"
	CancellationCancelado  CancellationState = "cancelado"
	CancellationRechazado  CancellationState = "rechazado"
	CancellationError      CancellationState = "error"
)

// IsTerminal cancelado, rechazado y error son finales; pendiente es una espera válida.
func (s CancellationState) IsTerminal() bool {
	return s == CancellationCancelado || s == CancellationRechazado || s == CancellationError
}

// CancellationRequest solicitud de cancelación de un CFDI timbrado.
type CancellationRequest struct {
	ID                 string
	DocumentID         string
	UUID               string
	RFC                string
	MotivoCode         string
	FolioSustitucion   string
	Estado             CancellationState
	RequiereAceptacion bool
	Acuse              string
	CodigoRespuesta    string
	Provider           string
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
