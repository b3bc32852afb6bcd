package dto

import "time"

// CancelRequest solicitud de cancelación de un CFDI timbrado.
type CancelRequest struct {
	UUID             string `json:"uuid"`
	RFC              string `json:"rfc"`
	Motivo           string `json:"motivo"`
	FolioSustitucion string `json:"folio_sustitucion"`
	Environment      string `json:"environment"`
}

// ResolutionRequest respuesta definitiva a una cancelación pendiente de aceptación.
type ResolutionRequest struct {
	Accepted bool   `json:"accepted"`
	Codigo   string `json:"codigo"`
	Acuse    string `json:"acuse"`
}

// CancellationResponse salida de una solicitud de cancelación.
type CancellationResponse struct {
	ID                 string    `json:"id"`
	DocumentID         string    `json:"document_id"`
	UUID               string    `json:"uuid"`
	RFC                string    `json:"rfc"`
	Motivo             string    `json:"motivo"`
	FolioSustitucion   string    `json:"folio_sustitucion,omitempty"`
	Estado             string    `json:"estado"`
	RequiereAceptacion bool      `json:"requiere_aceptacion"`
	Acuse              string    `json:"acuse,omitempty"`
	CodigoRespuesta    string    `json:"codigo_respuesta,omitempty"`
	Provider           string    `json:"provider"`
	Error              string    `json:"error,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
