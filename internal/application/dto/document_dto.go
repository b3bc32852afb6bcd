package dto

import (
	"time"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// CreateDocumentRequest entrada para crear un documento. Se acepta el comprobante
// estructurado o el XML ya generado, no ambos.
type CreateDocumentRequest struct {
	Comprobante *entity.Comprobante `json:"comprobante"`
	RawXML      string              `json:"raw_xml"`
}

// ValidateDocumentRequest misma forma que la creación.
type ValidateDocumentRequest = CreateDocumentRequest

// ValidationResponse resultado completo de esquema + reglas de negocio.
type ValidationResponse struct {
	IsValid  bool                `json:"is_valid"`
	Errors   []domain.FieldError `json:"errors"`
	Warnings []domain.FieldError `json:"warnings"`
}

// DocumentResponse salida de un documento fiscal con su estado derivado.
type DocumentResponse struct {
	ID                    string     `json:"id"`
	Status                string     `json:"status"`
	Progress              int        `json:"progress"`
	UUID                  string     `json:"uuid,omitempty"`
	IDCCP                 string     `json:"id_ccp,omitempty"`
	SelloDigital          string     `json:"sello_digital,omitempty"`
	SelloSAT              string     `json:"sello_sat,omitempty"`
	CadenaOriginal        string     `json:"cadena_original,omitempty"`
	QRCode                string     `json:"qr_code,omitempty"`
	FechaTimbrado         *time.Time `json:"fecha_timbrado,omitempty"`
	ProviderUsed          string     `json:"provider_used,omitempty"`
	CancellationRequestID string     `json:"cancellation_request_id,omitempty"`
	RawXML                string     `json:"raw_xml"`
	StampedXML            string     `json:"stamped_xml,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// StampRequest ambiente del PAC; vacío usa el configurado.
type StampRequest struct {
	Environment string `json:"environment"`
}

// StampingAttemptResponse intento individual contra un PAC.
type StampingAttemptResponse struct {
	Provider  string    `json:"provider"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
}

// StampResponse documento timbrado y rastro de intentos.
type StampResponse struct {
	Document DocumentResponse          `json:"document"`
	Provider string                    `json:"provider"`
	Attempts []StampingAttemptResponse `json:"attempts"`
}

// BatchStampRequest timbrado de varios documentos independientes.
type BatchStampRequest struct {
	DocumentIDs []string `json:"document_ids"`
	Environment string   `json:"environment"`
}

// BatchStampItem resultado por documento.
type BatchStampItem struct {
	DocumentID string         `json:"document_id"`
	Success    bool           `json:"success"`
	Stamp      *StampResponse `json:"stamp,omitempty"`
	Error      *ErrorResponse `json:"error,omitempty"`
}

// BatchStampResponse resultados en el orden de la solicitud.
type BatchStampResponse struct {
	Items     []BatchStampItem `json:"items"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// RecordEventRequest evento de tránsito registrado por un usuario.
type RecordEventRequest struct {
	EventType string            `json:"event_type"`
	Metadata  map[string]string `json:"metadata"`
}

// EventResponse evento del ciclo de vida.
type EventResponse struct {
	ID        string            `json:"id"`
	EventType string            `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Automatic bool              `json:"automatic"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AlertResponse alerta derivada del ciclo de vida.
type AlertResponse struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Since   time.Time `json:"since"`
}

// StatusResponse estado, avance y alertas.
type StatusResponse struct {
	DocumentID string          `json:"document_id"`
	Status     string          `json:"status"`
	Progress   int             `json:"progress"`
	Alerts     []AlertResponse `json:"alerts"`
	LastEvent  *EventResponse  `json:"last_event,omitempty"`
}

// ProviderResponse PAC configurado, sin credenciales.
type ProviderResponse struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Priority      int    `json:"priority"`
	Active        bool   `json:"active"`
	SandboxURL    string `json:"sandbox_url,omitempty"`
	ProductionURL string `json:"production_url,omitempty"`
}
