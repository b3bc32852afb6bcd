// Package pac contiene los adaptadores de protocolo de cada PAC. Cada llamada hace
// exactamente una petición de red; los reintentos pertenecen al orquestador.
package pac

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// StampResult respuesta de timbrado.
//
// Un error devuelto junto al resultado indica falla de transporte (red, timeout, 5xx).
// Success=false sin error es una respuesta del PAC; Rejected=true significa que el PAC
// rechazó el contenido y reintentar no cambiará el resultado.
type StampResult struct {
	Success        bool
	Rejected       bool
	UUID           string
	StampedXML     []byte
	QRCode         string
	CadenaOriginal string
	SelloDigital   string
	SelloSAT       string
	Folio          string
	FechaTimbrado  *time.Time
	Error          string
}

// CancelRequest datos de una solicitud de cancelación ante el PAC.
type CancelRequest struct {
	UUID             string
	RFC              string
	Motivo           string
	FolioSustitucion string
}

// CancelResult respuesta de cancelación. StatusCode es el código SAT por UUID
// (201/202 requieren aceptación del receptor).
type CancelResult struct {
	Success    bool
	Acuse      string
	StatusCode string
	Error      string
}

// Client contrato uniforme sobre el protocolo de cada PAC.
type Client interface {
	Stamp(ctx context.Context, xml []byte, env entity.Environment) (*StampResult, error)
	Cancel(ctx context.Context, req CancelRequest, env entity.Environment) (*CancelResult, error)
}

// Factory construye el adaptador adecuado para cada configuración.
type Factory struct {
	httpClient *http.Client
	now        func() time.Time
}

// NewFactory crea la fábrica. El timeout por llamada lo impone el contexto del
// orquestador; httpClient puede ser nil.
func NewFactory(httpClient *http.Client) *Factory {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Factory{httpClient: httpClient, now: time.Now}
}

// ClientFor devuelve el adaptador del tipo configurado.
func (f *Factory) ClientFor(cfg entity.ProviderConfig) (Client, error) {
	switch cfg.Type {
	case entity.ProviderSmartWeb:
		return NewSmartWebClient(cfg, f.httpClient), nil
	case entity.ProviderFinkok:
		return NewFinkokClient(cfg, f.httpClient), nil
	case entity.ProviderDemo:
		return NewDemoClient(f.now), nil
	default:
		return nil, fmt.Errorf("pac %s: tipo sin adaptador %q", cfg.Name, cfg.Type)
	}
}

// retryableStatus códigos HTTP que no dicen nada del documento.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}
