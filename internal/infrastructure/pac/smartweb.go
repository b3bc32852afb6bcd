package pac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/cfdixml"
)

const (
	tipoDocumentoCartaPorte = "cartaporte"
	maxResponseBytes        = 4 << 20
)

// SmartWebClient adaptador REST JSON con autenticación Bearer.
type SmartWebClient struct {
	cfg        entity.ProviderConfig
	httpClient *http.Client
}

// NewSmartWebClient crea el adaptador.
func NewSmartWebClient(cfg entity.ProviderConfig, httpClient *http.Client) *SmartWebClient {
	return &SmartWebClient{cfg: cfg, httpClient: httpClient}
}

type swStampRequest struct {
	XML           string `json:"xml"`
	Ambiente      string `json:"ambiente"`
	TipoDocumento string `json:"tipo_documento"`
}

type swStampResponse struct {
	Success bool         `json:"success"`
	Data    *swStampData `json:"data"`
	Error   string       `json:"error"`
}

type swStampData struct {
	UUID           string `json:"uuid"`
	XMLTimbrado    string `json:"xml_timbrado"`
	QRCode         string `json:"qr_code"`
	CadenaOriginal string `json:"cadena_original"`
	SelloDigital   string `json:"sello_digital"`
	FolioFiscal    string `json:"folio_fiscal"`
}

type swCancelResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Data    *swCancelData `json:"data"`
}

type swCancelData struct {
	Acuse string            `json:"acuse"`
	UUID  map[string]string `json:"uuid"`
}

// Stamp envía el XML al endpoint de timbrado.
func (c *SmartWebClient) Stamp(ctx context.Context, xml []byte, env entity.Environment) (*StampResult, error) {
	endpoint := c.cfg.URLFor(env)
	if endpoint == "" {
		return nil, fmt.Errorf("smartweb %s: sin URL para ambiente %s", c.cfg.Name, env)
	}
	payload, err := json.Marshal(swStampRequest{
		XML:           string(xml),
		Ambiente:      string(env),
		TipoDocumento: tipoDocumentoCartaPorte,
	})
	if err != nil {
		return nil, fmt.Errorf("smartweb: serializar: %w", err)
	}

	status, body, err := c.post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}
	if retryableStatus(status) {
		return nil, fmt.Errorf("smartweb: HTTP %d: %s", status, truncate(body))
	}

	var resp swStampResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("smartweb: respuesta no JSON (HTTP %d): %w", status, err)
	}
	if !resp.Success || resp.Data == nil || resp.Data.UUID == "" {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("timbrado no exitoso (HTTP %d)", status)
		}
		return &StampResult{Error: msg, Rejected: status >= 400}, nil
	}

	d := resp.Data
	out := &StampResult{
		Success:        true,
		UUID:           strings.ToUpper(d.UUID),
		StampedXML:     []byte(d.XMLTimbrado),
		QRCode:         d.QRCode,
		CadenaOriginal: d.CadenaOriginal,
		SelloDigital:   d.SelloDigital,
		Folio:          d.FolioFiscal,
	}
	// SelloSAT y fecha solo vienen dentro del XML timbrado.
	if t, err := cfdixml.ExtractTimbre(out.StampedXML); err == nil {
		out.SelloSAT = t.SelloSAT
		out.FechaTimbrado = t.FechaTimbrado
	}
	return out, nil
}

// Cancel POST {base}/cfdi33/cancel/{rfc}/{uuid}/{motivo}[/{folio}].
func (c *SmartWebClient) Cancel(ctx context.Context, req CancelRequest, env entity.Environment) (*CancelResult, error) {
	base := strings.TrimRight(c.cfg.URLFor(env), "/")
	if base == "" {
		return nil, fmt.Errorf("smartweb %s: sin URL para ambiente %s", c.cfg.Name, env)
	}
	endpoint := cancelURL(base, req)

	status, body, err := c.post(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if retryableStatus(status) {
		return nil, fmt.Errorf("smartweb: HTTP %d: %s", status, truncate(body))
	}

	var resp swCancelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("smartweb: respuesta no JSON (HTTP %d): %w", status, err)
	}
	if resp.Status != "success" || resp.Data == nil {
		msg := resp.Message
		if msg == "" {
			msg = fmt.Sprintf("cancelación no exitosa (HTTP %d, status %q)", status, resp.Status)
		}
		return &CancelResult{Error: msg}, nil
	}
	code := resp.Data.UUID[req.UUID]
	if code == "" {
		code = resp.Data.UUID[strings.ToLower(req.UUID)]
	}
	return &CancelResult{Success: true, Acuse: resp.Data.Acuse, StatusCode: code}, nil
}

func cancelURL(base string, req CancelRequest) string {
	parts := []string{base, "cfdi33", "cancel",
		url.PathEscape(req.RFC), url.PathEscape(req.UUID), url.PathEscape(req.Motivo)}
	if req.FolioSustitucion != "" {
		parts = append(parts, url.PathEscape(req.FolioSustitucion))
	}
	return strings.Join(parts, "/")
}

func (c *SmartWebClient) post(ctx context.Context, endpoint string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("smartweb: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Credentials.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, fmt.Errorf("smartweb: timeout o cancelación: %w", ctx.Err())
		}
		return 0, nil, fmt.Errorf("smartweb: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("smartweb: leer respuesta: %w", err)
	}
	return resp.StatusCode, body, nil
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
