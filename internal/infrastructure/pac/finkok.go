package pac

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/cfdixml"
	"github.com/jhoicas/cartaporte-api/pkg/cfdi"
)

const (
	soapNS         = "http://schemas.xmlsoap.org/soap/envelope/"
	finkokStampNS  = "http://facturacion.finkok.com/stamp"
	finkokCancelNS = "http://facturacion.finkok.com/cancel"
)

// FinkokClient adaptador SOAP; usuario y contraseña viajan en el cuerpo.
type FinkokClient struct {
	cfg        entity.ProviderConfig
	httpClient *http.Client
}

// NewFinkokClient crea el adaptador.
func NewFinkokClient(cfg entity.ProviderConfig, httpClient *http.Client) *FinkokClient {
	return &FinkokClient{cfg: cfg, httpClient: httpClient}
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	XmlnsS  string   `xml:"xmlns:soapenv,attr"`
	Body    soapBody `xml:"soapenv:Body"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type stampBody struct {
	XMLName  xml.Name `xml:"stamp"`
	Xmlns    string   `xml:"xmlns,attr"`
	XML      string   `xml:"xml"` // CFDI en Base64
	Username string   `xml:"username"`
	Password string   `xml:"password"`
}

type cancelBody struct {
	XMLName    xml.Name       `xml:"cancel"`
	Xmlns      string         `xml:"xmlns,attr"`
	UUIDs      cancelUUIDList `xml:"UUIDS"`
	Username   string         `xml:"username"`
	Password   string         `xml:"password"`
	TaxpayerID string         `xml:"taxpayer_id"`
}

type cancelUUIDList struct {
	UUID cancelUUID `xml:"UUID"`
}

type cancelUUID struct {
	UUID          string `xml:"UUID,attr"`
	Motivo        string `xml:"Motivo,attr"`
	FolioSustituc string `xml:"FolioSustitucion,attr,omitempty"`
}

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Stamp  *stampResponse  `xml:"stampResponse"`
	Cancel *cancelResponse `xml:"cancelResponse"`
	Fault  *soapFault      `xml:"Fault"`
}

type stampResponse struct {
	Result stampResult `xml:"stampResult"`
}

type stampResult struct {
	XML         string       `xml:"xml"`
	UUID        string       `xml:"UUID"`
	CodEstatus  string       `xml:"CodEstatus"`
	SatSeal     string       `xml:"SatSeal"`
	Incidencias []incidencia `xml:"Incidencias>Incidencia"`
}

type incidencia struct {
	CodigoError       string `xml:"CodigoError"`
	MensajeIncidencia string `xml:"MensajeIncidencia"`
}

type cancelResponse struct {
	Result cancelResult `xml:"cancelResult"`
}

type cancelResult struct {
	Acuse      string        `xml:"Acuse"`
	CodEstatus string        `xml:"CodEstatus"`
	Folios     []cancelFolio `xml:"Folios>Folio"`
}

type cancelFolio struct {
	UUID               string `xml:"UUID"`
	EstatusUUID        string `xml:"EstatusUUID"`
	EstatusCancelacion string `xml:"EstatusCancelacion"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// Stamp invoca la operación stamp.
func (c *FinkokClient) Stamp(ctx context.Context, raw []byte, env entity.Environment) (*StampResult, error) {
	endpoint := c.cfg.URLFor(env)
	if endpoint == "" {
		return nil, fmt.Errorf("finkok %s: sin URL para ambiente %s", c.cfg.Name, env)
	}
	body, err := c.call(ctx, strings.TrimRight(endpoint, "/")+"/stamp", finkokStampNS+"/stamp", &stampBody{
		Xmlns:    finkokStampNS,
		XML:      base64.StdEncoding.EncodeToString(raw),
		Username: c.cfg.Credentials.User,
		Password: c.cfg.Credentials.Password,
	})
	if err != nil {
		return nil, err
	}
	if body.Stamp == nil {
		return nil, fmt.Errorf("finkok: respuesta SOAP vacía o inesperada")
	}

	r := body.Stamp.Result
	if len(r.Incidencias) > 0 || r.UUID == "" {
		msgs := make([]string, 0, len(r.Incidencias))
		for _, inc := range r.Incidencias {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", inc.CodigoError, inc.MensajeIncidencia))
		}
		if len(msgs) == 0 {
			msgs = append(msgs, "timbrado sin UUID: "+r.CodEstatus)
		}
		// Las incidencias describen el contenido del CFDI: reintentar no cambia el resultado.
		return &StampResult{Error: strings.Join(msgs, "; "), Rejected: len(r.Incidencias) > 0}, nil
	}

	out := &StampResult{
		Success:    true,
		UUID:       strings.ToUpper(r.UUID),
		StampedXML: []byte(r.XML),
		SelloSAT:   r.SatSeal,
		Folio:      strings.ToUpper(r.UUID),
	}
	if t, err := cfdixml.ExtractTimbre(out.StampedXML); err == nil {
		out.CadenaOriginal = t.CadenaOriginal()
		out.SelloDigital = t.SelloCFD
		out.FechaTimbrado = t.FechaTimbrado
		if comp, err := cfdixml.Parse(out.StampedXML); err == nil {
			out.QRCode = cfdi.VerificationURL(out.UUID, comp.Emisor.Rfc, comp.Receptor.Rfc, t.SelloCFD)
		}
	}
	return out, nil
}

// Cancel invoca la operación cancel.
func (c *FinkokClient) Cancel(ctx context.Context, req CancelRequest, env entity.Environment) (*CancelResult, error) {
	endpoint := c.cfg.URLFor(env)
	if endpoint == "" {
		return nil, fmt.Errorf("finkok %s: sin URL para ambiente %s", c.cfg.Name, env)
	}
	body, err := c.call(ctx, strings.TrimRight(endpoint, "/")+"/cancel", finkokCancelNS+"/cancel", &cancelBody{
		Xmlns: finkokCancelNS,
		UUIDs: cancelUUIDList{UUID: cancelUUID{
			UUID:          req.UUID,
			Motivo:        req.Motivo,
			FolioSustituc: req.FolioSustitucion,
		}},
		Username:   c.cfg.Credentials.User,
		Password:   c.cfg.Credentials.Password,
		TaxpayerID: req.RFC,
	})
	if err != nil {
		return nil, err
	}
	if body.Cancel == nil {
		return nil, fmt.Errorf("finkok: respuesta SOAP vacía o inesperada")
	}

	r := body.Cancel.Result
	for _, f := range r.Folios {
		if strings.EqualFold(f.UUID, req.UUID) {
			return &CancelResult{Success: true, Acuse: r.Acuse, StatusCode: f.EstatusUUID}, nil
		}
	}
	msg := r.CodEstatus
	if msg == "" {
		msg = "el UUID no aparece en la respuesta de cancelación"
	}
	return &CancelResult{Error: msg}, nil
}

// call serializa el envelope, lo envía y desempaqueta la respuesta. Un SOAP Fault
// se devuelve como error (falla de protocolo o autenticación).
func (c *FinkokClient) call(ctx context.Context, endpoint, action string, content interface{}) (*soapResponseBody, error) {
	payload, err := xml.Marshal(soapEnvelope{XmlnsS: soapNS, Body: soapBody{Content: content}})
	if err != nil {
		return nil, fmt.Errorf("finkok: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("finkok: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("finkok: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("finkok: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("finkok: leer respuesta: %w", err)
	}

	var envResp soapResponseEnvelope
	if err := xml.Unmarshal(raw, &envResp); err != nil {
		return nil, fmt.Errorf("finkok: respuesta SOAP ilegible (HTTP %d): %w", resp.StatusCode, err)
	}
	if f := envResp.Body.Fault; f != nil {
		return nil, fmt.Errorf("finkok: SOAP Fault [%s]: %s", f.FaultCode, f.FaultString)
	}
	return &envResp.Body, nil
}
