package pac

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/cfdixml"
	"github.com/jhoicas/cartaporte-api/pkg/cfdi"
)

// Datos fijos del PAC de demostración (RFC y certificado de pruebas del SAT).
const (
	DemoRfcProvCertif    = "SPR190613I52"
	DemoNoCertificadoSAT = "30001000000500003456"
)

// demoNamespace espacio UUIDv5 del PAC de demostración.
var demoNamespace = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// DemoClient PAC determinista sin red: el mismo XML produce siempre el mismo UUID.
type DemoClient struct {
	now func() time.Time
}

// NewDemoClient crea el PAC de demostración.
func NewDemoClient(now func() time.Time) *DemoClient {
	if now == nil {
		now = time.Now
	}
	return &DemoClient{now: now}
}

// DemoUUID UUID que el PAC de demostración asigna a un XML (v5, mayúsculas).
func DemoUUID(raw []byte) (string, error) {
	fp, err := cfdixml.Fingerprint(raw)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(uuid.NewSHA1(demoNamespace, []byte(fp)).String()), nil
}

// Stamp agrega un TimbreFiscalDigital con sellos simulados.
func (c *DemoClient) Stamp(ctx context.Context, raw []byte, _ entity.Environment) (*StampResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	comp, err := cfdixml.Parse(raw)
	if err != nil {
		return &StampResult{Rejected: true, Error: err.Error()}, nil
	}
	fp, err := cfdixml.Fingerprint(raw)
	if err != nil {
		return &StampResult{Rejected: true, Error: err.Error()}, nil
	}
	id := strings.ToUpper(uuid.NewSHA1(demoNamespace, []byte(fp)).String())
	fecha := c.now().UTC().Truncate(time.Second)

	t := cfdixml.Timbre{
		UUID:             id,
		FechaTimbrado:    &fecha,
		RfcProvCertif:    DemoRfcProvCertif,
		SelloCFD:         seal("cfd", fp),
		NoCertificadoSAT: DemoNoCertificadoSAT,
	}
	t.SelloSAT = seal("sat", t.CadenaOriginal())

	stamped, err := cfdixml.AddTimbre(raw, t)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyStamped) {
			return &StampResult{Rejected: true, Error: "el CFDI ya contiene un TimbreFiscalDigital"}, nil
		}
		return nil, err
	}
	return &StampResult{
		Success:        true,
		UUID:           id,
		StampedXML:     stamped,
		QRCode:         cfdi.VerificationURL(id, comp.Emisor.Rfc, comp.Receptor.Rfc, t.SelloCFD),
		CadenaOriginal: t.CadenaOriginal(),
		SelloDigital:   t.SelloCFD,
		SelloSAT:       t.SelloSAT,
		Folio:          id,
		FechaTimbrado:  &fecha,
	}, nil
}

// Cancel responde 201 (requiere aceptación) para motivo 02 y 200 para el resto.
func (c *DemoClient) Cancel(ctx context.Context, req CancelRequest, _ entity.Environment) (*CancelResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.UUID == "" || req.RFC == "" {
		return &CancelResult{Error: "UUID y RFC requeridos"}, nil
	}
	code := cfdi.CancelCodeCancelado
	if req.Motivo == cfdi.MotivoSinRelacion {
		code = cfdi.CancelCodeEnProceso
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	acuse := doc.CreateElement("Acuse")
	acuse.CreateAttr("Fecha", c.now().UTC().Format("2006-01-02T15:04:05"))
	acuse.CreateAttr("RfcEmisor", cfdi.NormalizeRFC(req.RFC))
	folios := acuse.CreateElement("Folios")
	folios.CreateElement("UUID").SetText(req.UUID)
	folios.CreateElement("EstatusUUID").SetText(code)
	acuse.CreateElement("Motivo").SetText(req.Motivo)
	out, err := doc.WriteToString()
	if err != nil {
		return nil, fmt.Errorf("demo: serializar acuse: %w", err)
	}
	return &CancelResult{Success: true, Acuse: out, StatusCode: code}, nil
}

func seal(kind, input string) string {
	sum := sha256.Sum256([]byte(kind + "|" + input))
	return base64.StdEncoding.EncodeToString(sum[:])
}
