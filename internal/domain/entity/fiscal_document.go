package entity

import (
	"time"

	"github.com/jhoicas/cartaporte-api/internal/domain"
)

// DocumentStatus estado del documento fiscal. Nunca se persiste: se calcula a partir
// del registro de eventos (ver internal/domain/lifecycle).
type DocumentStatus string

const (
	StatusBorrador             DocumentStatus = "borrador"
	StatusXMLGenerado          DocumentStatus = "xml_generado"
	StatusTimbrado             DocumentStatus = "timbrado"
	StatusEnTransito           DocumentStatus = "en_transito"
	StatusEntregado            DocumentStatus = "entregado"
	StatusCancelacionPendiente DocumentStatus = "cancelacion_pendiente"
	StatusCancelado            DocumentStatus = "cancelado"
)

// IsTerminal indica si el estado ya no admite cambios.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusEntregado || s == StatusCancelado
}

// FiscalDocument documento CFDI con complemento Carta Porte y su identidad fiscal.
type FiscalDocument struct {
	ID                    string
	RawXML                string // XML generado, previo al timbrado
	StampedXML            string // XML devuelto por el PAC con TimbreFiscalDigital
	UUID                  string // Folio fiscal; se escribe una sola vez
	IDCCP                 string
	SelloDigital          string
	SelloSAT              string
	CadenaOriginal        string
	QRCode                string
	FechaTimbrado         *time.Time
	ProviderUsed          string
	CancellationRequestID string // cancelación vigente o más reciente (vacío si no hay)
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsStamped indica si el documento ya adquirió identidad fiscal.
func (d *FiscalDocument) IsStamped() bool {
	return d.UUID != ""
}

// StampData resultado de un timbrado exitoso que se aplica al documento.
type StampData struct {
	UUID           string
	StampedXML     string
	QRCode         string
	CadenaOriginal string
	SelloDigital   string
	SelloSAT       string
	IDCCP          string
	FechaTimbrado  *time.Time
	Provider       string
}

// ApplyStamp asigna la identidad fiscal. Falla si el documento ya tenía UUID.
func (d *FiscalDocument) ApplyStamp(s StampData, now time.Time) error {
	if d.IsStamped() {
		return domain.ErrAlreadyStamped
	}
	if s.UUID == "" {
		return domain.ErrInvalidInput
	}
	d.UUID = s.UUID
	d.StampedXML = s.StampedXML
	d.QRCode = s.QRCode
	d.CadenaOriginal = s.CadenaOriginal
	d.SelloDigital = s.SelloDigital
	d.SelloSAT = s.SelloSAT
	if s.IDCCP != "" {
		d.IDCCP = s.IDCCP
	}
	d.FechaTimbrado = s.FechaTimbrado
	d.ProviderUsed = s.Provider
	d.UpdatedAt = now
	return nil
}
