package cfdixml

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/pkg/cfdi"
)

// Timbre datos del nodo tfd:TimbreFiscalDigital.
type Timbre struct {
	UUID             string
	FechaTimbrado    *time.Time
	RfcProvCertif    string
	SelloCFD         string
	NoCertificadoSAT string
	SelloSAT         string
	IDCCP            string // atributo IdCCP del complemento Carta Porte
}

// CadenaOriginal cadena original del complemento de certificación digital del SAT.
func (t Timbre) CadenaOriginal() string {
	fecha := ""
	if t.FechaTimbrado != nil {
		fecha = t.FechaTimbrado.Format(dateLayout)
	}
	return "||" + strings.Join([]string{
		cfdi.VersionTFD, t.UUID, fecha, t.RfcProvCertif, t.SelloCFD, t.NoCertificadoSAT,
	}, "|") + "||"
}

// ExtractTimbre busca el TimbreFiscalDigital en el XML timbrado.
func ExtractTimbre(stamped []byte) (*Timbre, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(stamped); err != nil {
		return nil, fmt.Errorf("%w: XML timbrado mal formado: %v", domain.ErrInvalidInput, err)
	}
	tfd := doc.FindElement("//TimbreFiscalDigital")
	if tfd == nil {
		return nil, fmt.Errorf("%w: el XML no contiene TimbreFiscalDigital", domain.ErrInvalidInput)
	}
	t := &Timbre{
		UUID:             strings.ToUpper(tfd.SelectAttrValue("UUID", "")),
		RfcProvCertif:    tfd.SelectAttrValue("RfcProvCertif", ""),
		SelloCFD:         tfd.SelectAttrValue("SelloCFD", ""),
		NoCertificadoSAT: tfd.SelectAttrValue("NoCertificadoSAT", ""),
		SelloSAT:         tfd.SelectAttrValue("SelloSAT", ""),
	}
	if v := tfd.SelectAttrValue("FechaTimbrado", ""); v != "" {
		if ft, err := time.ParseInLocation(dateLayout, v, time.UTC); err == nil {
			t.FechaTimbrado = &ft
		}
	}
	if cp := doc.FindElement("//CartaPorte"); cp != nil {
		t.IDCCP = cp.SelectAttrValue("IdCCP", "")
	}
	return t, nil
}

// Fingerprint huella hex SHA-256 del XML canónico (C14N). Dos serializaciones
// equivalentes del mismo documento producen la misma huella.
func Fingerprint(raw []byte) (string, error) {
	canonical, err := canonicalize(raw)
	if err != nil {
		return "", fmt.Errorf("cfdixml: canonicalizar: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalize(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

// AddTimbre agrega el TimbreFiscalDigital dentro de cfdi:Complemento.
// Falla si el documento ya trae uno.
func AddTimbre(raw []byte, t Timbre) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: XML mal formado: %v", domain.ErrInvalidInput, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: XML sin raíz", domain.ErrInvalidInput)
	}
	if doc.FindElement("//TimbreFiscalDigital") != nil {
		return nil, domain.ErrAlreadyStamped
	}
	comp := root.SelectElement("Complemento")
	if comp == nil {
		comp = root.CreateElement("cfdi:Complemento")
	}
	fecha := ""
	if t.FechaTimbrado != nil {
		fecha = t.FechaTimbrado.UTC().Format(dateLayout)
	}
	tfd := comp.CreateElement(cfdi.PrefixTFD + ":TimbreFiscalDigital")
	tfd.CreateAttr("xmlns:"+cfdi.PrefixTFD, cfdi.NamespaceTFD)
	tfd.CreateAttr("Version", cfdi.VersionTFD)
	tfd.CreateAttr("UUID", t.UUID)
	tfd.CreateAttr("FechaTimbrado", fecha)
	tfd.CreateAttr("RfcProvCertif", t.RfcProvCertif)
	tfd.CreateAttr("SelloCFD", t.SelloCFD)
	tfd.CreateAttr("NoCertificadoSAT", t.NoCertificadoSAT)
	tfd.CreateAttr("SelloSAT", t.SelloSAT)

	doc.Indent(2)
	return doc.WriteToBytes()
}
