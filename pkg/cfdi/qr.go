package cfdi

import (
	"net/url"
	"strings"
)

const verificationBaseURL = "https://verificacfdi.facturaelectronica.sat.gob.mx/default.aspx"

// VerificationURL contenido del código QR del CFDI (Anexo 20). El total de un
// traslado Carta Porte es cero; fe son los últimos 8 caracteres del sello del emisor.
func VerificationURL(uuid, rfcEmisor, rfcReceptor, selloCFD string) string {
	fe := selloCFD
	if len(fe) > 8 {
		fe = fe[len(fe)-8:]
	}
	var b strings.Builder
	b.WriteString(verificationBaseURL)
	b.WriteString("?id=")
	b.WriteString(url.QueryEscape(uuid))
	b.WriteString("&re=")
	b.WriteString(url.QueryEscape(NormalizeRFC(rfcEmisor)))
	b.WriteString("&rr=")
	b.WriteString(url.QueryEscape(NormalizeRFC(rfcReceptor)))
	b.WriteString("&tt=0.000000&fe=")
	b.WriteString(url.QueryEscape(fe))
	return b.String()
}
