package cfdi

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// rfcPattern RFC de persona moral (3 letras) o física (4 letras) + fecha + homoclave.
var rfcPattern = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}$`)

var postalCodePattern = regexp.MustCompile(`^[0-9]{5}$`)

// NormalizeRFC quita espacios, pasa a mayúsculas y compone la Ñ (NFC) para que una
// "N" + tilde combinante no rompa la validación.
func NormalizeRFC(rfc string) string {
	return norm.NFC.String(strings.ToUpper(strings.TrimSpace(rfc)))
}

// ValidateRFC valida la forma del RFC tal como viene (sin dígito verificador). Solo
// compone la Ñ; minúsculas y espacios se rechazan. NormalizeRFC es para comparar.
func ValidateRFC(rfc string) error {
	if rfc == "" {
		return fmt.Errorf("cfdi: RFC vacío")
	}
	if !rfcPattern.MatchString(norm.NFC.String(rfc)) {
		return fmt.Errorf("cfdi: RFC %q no cumple el formato del SAT", rfc)
	}
	return nil
}

// IsGenericRFC indica si el RFC es uno de los genéricos del SAT.
func IsGenericRFC(rfc string) bool {
	n := NormalizeRFC(rfc)
	return n == RFCGenericoNacional || n == RFCGenericoExtranjero
}

// ValidatePostalCode exige exactamente 5 dígitos.
func ValidatePostalCode(cp string) error {
	if !postalCodePattern.MatchString(cp) {
		return fmt.Errorf("cfdi: código postal %q debe tener 5 dígitos", cp)
	}
	return nil
}
