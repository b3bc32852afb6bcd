// Package cfdi contiene catálogos y reglas del SAT (México) para CFDI 4.0 con
// complemento Carta Porte 3.1 y el protocolo de cancelación.
package cfdi

// =============================================================================
// Namespaces y versiones (Anexo 20 / Complemento Carta Porte 3.1)
// =============================================================================

const (
	NamespaceCFDI       = "http://www.sat.gob.mx/cfd/4"
	NamespaceCartaPorte = "http://www.sat.gob.mx/CartaPorte31"
	NamespaceTFD        = "http://www.sat.gob.mx/TimbreFiscalDigital"
	NamespaceXSI        = "http://www.w3.org/2001/XMLSchema-instance"

	PrefixCFDI       = "cfdi"
	PrefixCartaPorte = "cartaporte31"
	PrefixTFD        = "tfd"

	VersionCFDI       = "4.0"
	VersionCartaPorte = "3.1"
	VersionTFD        = "1.1"

	SchemaLocation = NamespaceCFDI + " http://www.sat.gob.mx/sitio_internet/cfd/4/cfdv40.xsd " +
		NamespaceCartaPorte + " http://www.sat.gob.mx/sitio_internet/cfd/CartaPorte/CartaPorte31.xsd"
)

// RequiredNamespaces prefijo → URI que todo documento Carta Porte debe declarar.
var RequiredNamespaces = map[string]string{
	PrefixCFDI:       NamespaceCFDI,
	PrefixCartaPorte: NamespaceCartaPorte,
}

// =============================================================================
// RFC genéricos (no válidos como emisor ni como figura de transporte)
// =============================================================================

const (
	RFCGenericoNacional   = "XAXX010101000"
	RFCGenericoExtranjero = "XEXX010101000"
)

// =============================================================================
// c_TipoDeComprobante
// =============================================================================

const (
	TipoComprobanteIngreso  = "I"
	TipoComprobanteTraslado = "T"
)

// =============================================================================
// Ubicaciones (Carta Porte 3.1)
// =============================================================================

const (
	TipoUbicacionOrigen  = "Origen"
	TipoUbicacionDestino = "Destino"
)

// =============================================================================
// c_FiguraTransporte
// =============================================================================

const (
	FiguraOperador        = "01"
	FiguraPropietario     = "02"
	FiguraArrendador      = "03"
	FiguraNotificado      = "04"
	FiguraIntegranteCoord = "05"
)

// ValidFiguraTransporte códigos válidos de figura de transporte.
var ValidFiguraTransporte = map[string]bool{
	FiguraOperador:        true,
	FiguraPropietario:     true,
	FiguraArrendador:      true,
	FiguraNotificado:      true,
	FiguraIntegranteCoord: true,
}

// =============================================================================
// c_MotivoCancelacion
// =============================================================================

const (
	MotivoConRelacion         = "01" // Comprobante emitido con errores con relación (requiere folio de sustitución)
	MotivoSinRelacion         = "02" // Comprobante emitido con errores sin relación
	MotivoNoSeLlevoACabo      = "03" // No se llevó a cabo la operación
	MotivoOperacionNominativa = "04" // Operación nominativa relacionada en una factura global
)

// ValidMotivosCancelacion motivos de cancelación aceptados por el SAT.
var ValidMotivosCancelacion = map[string]bool{
	MotivoConRelacion:         true,
	MotivoSinRelacion:         true,
	MotivoNoSeLlevoACabo:      true,
	MotivoOperacionNominativa: true,
}

// RequiresFolioSustitucion indica si el motivo exige el UUID del comprobante que sustituye.
func RequiresFolioSustitucion(motivo string) bool {
	return motivo == MotivoConRelacion
}

// =============================================================================
// Códigos de respuesta de cancelación del PAC
// =============================================================================

const (
	CancelCodeCancelado             = "200" // Cancelado sin aceptación
	CancelCodeEnProceso             = "201" // Solicitud recibida, requiere aceptación del receptor
	CancelCodePreviamenteSolicitado = "202" // Solicitud previa en espera de aceptación
	CancelCodeUnknown               = "unknown"
)

// pendingAcceptanceCodes códigos con los que el PAC informa que el receptor debe aceptar.
var pendingAcceptanceCodes = map[string]bool{
	CancelCodeEnProceso:             true,
	CancelCodePreviamenteSolicitado: true,
}

// RequiresAcceptance indica si el código de respuesta deja la cancelación en espera del receptor.
func RequiresAcceptance(code string) bool {
	return pendingAcceptanceCodes[code]
}
