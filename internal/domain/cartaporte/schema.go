// Package cartaporte valida documentos CFDI 4.0 con complemento Carta Porte 3.1:
// conformidad estructural (esquema) y reglas de negocio entre campos.
// Los validadores son funciones puras y siempre devuelven la lista completa de violaciones.
package cartaporte

import (
	"fmt"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/pkg/cfdi"
)

// SchemaResult resultado de la validación estructural.
type SchemaResult struct {
	IsValid bool
	Errors  []domain.FieldError
}

// violations acumula errores atribuidos a campo sin cortar en el primero.
type violations []domain.FieldError

func (v *violations) add(field, format string, args ...any) {
	*v = append(*v, domain.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *violations) check(field string, err error) {
	if err != nil {
		*v = append(*v, domain.FieldError{Field: field, Message: err.Error()})
	}
}

// ValidateSchema comprueba la forma del documento: namespaces y versiones, RFCs,
// códigos postales, ubicaciones, mercancías, vehículo y figuras de transporte.
func ValidateSchema(c *entity.Comprobante) SchemaResult {
	var errs violations
	if c == nil {
		errs.add("Comprobante", "documento requerido")
		return SchemaResult{Errors: errs}
	}

	if c.Version != cfdi.VersionCFDI {
		errs.add("Comprobante.Version", "debe ser %q, se recibió %q", cfdi.VersionCFDI, c.Version)
	}
	for _, prefix := range []string{cfdi.PrefixCFDI, cfdi.PrefixCartaPorte} {
		uri := cfdi.RequiredNamespaces[prefix]
		got, ok := c.Namespaces[prefix]
		switch {
		case !ok:
			errs.add("Comprobante.xmlns:"+prefix, "namespace requerido %s", uri)
		case got != uri:
			errs.add("Comprobante.xmlns:"+prefix, "debe ser %s, se recibió %s", uri, got)
		}
	}
	if c.TipoDeComprobante != cfdi.TipoComprobanteTraslado && c.TipoDeComprobante != cfdi.TipoComprobanteIngreso {
		errs.add("Comprobante.TipoDeComprobante", "debe ser T (traslado) o I (ingreso)")
	}
	errs.check("Comprobante.LugarExpedicion", cfdi.ValidatePostalCode(c.LugarExpedicion))
	errs.check("Comprobante.Emisor.Rfc", cfdi.ValidateRFC(c.Emisor.Rfc))
	errs.check("Comprobante.Receptor.Rfc", cfdi.ValidateRFC(c.Receptor.Rfc))
	errs.check("Comprobante.Receptor.DomicilioFiscalReceptor", cfdi.ValidatePostalCode(c.Receptor.DomicilioFiscalReceptor))

	cp := c.CartaPorte
	if cp == nil {
		errs.add("Complemento.CartaPorte", "complemento Carta Porte requerido")
		return SchemaResult{IsValid: false, Errors: errs}
	}
	if cp.Version != cfdi.VersionCartaPorte {
		errs.add("CartaPorte.Version", "debe ser %q, se recibió %q", cfdi.VersionCartaPorte, cp.Version)
	}

	validateUbicaciones(&errs, cp.Ubicaciones)
	validateMercancias(&errs, &cp.Mercancias)
	validateFiguras(&errs, cp.FiguraTransporte)

	return SchemaResult{IsValid: len(errs) == 0, Errors: errs}
}

func validateUbicaciones(errs *violations, ubicaciones []entity.Ubicacion) {
	var origenes, destinos int
	for i, u := range ubicaciones {
		path := fmt.Sprintf("CartaPorte.Ubicaciones[%d]", i)
		switch u.TipoUbicacion {
		case cfdi.TipoUbicacionOrigen:
			origenes++
		case cfdi.TipoUbicacionDestino:
			destinos++
		default:
			errs.add(path+".TipoUbicacion", "debe ser Origen o Destino, se recibió %q", u.TipoUbicacion)
		}
		errs.check(path+".RFCRemitenteDestinatario", cfdi.ValidateRFC(u.RFCRemitenteDestinatario))
		errs.check(path+".Domicilio.CodigoPostal", cfdi.ValidatePostalCode(u.Domicilio.CodigoPostal))
	}
	if origenes == 0 {
		errs.add("CartaPorte.Ubicaciones", "se requiere al menos una ubicación Origen")
	}
	if destinos == 0 {
		errs.add("CartaPorte.Ubicaciones", "se requiere al menos una ubicación Destino")
	}
}

func validateMercancias(errs *violations, m *entity.Mercancias) {
	if len(m.Mercancia) == 0 {
		errs.add("CartaPorte.Mercancias.Mercancia", "se requiere al menos una mercancía")
	}
	for i, line := range m.Mercancia {
		path := fmt.Sprintf("CartaPorte.Mercancias.Mercancia[%d]", i)
		if line.BienesTransp == "" {
			errs.add(path+".BienesTransp", "clave de producto requerida")
		}
		if line.ClaveUnidad == "" {
			errs.add(path+".ClaveUnidad", "clave de unidad requerida")
		}
	}
	if m.Autotransporte == nil {
		errs.add("CartaPorte.Mercancias.Autotransporte.IdentificacionVehicular.PlacaVM", "placa del vehículo requerida")
		return
	}
	if m.Autotransporte.IdentificacionVehicular.PlacaVM == "" {
		errs.add("CartaPorte.Mercancias.Autotransporte.IdentificacionVehicular.PlacaVM", "placa del vehículo requerida")
	}
}

func validateFiguras(errs *violations, figuras []entity.FiguraTransporte) {
	if len(figuras) == 0 {
		errs.add("CartaPorte.FiguraTransporte", "se requiere al menos una figura de transporte")
	}
	for i, f := range figuras {
		path := fmt.Sprintf("CartaPorte.FiguraTransporte[%d]", i)
		if !cfdi.ValidFiguraTransporte[f.TipoFigura] {
			errs.add(path+".TipoFigura", "código de figura %q inválido", f.TipoFigura)
		}
		errs.check(path+".RFCFigura", cfdi.ValidateRFC(f.RFCFigura))
	}
}
