package cartaporte

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/pkg/cfdi"
)

// RuleResult resultado de las reglas de negocio. Solo Errors bloquea el timbrado.
type RuleResult struct {
	Errors   []domain.FieldError
	Warnings []domain.FieldError
}

// ValidateBusinessRules aplica las reglas semánticas que el esquema no expresa.
func ValidateBusinessRules(c *entity.Comprobante) RuleResult {
	var errs, warns violations
	if c == nil {
		return RuleResult{}
	}

	if cfdi.IsGenericRFC(c.Emisor.Rfc) {
		errs.add("Comprobante.Emisor.Rfc", "el emisor no puede usar el RFC genérico %s", cfdi.NormalizeRFC(c.Emisor.Rfc))
	}

	cp := c.CartaPorte
	if cp == nil {
		return RuleResult{Errors: errs, Warnings: warns}
	}

	sumDestinos := decimal.Zero
	for i, u := range cp.Ubicaciones {
		if u.TipoUbicacion != cfdi.TipoUbicacionDestino {
			continue
		}
		path := fmt.Sprintf("CartaPorte.Ubicaciones[%d].DistanciaRecorrida", i)
		if u.DistanciaRecorrida == nil {
			errs.add(path, "la ubicación Destino debe indicar la distancia recorrida")
			continue
		}
		if !u.DistanciaRecorrida.IsPositive() {
			errs.add(path, "la distancia recorrida debe ser mayor a cero")
			continue
		}
		sumDestinos = sumDestinos.Add(*u.DistanciaRecorrida)
	}
	if !cp.TotalDistRec.IsZero() && sumDestinos.IsPositive() && !cp.TotalDistRec.Equal(sumDestinos) {
		warns.add("CartaPorte.TotalDistRec", "total (%s) no coincide con la suma de distancias de destino (%s)",
			cp.TotalDistRec.String(), sumDestinos.String())
	}

	for i, f := range cp.FiguraTransporte {
		path := fmt.Sprintf("CartaPorte.FiguraTransporte[%d]", i)
		if f.TipoFigura == cfdi.FiguraOperador && f.NumLicencia == "" {
			errs.add(path+".NumLicencia", "el operador debe tener número de licencia")
		}
		if cfdi.IsGenericRFC(f.RFCFigura) {
			errs.add(path+".RFCFigura", "la figura de transporte no puede usar un RFC genérico")
		}
	}

	pesoTotal := decimal.Zero
	for _, m := range cp.Mercancias.Mercancia {
		pesoTotal = pesoTotal.Add(m.PesoEnKg)
	}
	if len(cp.Mercancias.Mercancia) > 0 && pesoTotal.IsZero() {
		warns.add("CartaPorte.Mercancias.Mercancia", "el peso declarado de las mercancías suma cero")
	}

	return RuleResult{Errors: errs, Warnings: warns}
}
