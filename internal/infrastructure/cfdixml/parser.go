package cfdixml

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// Parse lee un XML CFDI y devuelve su forma estructurada para validarla.
// Solo falla ante XML mal formado o valores no numéricos; la conformidad al
// esquema la decide el validador.
func Parse(raw []byte) (*entity.Comprobante, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: XML mal formado: %v", domain.ErrInvalidInput, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Comprobante" {
		return nil, fmt.Errorf("%w: la raíz debe ser cfdi:Comprobante", domain.ErrInvalidInput)
	}

	p := &attrParser{}
	c := &entity.Comprobante{
		Version:           root.SelectAttrValue("Version", ""),
		Serie:             root.SelectAttrValue("Serie", ""),
		Folio:             root.SelectAttrValue("Folio", ""),
		Fecha:             p.date(root, "Fecha"),
		LugarExpedicion:   root.SelectAttrValue("LugarExpedicion", ""),
		TipoDeComprobante: root.SelectAttrValue("TipoDeComprobante", ""),
		Moneda:            root.SelectAttrValue("Moneda", ""),
		Namespaces:        map[string]string{},
	}
	for _, a := range root.Attr {
		if a.Space == "xmlns" {
			c.Namespaces[a.Key] = a.Value
		}
	}
	if e := root.SelectElement("Emisor"); e != nil {
		c.Emisor = entity.Emisor{
			Rfc:           e.SelectAttrValue("Rfc", ""),
			Nombre:        e.SelectAttrValue("Nombre", ""),
			RegimenFiscal: e.SelectAttrValue("RegimenFiscal", ""),
		}
	}
	if r := root.SelectElement("Receptor"); r != nil {
		c.Receptor = entity.Receptor{
			Rfc:                     r.SelectAttrValue("Rfc", ""),
			Nombre:                  r.SelectAttrValue("Nombre", ""),
			DomicilioFiscalReceptor: r.SelectAttrValue("DomicilioFiscalReceptor", ""),
			RegimenFiscalReceptor:   r.SelectAttrValue("RegimenFiscalReceptor", ""),
			UsoCFDI:                 r.SelectAttrValue("UsoCFDI", ""),
		}
	}
	if comp := root.SelectElement("Complemento"); comp != nil {
		if cp := comp.SelectElement("CartaPorte"); cp != nil {
			c.CartaPorte = p.cartaPorte(cp)
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return c, nil
}

// attrParser conserva el primer error de conversión para no repetir comprobaciones.
type attrParser struct {
	err error
}

func (p *attrParser) fail(el *etree.Element, attr string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s@%s: %v", domain.ErrInvalidInput, el.Tag, attr, err)
	}
}

func (p *attrParser) decimal(el *etree.Element, attr string) decimal.Decimal {
	v := el.SelectAttrValue(attr, "")
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(el, attr, err)
	}
	return d
}

func (p *attrParser) optDecimal(el *etree.Element, attr string) *decimal.Decimal {
	if el.SelectAttr(attr) == nil {
		return nil
	}
	d := p.decimal(el, attr)
	return &d
}

func (p *attrParser) integer(el *etree.Element, attr string) int {
	v := el.SelectAttrValue(attr, "")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(el, attr, err)
	}
	return n
}

func (p *attrParser) date(el *etree.Element, attr string) time.Time {
	v := el.SelectAttrValue(attr, "")
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(dateLayout, v, time.UTC)
	if err != nil {
		p.fail(el, attr, err)
	}
	return t
}

func (p *attrParser) cartaPorte(el *etree.Element) *entity.CartaPorte {
	cp := &entity.CartaPorte{
		Version:        el.SelectAttrValue("Version", ""),
		IdCCP:          el.SelectAttrValue("IdCCP", ""),
		TranspInternac: el.SelectAttrValue("TranspInternac", ""),
		TotalDistRec:   p.decimal(el, "TotalDistRec"),
	}
	if ubs := el.SelectElement("Ubicaciones"); ubs != nil {
		for _, u := range ubs.SelectElements("Ubicacion") {
			ub := entity.Ubicacion{
				TipoUbicacion:            u.SelectAttrValue("TipoUbicacion", ""),
				IDUbicacion:              u.SelectAttrValue("IDUbicacion", ""),
				RFCRemitenteDestinatario: u.SelectAttrValue("RFCRemitenteDestinatario", ""),
				FechaHoraSalidaLlegada:   p.date(u, "FechaHoraSalidaLlegada"),
				DistanciaRecorrida:       p.optDecimal(u, "DistanciaRecorrida"),
			}
			if d := u.SelectElement("Domicilio"); d != nil {
				ub.Domicilio = entity.Domicilio{
					Calle:        d.SelectAttrValue("Calle", ""),
					Municipio:    d.SelectAttrValue("Municipio", ""),
					Estado:       d.SelectAttrValue("Estado", ""),
					Pais:         d.SelectAttrValue("Pais", ""),
					CodigoPostal: d.SelectAttrValue("CodigoPostal", ""),
				}
			}
			cp.Ubicaciones = append(cp.Ubicaciones, ub)
		}
	}
	if m := el.SelectElement("Mercancias"); m != nil {
		cp.Mercancias = entity.Mercancias{
			PesoBrutoTotal:     p.decimal(m, "PesoBrutoTotal"),
			UnidadPeso:         m.SelectAttrValue("UnidadPeso", ""),
			NumTotalMercancias: p.integer(m, "NumTotalMercancias"),
		}
		for _, line := range m.SelectElements("Mercancia") {
			cp.Mercancias.Mercancia = append(cp.Mercancias.Mercancia, entity.Mercancia{
				BienesTransp: line.SelectAttrValue("BienesTransp", ""),
				Descripcion:  line.SelectAttrValue("Descripcion", ""),
				Cantidad:     p.decimal(line, "Cantidad"),
				ClaveUnidad:  line.SelectAttrValue("ClaveUnidad", ""),
				PesoEnKg:     p.decimal(line, "PesoEnKg"),
			})
		}
		if at := m.SelectElement("Autotransporte"); at != nil {
			auto := &entity.Autotransporte{
				PermSCT:       at.SelectAttrValue("PermSCT", ""),
				NumPermisoSCT: at.SelectAttrValue("NumPermisoSCT", ""),
			}
			if iv := at.SelectElement("IdentificacionVehicular"); iv != nil {
				auto.IdentificacionVehicular = entity.IdentificacionVehicular{
					ConfigVehicular:    iv.SelectAttrValue("ConfigVehicular", ""),
					PesoBrutoVehicular: p.decimal(iv, "PesoBrutoVehicular"),
					PlacaVM:            iv.SelectAttrValue("PlacaVM", ""),
					AnioModeloVM:       p.integer(iv, "AnioModeloVM"),
				}
			}
			if seg := at.SelectElement("Seguros"); seg != nil {
				auto.AseguraRespCivil = seg.SelectAttrValue("AseguraRespCivil", "")
				auto.PolizaRespCivil = seg.SelectAttrValue("PolizaRespCivil", "")
			}
			cp.Mercancias.Autotransporte = auto
		}
	}
	if ft := el.SelectElement("FiguraTransporte"); ft != nil {
		for _, f := range ft.SelectElements("TiposFigura") {
			cp.FiguraTransporte = append(cp.FiguraTransporte, entity.FiguraTransporte{
				TipoFigura:   f.SelectAttrValue("TipoFigura", ""),
				RFCFigura:    f.SelectAttrValue("RFCFigura", ""),
				NumLicencia:  f.SelectAttrValue("NumLicencia", ""),
				NombreFigura: f.SelectAttrValue("NombreFigura", ""),
			})
		}
	}
	return cp
}
