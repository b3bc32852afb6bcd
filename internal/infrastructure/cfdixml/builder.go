// Package cfdixml genera y lee el XML CFDI 4.0 con complemento Carta Porte 3.1.
package cfdixml

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/pkg/cfdi"
)

// Formato de fecha del Anexo 20 (sin zona horaria).
const dateLayout = "2006-01-02T15:04:05"

// XMLBuilderService construye el XML sin sello; el PAC agrega el timbre.
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera el XML del comprobante. No valida: eso corresponde a internal/domain/cartaporte.
func (s *XMLBuilderService) Build(c *entity.Comprobante) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("cfdixml: comprobante nulo")
	}
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("cfdi:Comprobante")
	root.CreateAttr("xmlns:cfdi", cfdi.NamespaceCFDI)
	root.CreateAttr("xmlns:cartaporte31", cfdi.NamespaceCartaPorte)
	root.CreateAttr("xmlns:xsi", cfdi.NamespaceXSI)
	root.CreateAttr("xsi:schemaLocation", cfdi.SchemaLocation)
	root.CreateAttr("Version", orDefault(c.Version, cfdi.VersionCFDI))
	setAttr(root, "Serie", c.Serie)
	setAttr(root, "Folio", c.Folio)
	root.CreateAttr("Fecha", c.Fecha.Format(dateLayout))
	root.CreateAttr("SubTotal", "0")
	root.CreateAttr("Moneda", orDefault(c.Moneda, "XXX"))
	root.CreateAttr("Total", "0")
	root.CreateAttr("TipoDeComprobante", c.TipoDeComprobante)
	root.CreateAttr("Exportacion", "01")
	root.CreateAttr("LugarExpedicion", c.LugarExpedicion)

	emisor := root.CreateElement("cfdi:Emisor")
	emisor.CreateAttr("Rfc", cfdi.NormalizeRFC(c.Emisor.Rfc))
	emisor.CreateAttr("Nombre", c.Emisor.Nombre)
	emisor.CreateAttr("RegimenFiscal", c.Emisor.RegimenFiscal)

	receptor := root.CreateElement("cfdi:Receptor")
	receptor.CreateAttr("Rfc", cfdi.NormalizeRFC(c.Receptor.Rfc))
	receptor.CreateAttr("Nombre", c.Receptor.Nombre)
	receptor.CreateAttr("DomicilioFiscalReceptor", c.Receptor.DomicilioFiscalReceptor)
	receptor.CreateAttr("RegimenFiscalReceptor", c.Receptor.RegimenFiscalReceptor)
	receptor.CreateAttr("UsoCFDI", orDefault(c.Receptor.UsoCFDI, "S01"))

	// Un concepto por mercancía: en traslado los importes van en cero.
	conceptos := root.CreateElement("cfdi:Conceptos")
	if c.CartaPorte != nil {
		for _, m := range c.CartaPorte.Mercancias.Mercancia {
			con := conceptos.CreateElement("cfdi:Concepto")
			con.CreateAttr("ClaveProdServ", m.BienesTransp)
			con.CreateAttr("Cantidad", m.Cantidad.String())
			con.CreateAttr("ClaveUnidad", m.ClaveUnidad)
			con.CreateAttr("Descripcion", m.Descripcion)
			con.CreateAttr("ValorUnitario", "0")
			con.CreateAttr("Importe", "0")
			con.CreateAttr("ObjetoImp", "01")
		}
		writeCartaPorte(root.CreateElement("cfdi:Complemento"), c.CartaPorte)
	}

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("cfdixml: serializar: %w", err)
	}
	return out, nil
}

func writeCartaPorte(complemento *etree.Element, cp *entity.CartaPorte) {
	el := complemento.CreateElement("cartaporte31:CartaPorte")
	el.CreateAttr("Version", orDefault(cp.Version, cfdi.VersionCartaPorte))
	el.CreateAttr("IdCCP", cp.IdCCP)
	el.CreateAttr("TranspInternac", orDefault(cp.TranspInternac, "No"))
	el.CreateAttr("TotalDistRec", cp.TotalDistRec.String())

	ubicaciones := el.CreateElement("cartaporte31:Ubicaciones")
	for _, u := range cp.Ubicaciones {
		ub := ubicaciones.CreateElement("cartaporte31:Ubicacion")
		ub.CreateAttr("TipoUbicacion", u.TipoUbicacion)
		setAttr(ub, "IDUbicacion", u.IDUbicacion)
		ub.CreateAttr("RFCRemitenteDestinatario", cfdi.NormalizeRFC(u.RFCRemitenteDestinatario))
		ub.CreateAttr("FechaHoraSalidaLlegada", u.FechaHoraSalidaLlegada.Format(dateLayout))
		if u.DistanciaRecorrida != nil {
			ub.CreateAttr("DistanciaRecorrida", u.DistanciaRecorrida.String())
		}
		dom := ub.CreateElement("cartaporte31:Domicilio")
		setAttr(dom, "Calle", u.Domicilio.Calle)
		setAttr(dom, "Municipio", u.Domicilio.Municipio)
		dom.CreateAttr("Estado", u.Domicilio.Estado)
		dom.CreateAttr("Pais", orDefault(u.Domicilio.Pais, "MEX"))
		dom.CreateAttr("CodigoPostal", u.Domicilio.CodigoPostal)
	}

	m := cp.Mercancias
	merc := el.CreateElement("cartaporte31:Mercancias")
	merc.CreateAttr("PesoBrutoTotal", m.PesoBrutoTotal.String())
	merc.CreateAttr("UnidadPeso", orDefault(m.UnidadPeso, "KGM"))
	merc.CreateAttr("NumTotalMercancias", strconv.Itoa(m.NumTotalMercancias))
	for _, line := range m.Mercancia {
		me := merc.CreateElement("cartaporte31:Mercancia")
		me.CreateAttr("BienesTransp", line.BienesTransp)
		me.CreateAttr("Descripcion", line.Descripcion)
		me.CreateAttr("Cantidad", line.Cantidad.String())
		me.CreateAttr("ClaveUnidad", line.ClaveUnidad)
		me.CreateAttr("PesoEnKg", line.PesoEnKg.String())
	}
	if at := m.Autotransporte; at != nil {
		auto := merc.CreateElement("cartaporte31:Autotransporte")
		auto.CreateAttr("PermSCT", at.PermSCT)
		auto.CreateAttr("NumPermisoSCT", at.NumPermisoSCT)
		iv := auto.CreateElement("cartaporte31:IdentificacionVehicular")
		iv.CreateAttr("ConfigVehicular", at.IdentificacionVehicular.ConfigVehicular)
		iv.CreateAttr("PesoBrutoVehicular", at.IdentificacionVehicular.PesoBrutoVehicular.String())
		iv.CreateAttr("PlacaVM", at.IdentificacionVehicular.PlacaVM)
		iv.CreateAttr("AnioModeloVM", strconv.Itoa(at.IdentificacionVehicular.AnioModeloVM))
		seg := auto.CreateElement("cartaporte31:Seguros")
		seg.CreateAttr("AseguraRespCivil", at.AseguraRespCivil)
		seg.CreateAttr("PolizaRespCivil", at.PolizaRespCivil)
	}

	figuras := el.CreateElement("cartaporte31:FiguraTransporte")
	for _, f := range cp.FiguraTransporte {
		tf := figuras.CreateElement("cartaporte31:TiposFigura")
		tf.CreateAttr("TipoFigura", f.TipoFigura)
		tf.CreateAttr("RFCFigura", cfdi.NormalizeRFC(f.RFCFigura))
		setAttr(tf, "NumLicencia", f.NumLicencia)
		tf.CreateAttr("NombreFigura", f.NombreFigura)
	}
}

func setAttr(el *etree.Element, key, value string) {
	if value != "" {
		el.CreateAttr(key, value)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
