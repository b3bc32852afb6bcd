// Package cartaportetest provee documentos Carta Porte válidos para pruebas.
package cartaportetest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/pkg/cfdi"
)

// RFCs de pruebas publicados por el SAT.
const (
	EmisorRFC   = "EKU9003173C9"
	ReceptorRFC = "EKU9003173C9"
	OperadorRFC = "CACX7605101P8"
)

// ValidComprobante devuelve un traslado mínimo válido: 2 ubicaciones, 1 mercancía y
// 1 operador con licencia.
func ValidComprobante() *entity.Comprobante {
	fecha := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	distancia := decimal.NewFromInt(120)
	return &entity.Comprobante{
		Version:           cfdi.VersionCFDI,
		Serie:             "CP",
		Folio:             "1001",
		Fecha:             fecha,
		LugarExpedicion:   "06600",
		TipoDeComprobante: cfdi.TipoComprobanteTraslado,
		Moneda:            "XXX",
		Namespaces: map[string]string{
			cfdi.PrefixCFDI:       cfdi.NamespaceCFDI,
			cfdi.PrefixCartaPorte: cfdi.NamespaceCartaPorte,
		},
		Emisor: entity.Emisor{
			Rfc:           EmisorRFC,
			Nombre:        "ESCUELA KEMPER URGATE",
			RegimenFiscal: "601",
		},
		Receptor: entity.Receptor{
			Rfc:                     ReceptorRFC,
			Nombre:                  "ESCUELA KEMPER URGATE",
			DomicilioFiscalReceptor: "06600",
			RegimenFiscalReceptor:   "601",
			UsoCFDI:                 "S01",
		},
		CartaPorte: &entity.CartaPorte{
			Version:        cfdi.VersionCartaPorte,
			IdCCP:          "CCCBCD94-870A-4332-A52A-A52AA52AA52A",
			TranspInternac: "No",
			TotalDistRec:   distancia,
			Ubicaciones: []entity.Ubicacion{
				{
					TipoUbicacion:            cfdi.TipoUbicacionOrigen,
					IDUbicacion:              "OR000001",
					RFCRemitenteDestinatario: EmisorRFC,
					FechaHoraSalidaLlegada:   fecha,
					Domicilio:                entity.Domicilio{Estado: "CMX", Pais: "MEX", CodigoPostal: "06600"},
				},
				{
					TipoUbicacion:            cfdi.TipoUbicacionDestino,
					IDUbicacion:              "DE000001",
					RFCRemitenteDestinatario: ReceptorRFC,
					FechaHoraSalidaLlegada:   fecha.Add(4 * time.Hour),
					DistanciaRecorrida:       &distancia,
					Domicilio:                entity.Domicilio{Estado: "PUE", Pais: "MEX", CodigoPostal: "72000"},
				},
			},
			Mercancias: entity.Mercancias{
				PesoBrutoTotal:     decimal.NewFromInt(1500),
				UnidadPeso:         "KGM",
				NumTotalMercancias: 1,
				Mercancia: []entity.Mercancia{
					{
						BienesTransp: "24112700",
						Descripcion:  "Tarimas de madera",
						Cantidad:     decimal.NewFromInt(30),
						ClaveUnidad:  "H87",
						PesoEnKg:     decimal.NewFromInt(1500),
					},
				},
				Autotransporte: &entity.Autotransporte{
					PermSCT:       "TPAF01",
					NumPermisoSCT: "0X2XTXZ0X5X0X3X2X1X0",
					IdentificacionVehicular: entity.IdentificacionVehicular{
						ConfigVehicular:    "C2",
						PesoBrutoVehicular: decimal.NewFromInt(12),
						PlacaVM:            "501AA1",
						AnioModeloVM:       2022,
					},
					AseguraRespCivil: "SW Seguros",
					PolizaRespCivil:  "123456789",
				},
			},
			FiguraTransporte: []entity.FiguraTransporte{
				{
					TipoFigura:   cfdi.FiguraOperador,
					RFCFigura:    OperadorRFC,
					NumLicencia:  "a234567890",
					NombreFigura: "Juan Pérez",
				},
			},
		},
	}
}
