package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Comprobante CFDI 4.0 de traslado con complemento Carta Porte.
// Es la forma estructurada del documento que se valida antes de timbrar.
type Comprobante struct {
	Version           string            `json:"version"`
	Serie             string            `json:"serie,omitempty"`
	Folio             string            `json:"folio,omitempty"`
	Fecha             time.Time         `json:"fecha"`
	LugarExpedicion   string            `json:"lugar_expedicion"` // Código postal del emisor
	TipoDeComprobante string            `json:"tipo_de_comprobante"`
	Moneda            string            `json:"moneda,omitempty"`
	Namespaces        map[string]string `json:"namespaces,omitempty"` // prefijo → URI declarados en el XML
	Emisor            Emisor            `json:"emisor"`
	Receptor          Receptor          `json:"receptor"`
	CartaPorte        *CartaPorte       `json:"carta_porte"`
}

// Emisor del comprobante.
type Emisor struct {
	Rfc           string `json:"rfc"`
	Nombre        string `json:"nombre"`
	RegimenFiscal string `json:"regimen_fiscal"`
}

// Receptor del comprobante.
type Receptor struct {
	Rfc                     string `json:"rfc"`
	Nombre                  string `json:"nombre"`
	DomicilioFiscalReceptor string `json:"domicilio_fiscal_receptor"` // Código postal
	RegimenFiscalReceptor   string `json:"regimen_fiscal_receptor"`
	UsoCFDI                 string `json:"uso_cfdi"`
}

// CartaPorte complemento 3.1.
type CartaPorte struct {
	Version          string             `json:"version"`
	IdCCP            string             `json:"id_ccp"`
	TranspInternac   string             `json:"transp_internac"` // "Sí" | "No"
	TotalDistRec     decimal.Decimal    `json:"total_dist_rec"`
	Ubicaciones      []Ubicacion        `json:"ubicaciones"`
	Mercancias       Mercancias         `json:"mercancias"`
	FiguraTransporte []FiguraTransporte `json:"figura_transporte"`
}

// Ubicacion origen o destino del traslado.
type Ubicacion struct {
	TipoUbicacion            string           `json:"tipo_ubicacion"` // Origen | Destino
	IDUbicacion              string           `json:"id_ubicacion,omitempty"`
	RFCRemitenteDestinatario string           `json:"rfc_remitente_destinatario"`
	FechaHoraSalidaLlegada   time.Time        `json:"fecha_hora_salida_llegada"`
	DistanciaRecorrida       *decimal.Decimal `json:"distancia_recorrida,omitempty"` // obligatoria en Destino
	Domicilio                Domicilio        `json:"domicilio"`
}

// Domicilio de una ubicación.
type Domicilio struct {
	Calle        string `json:"calle,omitempty"`
	Municipio    string `json:"municipio,omitempty"`
	Estado       string `json:"estado"`
	Pais         string `json:"pais"`
	CodigoPostal string `json:"codigo_postal"`
}

// Mercancias nodo de mercancías transportadas.
type Mercancias struct {
	PesoBrutoTotal     decimal.Decimal `json:"peso_bruto_total"`
	UnidadPeso         string          `json:"unidad_peso"`
	NumTotalMercancias int             `json:"num_total_mercancias"`
	Mercancia          []Mercancia     `json:"mercancia"`
	Autotransporte     *Autotransporte `json:"autotransporte,omitempty"`
}

// Mercancia línea de mercancía.
type Mercancia struct {
	BienesTransp string          `json:"bienes_transp"`
	Descripcion  string          `json:"descripcion"`
	Cantidad     decimal.Decimal `json:"cantidad"`
	ClaveUnidad  string          `json:"clave_unidad"`
	PesoEnKg     decimal.Decimal `json:"peso_en_kg"`
}

// Autotransporte datos del vehículo (transporte terrestre).
type Autotransporte struct {
	PermSCT                 string                  `json:"perm_sct"`
	NumPermisoSCT           string                  `json:"num_permiso_sct"`
	IdentificacionVehicular IdentificacionVehicular `json:"identificacion_vehicular"`
	AseguraRespCivil        string                  `json:"asegura_resp_civil"`
	PolizaRespCivil         string                  `json:"poliza_resp_civil"`
}

// IdentificacionVehicular placa y configuración del vehículo.
type IdentificacionVehicular struct {
	ConfigVehicular    string          `json:"config_vehicular"`
	PesoBrutoVehicular decimal.Decimal `json:"peso_bruto_vehicular"`
	PlacaVM            string          `json:"placa_vm"`
	AnioModeloVM       int             `json:"anio_modelo_vm"`
}

// FiguraTransporte operador, propietario, arrendador o notificado.
type FiguraTransporte struct {
	TipoFigura   string `json:"tipo_figura"`
	RFCFigura    string `json:"rfc_figura"`
	NumLicencia  string `json:"num_licencia,omitempty"` // obligatoria para operador (01)
	NombreFigura string `json:"nombre_figura"`
}
