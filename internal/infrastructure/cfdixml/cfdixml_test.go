package cfdixml_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/cartaporte"
	"github.com/jhoicas/cartaporte-api/internal/domain/cartaporte/cartaportetest"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/cfdixml"
)

func buildValid(t *testing.T) []byte {
	t.Helper()
	raw, err := cfdixml.NewXMLBuilderService().Build(cartaportetest.ValidComprobante())
	require.NoError(t, err)
	return raw
}

func TestBuild_ParseRoundTripIsValid(t *testing.T) {
	raw := buildValid(t)
	assert.Contains(t, string(raw), "cartaporte31:CartaPorte")

	c, err := cfdixml.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "4.0", c.Version)
	assert.Equal(t, "http://www.sat.gob.mx/cfd/4", c.Namespaces["cfdi"])
	require.NotNil(t, c.CartaPorte)
	assert.Len(t, c.CartaPorte.Ubicaciones, 2)
	require.NotNil(t, c.CartaPorte.Ubicaciones[1].DistanciaRecorrida)
	assert.Equal(t, "120", c.CartaPorte.Ubicaciones[1].DistanciaRecorrida.String())
	assert.Equal(t, "501AA1", c.CartaPorte.Mercancias.Autotransporte.IdentificacionVehicular.PlacaVM)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC), c.Fecha)

	res := cartaporte.Validate(c)
	assert.True(t, res.IsValid, "%+v", res.Errors)
}

func TestParse_SinComplementoFallaValidacion(t *testing.T) {
	raw := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Version="4.0" TipoDeComprobante="T" LugarExpedicion="06600">
  <cfdi:Emisor Rfc="EKU9003173C9"/>
  <cfdi:Receptor Rfc="EKU9003173C9" DomicilioFiscalReceptor="06600"/>
</cfdi:Comprobante>`)
	c, err := cfdixml.Parse(raw)
	require.NoError(t, err)
	assert.Nil(t, c.CartaPorte)

	res := cartaporte.Validate(c)
	assert.False(t, res.IsValid)
}

func TestParse_XMLMalFormado(t *testing.T) {
	_, err := cfdixml.Parse([]byte("<cfdi:Comprobante"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = cfdixml.Parse([]byte("<Factura/>"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParse_DecimalInvalido(t *testing.T) {
	raw := bytes.Replace(buildValid(t), []byte(`TotalDistRec="120"`), []byte(`TotalDistRec="ciento"`), 1)
	_, err := cfdixml.Parse(raw)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFingerprint_Estable(t *testing.T) {
	a, err := cfdixml.Fingerprint([]byte(`<a x="1" y="2"><b/></a>`))
	require.NoError(t, err)
	b, err := cfdixml.Fingerprint([]byte(`<a y="2"  x="1"><b></b></a>`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := cfdixml.Fingerprint([]byte(`<a x="1" y="3"><b/></a>`))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestAddTimbre_ExtractTimbre(t *testing.T) {
	fecha := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	stamped, err := cfdixml.AddTimbre(buildValid(t), cfdixml.Timbre{
		UUID:             "6F1F8A5B-0C1D-5E2F-9A3B-4C5D6E7F8A9B",
		FechaTimbrado:    &fecha,
		RfcProvCertif:    "SPR190613I52",
		SelloCFD:         "abc",
		NoCertificadoSAT: "30001000000500003456",
		SelloSAT:         "def",
	})
	require.NoError(t, err)
	assert.Contains(t, string(stamped), "tfd:TimbreFiscalDigital")

	tm, err := cfdixml.ExtractTimbre(stamped)
	require.NoError(t, err)
	assert.Equal(t, "6F1F8A5B-0C1D-5E2F-9A3B-4C5D6E7F8A9B", tm.UUID)
	assert.Equal(t, cartaportetest.ValidComprobante().CartaPorte.IdCCP, tm.IDCCP)
	require.NotNil(t, tm.FechaTimbrado)
	assert.True(t, fecha.Equal(*tm.FechaTimbrado))
	assert.Equal(t, "||1.1|6F1F8A5B-0C1D-5E2F-9A3B-4C5D6E7F8A9B|2026-03-10T10:00:00|SPR190613I52|abc|30001000000500003456||", tm.CadenaOriginal())

	_, err = cfdixml.AddTimbre(stamped, cfdixml.Timbre{UUID: "X"})
	assert.ErrorIs(t, err, domain.ErrAlreadyStamped)
}

func TestExtractTimbre_SinTimbre(t *testing.T) {
	_, err := cfdixml.ExtractTimbre(buildValid(t))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
