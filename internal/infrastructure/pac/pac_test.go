package pac_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cartaporte-api/internal/domain/cartaporte/cartaportetest"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/cfdixml"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/pac"
)

var demoUUIDFormat = regexp.MustCompile(`^[0-9A-F]{8}-[0-9A-F]{4}-5[0-9A-F]{3}-[89AB][0-9A-F]{3}-[0-9A-F]{12}$`)

func validXML(t *testing.T) []byte {
	t.Helper()
	raw, err := cfdixml.NewXMLBuilderService().Build(cartaportetest.ValidComprobante())
	require.NoError(t, err)
	return raw
}

func fixedNow() time.Time { return time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC) }

// ── demo ──────────────────────────────────────────────────────────────────────

func TestDemo_StampDeterminista(t *testing.T) {
	c := pac.NewDemoClient(fixedNow)
	raw := validXML(t)

	res, err := c.Stamp(context.Background(), raw, entity.EnvironmentSandbox)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Regexp(t, demoUUIDFormat, res.UUID)
	assert.Contains(t, string(res.StampedXML), "tfd:TimbreFiscalDigital")
	assert.Contains(t, res.QRCode, "id="+res.UUID)
	assert.True(t, strings.HasPrefix(res.CadenaOriginal, "||1.1|"+res.UUID+"|"))

	again, err := c.Stamp(context.Background(), raw, entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.Equal(t, res.UUID, again.UUID)

	expected, err := pac.DemoUUID(raw)
	require.NoError(t, err)
	assert.Equal(t, expected, res.UUID)

	tm, err := cfdixml.ExtractTimbre(res.StampedXML)
	require.NoError(t, err)
	assert.Equal(t, res.UUID, tm.UUID)
	assert.Equal(t, res.SelloSAT, tm.SelloSAT)
}

func TestDemo_RechazaXMLYaTimbrado(t *testing.T) {
	c := pac.NewDemoClient(fixedNow)
	res, err := c.Stamp(context.Background(), validXML(t), entity.EnvironmentSandbox)
	require.NoError(t, err)

	second, err := c.Stamp(context.Background(), res.StampedXML, entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.True(t, second.Rejected)
}

func TestDemo_RechazaXMLInvalido(t *testing.T) {
	res, err := pac.NewDemoClient(fixedNow).Stamp(context.Background(), []byte("<nope"), entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.True(t, res.Rejected)
}

func TestDemo_CancelCodigos(t *testing.T) {
	c := pac.NewDemoClient(fixedNow)
	req := pac.CancelRequest{UUID: "6F1F8A5B-0C1D-5E2F-9A3B-4C5D6E7F8A9B", RFC: cartaportetest.EmisorRFC}

	req.Motivo = "02"
	res, err := c.Cancel(context.Background(), req, entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "201", res.StatusCode)
	assert.Contains(t, res.Acuse, "<EstatusUUID>201</EstatusUUID>")

	req.Motivo = "03"
	res, err = c.Cancel(context.Background(), req, entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.Equal(t, "200", res.StatusCode)
}

// ── smartweb ──────────────────────────────────────────────────────────────────

func smartweb(url string) entity.ProviderConfig {
	return entity.ProviderConfig{
		Name: "sw", Type: entity.ProviderSmartWeb, SandboxURL: url,
		Credentials: entity.ProviderCredentials{Token: "tkn"}, Active: true,
	}
}

func TestSmartWeb_StampExitoso(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"uuid":"abc-123","xml_timbrado":"<x/>","qr_code":"qr","cadena_original":"||1.1||","sello_digital":"sd","folio_fiscal":"ABC-123"}}`))
	}))
	defer srv.Close()

	c := pac.NewSmartWebClient(smartweb(srv.URL), srv.Client())
	res, err := c.Stamp(context.Background(), []byte("<cfdi/>"), entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ABC-123", res.UUID)
	assert.Equal(t, "qr", res.QRCode)
	assert.Equal(t, "sd", res.SelloDigital)
	assert.Equal(t, "<cfdi/>", got["xml"])
	assert.Equal(t, "sandbox", got["ambiente"])
	assert.Equal(t, "cartaporte", got["tipo_documento"])
}

func TestSmartWeb_RechazoDeContenido(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"CFDI40102 RFC del emisor inválido"}`))
	}))
	defer srv.Close()

	res, err := pac.NewSmartWebClient(smartweb(srv.URL), srv.Client()).
		Stamp(context.Background(), []byte("<cfdi/>"), entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Rejected)
	assert.Contains(t, res.Error, "CFDI40102")
}

func TestSmartWeb_FallaTransitoria(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := pac.NewSmartWebClient(smartweb(srv.URL), srv.Client()).
		Stamp(context.Background(), []byte("<cfdi/>"), entity.EnvironmentSandbox)
	assert.ErrorContains(t, err, "HTTP 502")
}

func TestSmartWeb_FalloSinRechazo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"servicio saturado"}`))
	}))
	defer srv.Close()

	res, err := pac.NewSmartWebClient(smartweb(srv.URL), srv.Client()).
		Stamp(context.Background(), []byte("<cfdi/>"), entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.Rejected)
	assert.Equal(t, "servicio saturado", res.Error)
}

func TestSmartWeb_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pac.NewSmartWebClient(smartweb(srv.URL), srv.Client()).
		Stamp(ctx, []byte("<cfdi/>"), entity.EnvironmentSandbox)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSmartWeb_CancelRutaYCodigo(t *testing.T) {
	const id = "6F1F8A5B-0C1D-5E2F-9A3B-4C5D6E7F8A9B"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cfdi33/cancel/EKU9003173C9/"+id+"/01/AAAA-BBBB", r.URL.Path)
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"success","data":{"acuse":"<Acuse/>","uuid":{"` + id + `":"202"}}}`))
	}))
	defer srv.Close()

	res, err := pac.NewSmartWebClient(smartweb(srv.URL+"/"), srv.Client()).Cancel(context.Background(), pac.CancelRequest{
		UUID: id, RFC: "EKU9003173C9", Motivo: "01", FolioSustitucion: "AAAA-BBBB",
	}, entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "202", res.StatusCode)
	assert.Equal(t, "<Acuse/>", res.Acuse)
}

func TestSmartWeb_CancelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cfdi33/cancel/EKU9003173C9/X/02", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","message":"UUID no encontrado"}`))
	}))
	defer srv.Close()

	res, err := pac.NewSmartWebClient(smartweb(srv.URL), srv.Client()).Cancel(context.Background(), pac.CancelRequest{
		UUID: "X", RFC: "EKU9003173C9", Motivo: "02",
	}, entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "UUID no encontrado", res.Error)
}

func TestSmartWeb_SinURLParaAmbiente(t *testing.T) {
	_, err := pac.NewSmartWebClient(smartweb("http://x"), http.DefaultClient).
		Stamp(context.Background(), []byte("<cfdi/>"), entity.EnvironmentProduction)
	assert.Error(t, err)
}

// ── finkok ────────────────────────────────────────────────────────────────────

func finkok(url string) entity.ProviderConfig {
	return entity.ProviderConfig{
		Name: "fk", Type: entity.ProviderFinkok, SandboxURL: url,
		Credentials: entity.ProviderCredentials{User: "usr", Password: "pwd"}, Active: true,
	}
}

func TestFinkok_StampExitoso(t *testing.T) {
	stamped, err := pac.NewDemoClient(fixedNow).Stamp(context.Background(), validXML(t), entity.EnvironmentSandbox)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stamp", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "<username>usr</username>")
		assert.Contains(t, string(body), "<password>pwd</password>")
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, `<senv:Envelope xmlns:senv="http://schemas.xmlsoap.org/soap/envelope/"><senv:Body>`+
			`<tns:stampResponse xmlns:tns="http://facturacion.finkok.com/stamp"><tns:stampResult>`+
			`<tns:xml><![CDATA[`+string(stamped.StampedXML)+`]]></tns:xml>`+
			`<tns:UUID>`+strings.ToLower(stamped.UUID)+`</tns:UUID>`+
			`<tns:CodEstatus>Comprobante timbrado satisfactoriamente</tns:CodEstatus>`+
			`<tns:SatSeal>`+stamped.SelloSAT+`</tns:SatSeal>`+
			`</tns:stampResult></tns:stampResponse></senv:Body></senv:Envelope>`)
	}))
	defer srv.Close()

	res, err := pac.NewFinkokClient(finkok(srv.URL), srv.Client()).
		Stamp(context.Background(), validXML(t), entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, stamped.UUID, res.UUID)
	assert.Equal(t, stamped.CadenaOriginal, res.CadenaOriginal)
	assert.Equal(t, stamped.SelloDigital, res.SelloDigital)
	assert.Contains(t, res.QRCode, "re="+cartaportetest.EmisorRFC)
}

func TestFinkok_IncidenciaEsRechazo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<senv:Envelope xmlns:senv="http://schemas.xmlsoap.org/soap/envelope/"><senv:Body>`+
			`<stampResponse><stampResult><Incidencias><Incidencia>`+
			`<CodigoError>CFDI40108</CodigoError><MensajeIncidencia>TipoDeComprobante inválido</MensajeIncidencia>`+
			`</Incidencia></Incidencias></stampResult></stampResponse></senv:Body></senv:Envelope>`)
	}))
	defer srv.Close()

	res, err := pac.NewFinkokClient(finkok(srv.URL), srv.Client()).
		Stamp(context.Background(), []byte("<cfdi/>"), entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Contains(t, res.Error, "CFDI40108")
}

func TestFinkok_SOAPFaultEsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `<senv:Envelope xmlns:senv="http://schemas.xmlsoap.org/soap/envelope/"><senv:Body>`+
			`<senv:Fault><faultcode>senv:Server</faultcode><faultstring>Servicio no disponible</faultstring></senv:Fault>`+
			`</senv:Body></senv:Envelope>`)
	}))
	defer srv.Close()

	_, err := pac.NewFinkokClient(finkok(srv.URL), srv.Client()).
		Stamp(context.Background(), []byte("<cfdi/>"), entity.EnvironmentSandbox)
	assert.ErrorContains(t, err, "Servicio no disponible")
}

func TestFinkok_Cancel(t *testing.T) {
	const id = "6F1F8A5B-0C1D-5E2F-9A3B-4C5D6E7F8A9B"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cancel", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `Motivo="02"`)
		assert.Contains(t, string(body), "<taxpayer_id>EKU9003173C9</taxpayer_id>")
		_, _ = io.WriteString(w, `<senv:Envelope xmlns:senv="http://schemas.xmlsoap.org/soap/envelope/"><senv:Body>`+
			`<cancelResponse><cancelResult><Acuse>acuse-xml</Acuse><Folios><Folio>`+
			`<UUID>`+id+`</UUID><EstatusUUID>201</EstatusUUID></Folio></Folios>`+
			`</cancelResult></cancelResponse></senv:Body></senv:Envelope>`)
	}))
	defer srv.Close()

	res, err := pac.NewFinkokClient(finkok(srv.URL), srv.Client()).Cancel(context.Background(), pac.CancelRequest{
		UUID: id, RFC: "EKU9003173C9", Motivo: "02",
	}, entity.EnvironmentSandbox)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "201", res.StatusCode)
	assert.Equal(t, "acuse-xml", res.Acuse)
}

// ── fábrica ───────────────────────────────────────────────────────────────────

func TestFactory_ClientFor(t *testing.T) {
	f := pac.NewFactory(nil)
	for typ, want := range map[entity.ProviderType]interface{}{
		entity.ProviderSmartWeb: &pac.SmartWebClient{},
		entity.ProviderFinkok:   &pac.FinkokClient{},
		entity.ProviderDemo:     &pac.DemoClient{},
	} {
		c, err := f.ClientFor(entity.ProviderConfig{Name: string(typ), Type: typ})
		require.NoError(t, err)
		assert.IsType(t, want, c)
	}
	_, err := f.ClientFor(entity.ProviderConfig{Name: "x", Type: "otro"})
	assert.Error(t, err)
}
