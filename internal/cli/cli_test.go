package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jhoicas/cartaporte-api/internal/cli"
	"github.com/jhoicas/cartaporte-api/internal/domain/cartaporte/cartaportetest"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/cfdixml"
	pkgjwt "github.com/jhoicas/cartaporte-api/pkg/jwt"
)

const demoProviders = `providers:
  - name: demo
    type: demo
    active: true
    priority: 1
  - name: sw
    type: smartweb
    sandbox_url: https://sw.invalid
    token: secreto
    active: false
    priority: 0
`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func validXML(t *testing.T) string {
	t.Helper()
	raw, err := cfdixml.NewXMLBuilderService().Build(cartaportetest.ValidComprobante())
	require.NoError(t, err)
	return writeFile(t, "cp.xml", raw)
}

func run(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRoot_FormatoInvalido(t *testing.T) {
	_, err := run(cli.NewRootCommand(), "--format", "xml", "fingerprint", validXML(t))
	require.Error(t, err)
	assert.Equal(t, cli.ExitCommandError, cli.GetExitCode(err))
}

func TestValidate_Valido(t *testing.T) {
	out, err := run(cli.NewRootCommand(), "validate", validXML(t))
	require.NoError(t, err)
	assert.Contains(t, out, "válido")
	assert.Equal(t, cli.ExitSuccess, cli.GetExitCode(err))
}

func TestValidate_InvalidoJSON(t *testing.T) {
	comp := cartaportetest.ValidComprobante()
	comp.CartaPorte.Ubicaciones = comp.CartaPorte.Ubicaciones[:1]
	raw, err := cfdixml.NewXMLBuilderService().Build(comp)
	require.NoError(t, err)

	out, err := run(cli.NewRootCommand(), "--format", "json", "validate", writeFile(t, "bad.xml", raw))
	require.Error(t, err)
	assert.Equal(t, cli.ExitFailure, cli.GetExitCode(err))

	var view cli.ValidationView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.False(t, view.Valid)
	assert.NotEmpty(t, view.Errors)
	assert.NotEmpty(t, view.Fingerprint)
}

func TestValidate_ArchivoInexistente(t *testing.T) {
	_, err := run(cli.NewRootCommand(), "validate", filepath.Join(t.TempDir(), "no.xml"))
	require.Error(t, err)
	assert.Equal(t, cli.ExitCommandError, cli.GetExitCode(err))
}

func TestFingerprint_CoincideConLaLibreria(t *testing.T) {
	path := validXML(t)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := cfdixml.Fingerprint(raw)
	require.NoError(t, err)

	out, err := run(cli.NewRootCommand(), "fingerprint", path)
	require.NoError(t, err)
	assert.Equal(t, want+"\n", out)
}

func TestStamp_DemoEscribeXMLTimbrado(t *testing.T) {
	providers := writeFile(t, "providers.yaml", []byte(demoProviders))
	dst := filepath.Join(t.TempDir(), "timbrado.xml")

	out, err := run(cli.NewRootCommand(), "--format", "yaml", "--providers", providers,
		"stamp", validXML(t), "--output", dst)
	require.NoError(t, err)

	var view cli.StampView
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.True(t, view.Success)
	assert.Equal(t, "demo", view.Provider)
	require.Len(t, view.Attempts, 1)

	stamped, err := os.ReadFile(dst)
	require.NoError(t, err)
	timbre, err := cfdixml.ExtractTimbre(stamped)
	require.NoError(t, err)
	assert.Equal(t, view.UUID, timbre.UUID)
}

func TestStamp_PACCaidoAgotaIntentos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	providers := writeFile(t, "providers.yaml", []byte(`providers:
  - name: sw
    type: smartweb
    sandbox_url: `+srv.URL+`
    token: t
    active: true
    priority: 1
`))

	out, err := run(cli.NewRootCommand(), "--format", "json", "--providers", providers,
		"stamp", validXML(t), "--retries", "2", "--timeout", "2s")
	require.Error(t, err)
	assert.Equal(t, cli.ExitFailure, cli.GetExitCode(err))

	var view cli.StampView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.False(t, view.Success)
	assert.Len(t, view.Attempts, 2)
}

func TestStamp_SinPACActivo(t *testing.T) {
	providers := writeFile(t, "providers.yaml", []byte("providers: []\n"))
	_, err := run(cli.NewRootCommand(), "--providers", providers, "stamp", validXML(t))
	require.Error(t, err)
	assert.Equal(t, cli.ExitCommandError, cli.GetExitCode(err))
}

func TestProvidersList_ActivosPrimeroSinCredenciales(t *testing.T) {
	providers := writeFile(t, "providers.yaml", []byte(demoProviders))
	out, err := run(cli.NewRootCommand(), "--format", "json", "--providers", providers, "providers", "list")
	require.NoError(t, err)

	var views []cli.ProviderView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "demo", views[0].Name)
	assert.Equal(t, "sw", views[1].Name)
	assert.False(t, views[1].Active)
	assert.True(t, views[1].Credentials)
	assert.NotContains(t, out, "secreto")
}

type fakeSyncer struct {
	got []entity.ProviderConfig
}

func (f *fakeSyncer) Upsert(_ context.Context, p []entity.ProviderConfig) (int64, error) {
	f.got = p
	return 1, nil
}

func TestProvidersSync(t *testing.T) {
	providers := writeFile(t, "providers.yaml", []byte(demoProviders))
	fake := &fakeSyncer{}
	closed := false
	opts := &cli.RootOptions{Format: "text", Providers: providers}
	cmd := cli.NewProvidersSyncCommand(opts, func(context.Context) (cli.ProviderSyncer, func(), error) {
		return fake, func() { closed = true }, nil
	})

	out, err := run(cmd)
	require.NoError(t, err)
	assert.Contains(t, out, "2 PACs sincronizados, 1 desactivados")
	assert.Len(t, fake.got, 2)
	assert.True(t, closed)
}

func TestToken_FirmaConJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "secreto-cli")
	t.Setenv("JWT_ISSUER", "cartaporte-cli")

	out, err := run(cli.NewRootCommand(), "token", "--subject", "ops", "--role", "consulta")
	require.NoError(t, err)

	id, err := pkgjwt.Parse("secreto-cli", "cartaporte-cli", string(bytes.TrimSpace([]byte(out))))
	require.NoError(t, err)
	assert.Equal(t, "ops", id.Subject)
	assert.Equal(t, "consulta", id.Role)

	_, err = run(cli.NewRootCommand(), "token", "--subject", "ops", "--role", "root")
	assert.Equal(t, cli.ExitCommandError, cli.GetExitCode(err))
}
