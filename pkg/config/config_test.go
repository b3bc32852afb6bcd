package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/pkg/config"
)

const providersYAML = `
providers:
  - name: smartweb
    type: smartweb
    sandbox_url: https://services.test.sw.com.mx/
    production_url: https://services.sw.com.mx
    token: ${SW_TOKEN_TEST}
    active: true
    priority: 1
  - name: demo
    type: DEMO
    active: true
    priority: 9
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadProviders_YAML(t *testing.T) {
	t.Setenv("SW_TOKEN_TEST", "tok-123")
	path := writeFile(t, "providers.yaml", providersYAML)

	list, err := config.LoadProviders(path)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, entity.ProviderSmartWeb, list[0].Type)
	assert.Equal(t, "https://services.test.sw.com.mx", list[0].SandboxURL)
	assert.Equal(t, "tok-123", list[0].Credentials.Token)
	assert.True(t, list[0].Active)
	assert.Equal(t, entity.ProviderDemo, list[1].Type)
	assert.Equal(t, 9, list[1].Priority)
}

func TestLoadProviders_TipoDesconocido(t *testing.T) {
	path := writeFile(t, "providers.yaml", "providers:\n  - name: x\n    type: soap\n")
	_, err := config.LoadProviders(path)
	assert.Error(t, err)
}

func TestLoadProviders_ArchivoInexistente(t *testing.T) {
	_, err := config.LoadProviders(filepath.Join(t.TempDir(), "nada.yaml"))
	assert.Error(t, err)
}

func TestFileProviderLoader(t *testing.T) {
	path := writeFile(t, "providers.json", `{"providers":[{"name":"demo","type":"demo","active":true}]}`)
	list, err := config.FileProviderLoader{Path: path}.LoadProviders(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "demo", list[0].Name)
}

func TestLoad_ValoresPorDefecto(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.PAC.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.PAC.CallTimeout)
	assert.Equal(t, time.Second, cfg.PAC.BackoffBase)
	assert.Equal(t, "sandbox", cfg.PAC.Environment)
	assert.Equal(t, config.StorePostgres, cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Lifecycle.StampedWithoutTransit)
	assert.Equal(t, 72*time.Hour, cfg.Lifecycle.TransitStale)
}

func TestLoad_EnvSobrescribe(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAC_MAX_RETRIES", "5")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PAC_CALL_TIMEOUT_SECONDS", "10")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.PAC.MaxRetries)
	assert.Equal(t, config.StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 10*time.Second, cfg.PAC.CallTimeout)
}

func TestLoad_Invalido(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PAC_PROVIDERS_SOURCE", "db")
	_, err := config.Load()
	assert.Error(t, err)
}
