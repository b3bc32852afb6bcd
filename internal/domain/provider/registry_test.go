package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/provider"
)

func cfg(name string, priority int, active bool) entity.ProviderConfig {
	return entity.ProviderConfig{
		Name:       name,
		Type:       entity.ProviderSmartWeb,
		SandboxURL: "https://" + name + ".test",
		Active:     active,
		Priority:   priority,
	}
}

func names(cs []entity.ProviderConfig) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestOrderedActive_FiltraYOrdena(t *testing.T) {
	reg, err := provider.NewRegistry([]entity.ProviderConfig{
		cfg("c", 3, true),
		cfg("a", 1, true),
		cfg("inactivo", 0, false),
		cfg("b", 2, true),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, names(reg.OrderedActive()))
	assert.Len(t, reg.All(), 4)
}

func TestOrderedActive_EmpateConservaOrden(t *testing.T) {
	reg, err := provider.NewRegistry([]entity.ProviderConfig{cfg("x", 1, true), cfg("y", 1, true)})
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, names(reg.OrderedActive()))
}

func TestOrderedActive_SinActivos(t *testing.T) {
	reg, err := provider.NewRegistry([]entity.ProviderConfig{cfg("a", 1, false)})
	require.NoError(t, err)

	assert.Empty(t, reg.OrderedActive())
}

func TestNewRegistry_RechazaInvalidos(t *testing.T) {
	bad := cfg("sin-url", 1, true)
	bad.SandboxURL = ""
	unknown := cfg("raro", 2, true)
	unknown.Type = "soap-legacy"

	_, err := provider.NewRegistry([]entity.ProviderConfig{bad, unknown, cfg("a", 1, true), cfg("a", 2, true)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sin-url")
	assert.Contains(t, err.Error(), "raro")
	assert.Contains(t, err.Error(), "duplicado")
}

func TestRegistry_NoExponeSliceInterno(t *testing.T) {
	reg, err := provider.NewRegistry([]entity.ProviderConfig{cfg("a", 1, true)})
	require.NoError(t, err)

	got := reg.OrderedActive()
	got[0].Name = "mutado"

	_, ok := reg.Find("a")
	assert.True(t, ok)
}
