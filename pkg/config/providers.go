package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// providerEntry forma de cada PAC en el archivo. Las credenciales admiten ${VAR}.
type providerEntry struct {
	Name          string `mapstructure:"name"`
	Type          string `mapstructure:"type"`
	SandboxURL    string `mapstructure:"sandbox_url"`
	ProductionURL string `mapstructure:"production_url"`
	Token         string `mapstructure:"token"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Active        bool   `mapstructure:"active"`
	Priority      int    `mapstructure:"priority"`
}

// LoadProviders lee la lista `providers:` de un archivo YAML o JSON.
func LoadProviders(path string) ([]entity.ProviderConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("leer %s: %w", path, err)
	}
	var file struct {
		Providers []providerEntry `mapstructure:"providers"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decodificar %s: %w", path, err)
	}

	out := make([]entity.ProviderConfig, 0, len(file.Providers))
	for _, p := range file.Providers {
		t, err := entity.ParseProviderType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("pac %s: %w", p.Name, err)
		}
		out = append(out, entity.ProviderConfig{
			ID:            p.Name,
			Name:          strings.TrimSpace(p.Name),
			Type:          t,
			SandboxURL:    strings.TrimRight(p.SandboxURL, "/"),
			ProductionURL: strings.TrimRight(p.ProductionURL, "/"),
			Credentials: entity.ProviderCredentials{
				Token:    os.ExpandEnv(p.Token),
				User:     os.ExpandEnv(p.User),
				Password: os.ExpandEnv(p.Password),
			},
			Active:   p.Active,
			Priority: p.Priority,
		})
	}
	return out, nil
}

// FileProviderLoader Configuration Loader respaldado por archivo; relee en cada llamada
// para que un cambio de prioridades no requiera reiniciar.
type FileProviderLoader struct {
	Path string
}

// LoadProviders implementa repository.ProviderConfigLoader.
func (l FileProviderLoader) LoadProviders(ctx context.Context) ([]entity.ProviderConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadProviders(l.Path)
}
