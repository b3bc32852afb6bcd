// Package provider mantiene el registro ordenado de PACs configurados.
package provider

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// Registry conjunto inmutable de configuraciones de PAC.
type Registry struct {
	configs []entity.ProviderConfig
}

// NewRegistry valida cada configuración y rechaza nombres duplicados.
func NewRegistry(configs []entity.ProviderConfig) (*Registry, error) {
	seen := make(map[string]bool, len(configs))
	var errs []error
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("pac %s: nombre duplicado", c.Name))
			continue
		}
		seen[c.Name] = true
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	cp := make([]entity.ProviderConfig, len(configs))
	copy(cp, configs)
	return &Registry{configs: cp}, nil
}

// All devuelve todas las configuraciones (activas o no).
func (r *Registry) All() []entity.ProviderConfig {
	out := make([]entity.ProviderConfig, len(r.configs))
	copy(out, r.configs)
	return out
}

// OrderedActive devuelve los PACs activos por prioridad ascendente. Empates conservan
// el orden de configuración.
func (r *Registry) OrderedActive() []entity.ProviderConfig {
	out := make([]entity.ProviderConfig, 0, len(r.configs))
	for _, c := range r.configs {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Find busca un PAC por nombre.
func (r *Registry) Find(name string) (entity.ProviderConfig, bool) {
	for _, c := range r.configs {
		if c.Name == name {
			return c, true
		}
	}
	return entity.ProviderConfig{}, false
}
