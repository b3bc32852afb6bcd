package entity

import (
	"fmt"
	"strings"

	"github.com/jhoicas/cartaporte-api/internal/domain"
)

// ProviderType tipo de PAC; determina el adaptador de protocolo.
type ProviderType string

const (
	ProviderSmartWeb ProviderType = "smartweb" // REST JSON + Bearer
	ProviderFinkok   ProviderType = "finkok"   // SOAP, credenciales en el cuerpo
	ProviderDemo     ProviderType = "demo"     // determinista, sin red
)

// ParseProviderType valida el tipo en la frontera del sistema.
func ParseProviderType(s string) (ProviderType, error) {
	switch t := ProviderType(strings.ToLower(strings.TrimSpace(s))); t {
	case ProviderSmartWeb, ProviderFinkok, ProviderDemo:
		return t, nil
	default:
		return "", fmt.Errorf("tipo de PAC desconocido %q (usar smartweb|finkok|demo)", s)
	}
}

// Environment ambiente del PAC.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// ParseEnvironment valida el ambiente; vacío equivale a sandbox.
func ParseEnvironment(s string) (Environment, error) {
	switch e := Environment(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return EnvironmentSandbox, nil
	case EnvironmentSandbox, EnvironmentProduction:
		return e, nil
	default:
		return "", fmt.Errorf("%w: ambiente desconocido %q (usar sandbox|production)", domain.ErrInvalidInput, s)
	}
}

// ProviderCredentials credenciales del PAC. Token para REST; usuario/contraseña para SOAP.
type ProviderCredentials struct {
	Token    string
	User     string
	Password string
}

// ProviderConfig configuración de un PAC.
type ProviderConfig struct {
	ID            string
	Name          string
	Type          ProviderType
	SandboxURL    string
	ProductionURL string
	Credentials   ProviderCredentials
	Active        bool
	Priority      int // ascendente: menor se intenta primero
}

// URLFor devuelve la URL base según el ambiente.
func (p ProviderConfig) URLFor(env Environment) string {
	if env == EnvironmentProduction {
		return p.ProductionURL
	}
	return p.SandboxURL
}

// Validate comprueba la configuración antes de usarla.
func (p ProviderConfig) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("pac: nombre requerido")
	}
	if _, err := ParseProviderType(string(p.Type)); err != nil {
		return fmt.Errorf("pac %s: %w", p.Name, err)
	}
	if p.Type != ProviderDemo && p.SandboxURL == "" && p.ProductionURL == "" {
		return fmt.Errorf("pac %s: se requiere al menos una URL", p.Name)
	}
	return nil
}
