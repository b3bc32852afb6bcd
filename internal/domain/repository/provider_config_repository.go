package repository

import (
	"context"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
)

// ProviderConfigLoader fuente de configuración de PACs (archivo o base de datos).
type ProviderConfigLoader interface {
	LoadProviders(ctx context.Context) ([]entity.ProviderConfig, error)
}
