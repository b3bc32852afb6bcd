package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/provider"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/postgres"
	"github.com/jhoicas/cartaporte-api/pkg/config"
)

// ProviderView PAC sin credenciales.
type ProviderView struct {
	Name          string `json:"name" yaml:"name"`
	Type          string `json:"type" yaml:"type"`
	Priority      int    `json:"priority" yaml:"priority"`
	Active        bool   `json:"active" yaml:"active"`
	SandboxURL    string `json:"sandbox_url,omitempty" yaml:"sandbox_url,omitempty"`
	ProductionURL string `json:"production_url,omitempty" yaml:"production_url,omitempty"`
	Credentials   bool   `json:"credentials" yaml:"credentials"`
}

// ProviderSyncer destino de providers sync.
type ProviderSyncer interface {
	Upsert(ctx context.Context, providers []entity.ProviderConfig) (int64, error)
}

// SyncerFactory abre el destino de sync; close libera la conexión.
type SyncerFactory func(ctx context.Context) (s ProviderSyncer, close func(), err error)

// NewProvidersCommand agrupa list y sync.
func NewProvidersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Administración de la lista de PACs",
	}
	cmd.AddCommand(newProvidersListCommand(rootOpts))
	cmd.AddCommand(NewProvidersSyncCommand(rootOpts, postgresSyncer))
	return cmd
}

func newProvidersListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "Lista los PACs en el orden en que se intentan",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(rootOpts.Providers)
			if err != nil {
				return err
			}
			views := make([]ProviderView, 0)
			for _, p := range reg.OrderedActive() {
				views = append(views, toProviderView(p))
			}
			for _, p := range reg.All() {
				if !p.Active {
					views = append(views, toProviderView(p))
				}
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Print(views, func(w io.Writer) {
				for _, v := range views {
					state := "activo"
					if !v.Active {
						state = "inactivo"
					}
					fmt.Fprintf(w, "%-4d %-12s %-9s %s\n", v.Priority, v.Name, v.Type, state)
				}
			})
		},
	}
}

// NewProvidersSyncCommand copia el archivo de PACs a la tabla pac_providers.
func NewProvidersSyncCommand(rootOpts *RootOptions, open SyncerFactory) *cobra.Command {
	return &cobra.Command{
		Use:           "sync",
		Short:         "Sincroniza el archivo de PACs con la base de datos",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(rootOpts.Providers)
			if err != nil {
				return err
			}
			all := reg.All()
			if len(all) == 0 {
				return NewExitError(ExitCommandError, "el archivo no define PACs; sync desactivaría todos")
			}
			syncer, closeFn, err := open(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "conexión a la base de datos", err)
			}
			defer closeFn()

			deactivated, err := syncer.Upsert(cmd.Context(), all)
			if err != nil {
				return WrapExitError(ExitFailure, "sync", err)
			}
			result := map[string]int64{"synced": int64(len(all)), "deactivated": deactivated}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Print(result, func(w io.Writer) {
				fmt.Fprintf(w, "✓ %d PACs sincronizados, %d desactivados\n", len(all), deactivated)
			})
		},
	}
}

func postgresSyncer(ctx context.Context) (ProviderSyncer, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewProviderConfigRepository(pool), pool.Close, nil
}

func loadRegistry(path string) (*provider.Registry, error) {
	configs, err := config.LoadProviders(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "lista de PACs", err)
	}
	reg, err := provider.NewRegistry(configs)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "lista de PACs", err)
	}
	return reg, nil
}

func toProviderView(p entity.ProviderConfig) ProviderView {
	c := p.Credentials
	return ProviderView{
		Name:          p.Name,
		Type:          string(p.Type),
		Priority:      p.Priority,
		Active:        p.Active,
		SandboxURL:    p.SandboxURL,
		ProductionURL: p.ProductionURL,
		Credentials:   c.Token != "" || c.User != "" || c.Password != "",
	}
}
