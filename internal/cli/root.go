// Package cli implementa cfdictl, la herramienta de operación del motor de timbrado:
// validación y timbrado de archivos XML sin levantar la API, y administración de PACs.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

// RootOptions flags globales.
type RootOptions struct {
	Verbose   bool
	Format    string // text | json | yaml
	Providers string // archivo de PACs
}

// ValidFormats formatos de salida permitidos.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand crea el comando raíz de cfdictl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cfdictl",
		Short: "Operación de CFDI con complemento Carta Porte",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("formato %q inválido: use uno de %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "bitácora detallada en stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "formato de salida (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Providers, "providers", "config/providers.yaml", "archivo con la lista de PACs")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewFingerprintCommand(opts))
	cmd.AddCommand(NewStampCommand(opts))
	cmd.AddCommand(NewProvidersCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// logger bitácora a stderr solo con --verbose.
func (o *RootOptions) logger(cmd *cobra.Command) *logger.Logger {
	if !o.Verbose {
		return logger.Nop()
	}
	return logger.New(logger.Config{Env: "development", Level: "debug", Output: cmd.ErrOrStderr()})
}
