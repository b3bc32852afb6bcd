package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/cartaporte-api/internal/application/stamping"
	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/cartaporte"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/provider"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/pac"
	"github.com/jhoicas/cartaporte-api/pkg/config"
)

// StampOptions flags de stamp.
type StampOptions struct {
	Environment string
	Output      string
	Retries     int
	Timeout     time.Duration
}

// AttemptView intento de timbrado.
type AttemptView struct {
	Provider  string `json:"provider" yaml:"provider"`
	Attempt   int    `json:"attempt" yaml:"attempt"`
	Success   bool   `json:"success" yaml:"success"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms" yaml:"latency_ms"`
}

// StampView resultado del timbrado de un archivo.
type StampView struct {
	File          string        `json:"file" yaml:"file"`
	Success       bool          `json:"success" yaml:"success"`
	UUID          string        `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Provider      string        `json:"provider,omitempty" yaml:"provider,omitempty"`
	FechaTimbrado string        `json:"fecha_timbrado,omitempty" yaml:"fecha_timbrado,omitempty"`
	Output        string        `json:"output,omitempty" yaml:"output,omitempty"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts      []AttemptView `json:"attempts" yaml:"attempts"`
}

// NewStampCommand timbra un archivo contra los PACs del archivo de configuración,
// sin almacén ni API. Útil para probar credenciales y conectividad.
func NewStampCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StampOptions{}
	cmd := &cobra.Command{
		Use:           "stamp <archivo.xml>",
		Short:         "Timbra un XML con failover entre PACs",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStamp(cmd, rootOpts, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.Environment, "environment", "e", string(entity.EnvironmentSandbox), "ambiente del PAC (sandbox|production)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "archivo donde escribir el XML timbrado")
	cmd.Flags().IntVar(&opts.Retries, "retries", 3, "intentos por PAC")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "límite de cada llamada al PAC")
	return cmd
}

func runStamp(cmd *cobra.Command, rootOpts *RootOptions, opts *StampOptions, path string) error {
	env, err := entity.ParseEnvironment(opts.Environment)
	if err != nil {
		return WrapExitError(ExitCommandError, "ambiente", err)
	}
	raw, comp, err := readComprobante(path)
	if err != nil {
		return err
	}
	if res := cartaporte.Validate(comp); !res.IsValid {
		return WrapExitError(ExitFailure, "documento inválido", res.Err())
	}

	configs, err := config.LoadProviders(rootOpts.Providers)
	if err != nil {
		return WrapExitError(ExitCommandError, "lista de PACs", err)
	}
	reg, err := provider.NewRegistry(configs)
	if err != nil {
		return WrapExitError(ExitCommandError, "lista de PACs", err)
	}

	orch := stamping.NewOrchestrator(pac.NewFactory(nil), stamping.Config{
		MaxRetries:  opts.Retries,
		CallTimeout: opts.Timeout,
	}, rootOpts.logger(cmd))
	outcome, stampErr := orch.Stamp(cmd.Context(), stamping.Request{
		DocumentID:  path,
		XML:         raw,
		Environment: env,
		Providers:   reg.OrderedActive(),
	})

	view := StampView{File: path, Attempts: make([]AttemptView, 0, len(outcome.Attempts))}
	for _, a := range outcome.Attempts {
		view.Attempts = append(view.Attempts, AttemptView{
			Provider: a.Provider, Attempt: a.Attempt, Success: a.Success, Error: a.ErrorMessage, LatencyMs: a.Latency.Milliseconds(),
		})
	}
	if stampErr == nil {
		view.Success = true
		view.UUID = outcome.Result.UUID
		view.Provider = outcome.Provider
		if outcome.Result.FechaTimbrado != nil {
			view.FechaTimbrado = outcome.Result.FechaTimbrado.Format(time.RFC3339)
		}
		if opts.Output != "" {
			if err := os.WriteFile(opts.Output, outcome.Result.StampedXML, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "escribir XML timbrado", err)
			}
			view.Output = opts.Output
		}
	} else {
		view.Error = stampErr.Error()
	}

	out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	if err := out.Print(view, func(w io.Writer) { printStamp(w, view) }); err != nil {
		return err
	}
	switch {
	case stampErr == nil:
		return nil
	case errors.Is(stampErr, domain.ErrConfiguration):
		return WrapExitError(ExitCommandError, "timbrado", stampErr)
	default:
		return WrapExitError(ExitFailure, "timbrado", stampErr)
	}
}

func printStamp(w io.Writer, v StampView) {
	for _, a := range v.Attempts {
		status := "ok"
		if !a.Success {
			status = a.Error
		}
		fmt.Fprintf(w, "  %s #%d (%dms) %s\n", a.Provider, a.Attempt, a.LatencyMs, status)
	}
	if !v.Success {
		fmt.Fprintf(w, "✗ %s no timbrado: %s\n", v.File, v.Error)
		return
	}
	fmt.Fprintf(w, "✓ %s timbrado por %s\n  UUID %s\n", v.File, v.Provider, v.UUID)
	if v.Output != "" {
		fmt.Fprintf(w, "  XML en %s\n", v.Output)
	}
}
