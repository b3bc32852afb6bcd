package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/cartaporte"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/cfdixml"
)

// ValidationView resultado de validar un archivo.
type ValidationView struct {
	File        string              `json:"file" yaml:"file"`
	Valid       bool                `json:"valid" yaml:"valid"`
	Fingerprint string              `json:"fingerprint" yaml:"fingerprint"`
	Errors      []domain.FieldError `json:"errors" yaml:"errors"`
	Warnings    []domain.FieldError `json:"warnings" yaml:"warnings"`
}

// NewValidateCommand valida esquema y reglas de negocio de un CFDI Carta Porte.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "validate <archivo.xml>",
		Short:         "Valida un CFDI con complemento Carta Porte",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, comp, err := readComprobante(args[0])
			if err != nil {
				return err
			}
			res := cartaporte.Validate(comp)
			fp, _ := cfdixml.Fingerprint(raw)
			view := ValidationView{File: args[0], Valid: res.IsValid, Fingerprint: fp, Errors: res.Errors, Warnings: res.Warnings}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if err := out.Print(view, func(w io.Writer) { printValidation(w, view) }); err != nil {
				return err
			}
			if !res.IsValid {
				return NewExitError(ExitFailure, fmt.Sprintf("%d errores de validación", len(res.Errors)))
			}
			return nil
		},
	}
}

func printValidation(w io.Writer, v ValidationView) {
	if v.Valid {
		fmt.Fprintf(w, "✓ %s válido\n", v.File)
	} else {
		fmt.Fprintf(w, "✗ %s inválido\n", v.File)
	}
	for _, e := range v.Errors {
		fmt.Fprintf(w, "  error   %s\n", e)
	}
	for _, e := range v.Warnings {
		fmt.Fprintf(w, "  aviso   %s\n", e)
	}
}

// NewFingerprintCommand imprime la huella sha256 del XML canonicalizado.
func NewFingerprintCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "fingerprint <archivo.xml>",
		Short:         "Huella del XML canónico (C14N + sha256)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "leer archivo", err)
			}
			fp, err := cfdixml.Fingerprint(raw)
			if err != nil {
				return WrapExitError(ExitCommandError, "XML mal formado", err)
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Print(map[string]string{"file": args[0], "fingerprint": fp}, func(w io.Writer) {
				fmt.Fprintln(w, fp)
			})
		},
	}
}

func readComprobante(path string) ([]byte, *entity.Comprobante, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "leer archivo", err)
	}
	comp, err := cfdixml.Parse(raw)
	if err != nil {
		return nil, nil, WrapExitError(ExitFailure, "XML no interpretable", err)
	}
	return raw, comp, nil
}
