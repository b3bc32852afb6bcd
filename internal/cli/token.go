package cli

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/cartaporte-api/pkg/config"
	"github.com/jhoicas/cartaporte-api/pkg/jwt"
)

var tokenRoles = []string{"admin", "operador", "consulta"}

// NewTokenCommand emite tokens de operador firmados con JWT_SECRET. La API solo
// verifica tokens; este comando cubre integraciones sin proveedor de identidad.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:           "token",
		Short:         "Emite un token Bearer para la API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return NewExitError(ExitCommandError, "--subject requerido")
			}
			if !slices.Contains(tokenRoles, role) {
				return NewExitError(ExitCommandError, fmt.Sprintf("rol %q inválido: use uno de %v", role, tokenRoles))
			}
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "configuración", err)
			}
			tok, err := jwt.Generate(cfg.JWT.Secret, subject, role, cfg.JWT.Issuer, ttl)
			if err != nil {
				return WrapExitError(ExitCommandError, "firmar token", err)
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Print(map[string]string{"token": tok, "role": role, "subject": subject}, func(w io.Writer) {
				fmt.Fprintln(w, tok)
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "identificador del operador")
	cmd.Flags().StringVar(&role, "role", "operador", "rol (admin|operador|consulta)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "vigencia del token")
	return cmd
}
