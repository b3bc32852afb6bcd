package stamping

import (
	"fmt"
	"strings"

	"github.com/jhoicas/cartaporte-api/internal/domain"
)

// StampingFailedError todos los PACs agotaron sus reintentos.
type StampingFailedError struct {
	LastError      string
	ProvidersTried []string
	Attempts       int
}

func (e *StampingFailedError) Error() string {
	return fmt.Sprintf("%s tras %d intentos [%s]: %s",
		domain.ErrStampingFailed.Error(), e.Attempts, strings.Join(e.ProvidersTried, ", "), e.LastError)
}

func (e *StampingFailedError) Unwrap() error { return domain.ErrStampingFailed }
