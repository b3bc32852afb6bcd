// Package stamping orquesta el timbrado: reintentos con espera exponencial por PAC,
// conmutación al siguiente PAC por prioridad y persistencia de la identidad fiscal.
package stamping

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/metrics"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/pac"
	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

// ClientFactory resuelve el adaptador de cada PAC.
type ClientFactory interface {
	ClientFor(cfg entity.ProviderConfig) (pac.Client, error)
}

// AttemptObserver recibe cada intento (métricas).
type AttemptObserver interface {
	ObserveStampAttempt(provider, outcome string, start time.Time)
}

// SleepFunc espera d o hasta que ctx termine.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep espera con reloj real.
func ContextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config política de reintentos.
type Config struct {
	MaxRetries  int           // intentos por PAC
	BaseDelay   time.Duration // espera tras el intento n: BaseDelay * 2^n
	CallTimeout time.Duration // límite de cada llamada al PAC
}

// DefaultConfig 3 intentos por PAC, esperas de 2s, 4s y límite de 30s por llamada.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, BaseDelay: time.Second, CallTimeout: 30 * time.Second}
}

// Request entrada de una corrida de timbrado.
type Request struct {
	DocumentID  string
	XML         []byte
	Environment entity.Environment
	Providers   []entity.ProviderConfig // ya filtrados y ordenados
}

// Outcome resultado exitoso, etiquetado con el PAC que timbró.
type Outcome struct {
	Result   *pac.StampResult
	Provider string
	Attempts []entity.StampingAttempt
}

// Orchestrator recorre los PACs en orden; el primer éxito gana.
type Orchestrator struct {
	clients  ClientFactory
	cfg      Config
	sleep    SleepFunc
	now      func() time.Time
	observer AttemptObserver
	log      *logger.Logger
}

// Option ajusta el orquestador.
type Option func(*Orchestrator)

// WithSleep inyecta la espera entre reintentos.
func WithSleep(s SleepFunc) Option { return func(o *Orchestrator) { o.sleep = s } }

// WithClock inyecta el reloj usado para timestamps y latencias.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// WithObserver registra cada intento.
func WithObserver(obs AttemptObserver) Option { return func(o *Orchestrator) { o.observer = obs } }

// NewOrchestrator crea el orquestador. Valores no positivos en cfg toman el default.
func NewOrchestrator(clients ClientFactory, cfg Config, log *logger.Logger, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	o := &Orchestrator{
		clients: clients,
		cfg:     cfg,
		sleep:   ContextSleep,
		now:     time.Now,
		log:     log.Component("stamping"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Backoff espera tras el intento fallido número attempt (1-based).
func (o *Orchestrator) Backoff(attempt int) time.Duration {
	return o.cfg.BaseDelay * time.Duration(1<<attempt)
}

// Stamp ejecuta la política completa. Errores posibles: domain.ErrConfiguration sin
// PACs, *domain.ProviderRejectionError si un PAC rechaza el contenido,
// *StampingFailedError si todo falla, o el error del contexto si el llamador canceló.
// El Outcome devuelto junto a un error conserva los intentos realizados.
func (o *Orchestrator) Stamp(ctx context.Context, req Request) (*Outcome, error) {
	out := &Outcome{}
	if len(req.Providers) == 0 {
		return out, domain.ErrConfiguration
	}

	var (
		lastErr string
		tried   []string
	)
	for _, cfg := range req.Providers {
		tried = append(tried, cfg.Name)
		client, err := o.clients.ClientFor(cfg)
		if err != nil {
			lastErr = err.Error()
			o.log.Error().Err(err).Str("provider", cfg.Name).Msg("PAC sin adaptador; se omite")
			continue
		}

		for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
			if err := ctx.Err(); err != nil {
				return out, fmt.Errorf("timbrado interrumpido tras %d intentos: %w", len(out.Attempts), err)
			}

			res, callErr := o.call(ctx, client, cfg.Name, attempt, req, out)
			switch {
			case callErr == nil && res.Success:
				out.Result = res
				out.Provider = cfg.Name
				return out, nil
			case callErr == nil && res.Rejected:
				return out, &domain.ProviderRejectionError{Provider: cfg.Name, Message: res.Error}
			case callErr != nil:
				lastErr = callErr.Error()
			default:
				lastErr = res.Error
			}

			if attempt < o.cfg.MaxRetries {
				if err := o.sleep(ctx, o.Backoff(attempt)); err != nil {
					return out, fmt.Errorf("timbrado interrumpido tras %d intentos: %w", len(out.Attempts), err)
				}
			}
		}
	}
	return out, &StampingFailedError{LastError: lastErr, ProvidersTried: tried, Attempts: len(out.Attempts)}
}

// call hace una sola llamada al PAC y registra el intento. La llamada corre sobre un
// contexto desligado de la cancelación del llamador: una petición que ya salió hacia
// el PAC no se abandona, solo se acota con CallTimeout.
func (o *Orchestrator) call(ctx context.Context, client pac.Client, provider string, attempt int, req Request, out *Outcome) (*pac.StampResult, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.CallTimeout)
	defer cancel()

	started := time.Now()
	ts := o.now()
	res, err := client.Stamp(callCtx, req.XML, req.Environment)
	if err == nil && res == nil {
		err = fmt.Errorf("%s: respuesta vacía", provider)
	}

	a := entity.StampingAttempt{
		Provider:  provider,
		Attempt:   attempt,
		Timestamp: ts,
		Latency:   o.now().Sub(ts),
	}
	outcome := metrics.OutcomeFailure
	switch {
	case err != nil:
		a.ErrorMessage = err.Error()
	case res.Success:
		a.Success = true
		outcome = metrics.OutcomeSuccess
	default:
		a.ErrorMessage = res.Error
		if res.Rejected {
			outcome = metrics.OutcomeRejected
		}
	}
	out.Attempts = append(out.Attempts, a)
	if o.observer != nil {
		o.observer.ObserveStampAttempt(provider, outcome, started)
	}

	ev := o.log.Info()
	if !a.Success {
		ev = o.log.Warn()
	}
	ev.Str("document_id", req.DocumentID).
		Str("provider", provider).
		Int("attempt", attempt).
		Int64("latency_ms", a.Latency.Milliseconds()).
		Bool("success", a.Success).
		Str("outcome", outcome).
		Str("error", a.ErrorMessage).
		Msg("intento de timbrado")
	return res, err
}
