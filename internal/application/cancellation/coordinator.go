// Package cancellation implementa el protocolo de cancelación de CFDI, incluida la
// espera por aceptación del receptor.
package cancellation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/cartaporte-api/internal/application/ports"
	"github.com/jhoicas/cartaporte-api/internal/application/tracker"
	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/lifecycle"
	"github.com/jhoicas/cartaporte-api/internal/domain/provider"
	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/cfdixml"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/metrics"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/pac"
	"github.com/jhoicas/cartaporte-api/pkg/cfdi"
	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

// ClientFactory resuelve el adaptador del PAC.
type ClientFactory interface {
	ClientFor(cfg entity.ProviderConfig) (pac.Client, error)
}

// Request solicitud de cancelación recibida del llamador.
type Request struct {
	UUID             string
	RFC              string
	Motivo           string
	FolioSustitucion string
	Environment      entity.Environment
}

// Resolution respuesta definitiva a una cancelación pendiente.
type Resolution struct {
	Accepted bool
	Codigo   string
	Acuse    string
}

// Config dependencias del coordinador.
type Config struct {
	Documents     repository.FiscalDocumentRepository
	Events        repository.LifecycleEventRepository
	Cancellations repository.CancellationRepository
	Tx            ports.TxRunner
	Locker        ports.DocumentLocker
	Providers     repository.ProviderConfigLoader
	Clients       ClientFactory
	CallTimeout   time.Duration
	// PersistRetryDelay espera base entre intentos de guardar la respuesta del PAC.
	PersistRetryDelay time.Duration
	Metrics           *metrics.Metrics
	Now               func() time.Time
	Logger            *logger.Logger
}

// persistAttempts intentos para guardar una respuesta ya emitida por el PAC.
const persistAttempts = 3

// Coordinator CancellationCoordinator.
type Coordinator struct {
	docRepo     repository.FiscalDocumentRepository
	eventRepo   repository.LifecycleEventRepository
	cancelRepo  repository.CancellationRepository
	tx          ports.TxRunner
	locker      ports.DocumentLocker
	providers   repository.ProviderConfigLoader
	clients     ClientFactory
	callTimeout time.Duration
	retryDelay  time.Duration
	metrics     *metrics.Metrics
	now         func() time.Time
	log         *logger.Logger
}

// New crea el coordinador.
func New(c Config) *Coordinator {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.PersistRetryDelay <= 0 {
		c.PersistRetryDelay = 200 * time.Millisecond
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	return &Coordinator{
		docRepo:     c.Documents,
		eventRepo:   c.Events,
		cancelRepo:  c.Cancellations,
		tx:          c.Tx,
		locker:      c.Locker,
		providers:   c.Providers,
		clients:     c.Clients,
		callTimeout: c.CallTimeout,
		retryDelay:  c.PersistRetryDelay,
		metrics:     c.Metrics,
		now:         c.Now,
		log:         c.Logger.Component("cancellation"),
	}
}

// validateRequest motivo del catálogo, folio de sustitución solo con motivo 01 y RFC válido.
func validateRequest(req Request) error {
	var errs []domain.FieldError
	if strings.TrimSpace(req.UUID) == "" {
		errs = append(errs, domain.FieldError{Field: "uuid", Message: "requerido"})
	}
	if err := cfdi.ValidateRFC(req.RFC); err != nil {
		errs = append(errs, domain.FieldError{Field: "rfc", Message: err.Error()})
	}
	switch {
	case !cfdi.ValidMotivosCancelacion[req.Motivo]:
		errs = append(errs, domain.FieldError{Field: "motivo", Message: fmt.Sprintf("motivo %q fuera del catálogo (01-04)", req.Motivo)})
	case cfdi.RequiresFolioSustitucion(req.Motivo) && req.FolioSustitucion == "":
		errs = append(errs, domain.FieldError{Field: "folio_sustitucion", Message: "requerido con motivo 01"})
	case !cfdi.RequiresFolioSustitucion(req.Motivo) && req.FolioSustitucion != "":
		errs = append(errs, domain.FieldError{Field: "folio_sustitucion", Message: "solo aplica con motivo 01"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// Cancel solicita la cancelación al PAC. Una falla del PAC no es un error de Go: la
// solicitud queda en estado error con código "unknown".
func (c *Coordinator) Cancel(ctx context.Context, req Request) (*entity.CancellationRequest, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req.UUID = strings.ToUpper(strings.TrimSpace(req.UUID))
	req.RFC = cfdi.NormalizeRFC(req.RFC)
	req.FolioSustitucion = strings.ToUpper(strings.TrimSpace(req.FolioSustitucion))

	doc, err := c.docRepo.GetByUUID(ctx, req.UUID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if err := c.checkIssuer(doc, req.RFC); err != nil {
		return nil, err
	}
	if err := c.checkCancellable(ctx, doc.ID); err != nil {
		return nil, err
	}

	release, err := c.locker.Acquire(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := c.checkCancellable(ctx, doc.ID); err != nil {
		return nil, err
	}

	cfg, err := c.resolveProvider(ctx, doc)
	if err != nil {
		return nil, err
	}
	client, err := c.clients.ClientFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	now := c.now()
	cr := &entity.CancellationRequest{
		ID:               uuid.NewString(),
		DocumentID:       doc.ID,
		UUID:             req.UUID,
		RFC:              req.RFC,
		MotivoCode:       req.Motivo,
		FolioSustitucion: req.FolioSustitucion,
		Estado:           entity.CancellationProcesando,
		Provider:         cfg.Name,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := c.cancelRepo.Create(ctx, cr); err != nil {
		return nil, err
	}

	// A partir de aquí la solicitud sale hacia el PAC: no se abandona si el llamador se va.
	pctx := context.WithoutCancel(ctx)
	callCtx, cancel := context.WithTimeout(pctx, c.callTimeout)
	res, callErr := client.Cancel(callCtx, pac.CancelRequest{
		UUID:             req.UUID,
		RFC:              req.RFC,
		Motivo:           req.Motivo,
		FolioSustitucion: req.FolioSustitucion,
	}, req.Environment)
	cancel()

	event := applyProviderAnswer(cr, res, callErr)
	cr.UpdatedAt = c.now()
	ev := tracker.NewEvent(doc.ID, event, true, map[string]string{
		"cancellation_id": cr.ID,
		"motivo":          cr.MotivoCode,
		"codigo":          cr.CodigoRespuesta,
	}, cr.UpdatedAt)

	recorded, err := c.persistAnswer(pctx, cr, ev)
	if err != nil {
		c.markUnpersisted(pctx, cr, err)
		return nil, err
	}
	c.metrics.IncrementCancellation(string(cr.Estado))
	if recorded {
		c.metrics.IncrementLifecycleEvent(string(event))
	}

	logEv := c.log.Info()
	if cr.Estado == entity.CancellationError {
		logEv = c.log.Warn()
	}
	logEv.Str("document_id", doc.ID).Str("uuid", cr.UUID).Str("provider", cr.Provider).
		Str("estado", string(cr.Estado)).Str("codigo", cr.CodigoRespuesta).Str("error", cr.ErrorMessage).
		Msg("cancelación procesada")
	return cr, nil
}

// persistAnswer guarda la respuesta del PAC y su evento en una transacción, con
// reintentos acotados. El evento se agrega solo si el registro lo admite en ese momento;
// si no, la respuesta del PAC se guarda igual y recorded es false.
func (c *Coordinator) persistAnswer(ctx context.Context, cr *entity.CancellationRequest, ev *entity.LifecycleEvent) (recorded bool, err error) {
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		err = c.tx.Run(ctx, func(docRepo repository.FiscalDocumentRepository, eventRepo repository.LifecycleEventRepository, cancelRepo repository.CancellationRepository) error {
			recorded = true
			if err := tracker.AppendChecked(ctx, eventRepo, ev); err != nil {
				if !errors.Is(err, domain.ErrInvalidTransition) {
					return err
				}
				recorded = false
				c.log.Error().Err(err).Str("document_id", cr.DocumentID).Str("cancellation_id", cr.ID).
					Str("estado", string(cr.Estado)).Msg("respuesta del PAC guardada sin evento: el ciclo de vida no la admite")
			}
			if err := cancelRepo.Update(ctx, cr); err != nil {
				return err
			}
			return docRepo.SetCancellation(ctx, cr.DocumentID, cr.ID)
		})
		if err == nil {
			return recorded, nil
		}
		c.log.Warn().Err(err).Str("cancellation_id", cr.ID).Int("attempt", attempt).
			Msg("no se pudo guardar la respuesta del PAC")
		if attempt < persistAttempts {
			time.Sleep(time.Duration(attempt) * c.retryDelay)
		}
	}
	return false, err
}

// markUnpersisted deja la solicitud en error fuera de la transacción fallida para que
// no bloquee cancelaciones futuras. El mensaje conserva lo que respondió el PAC.
func (c *Coordinator) markUnpersisted(ctx context.Context, cr *entity.CancellationRequest, cause error) {
	failed := *cr
	failed.Estado = entity.CancellationError
	failed.ErrorMessage = fmt.Sprintf("respuesta del PAC no guardada (estado %s, código %s): %v",
		cr.Estado, cr.CodigoRespuesta, cause)
	failed.UpdatedAt = c.now()
	if err := c.cancelRepo.Update(ctx, &failed); err != nil {
		c.log.Error().Err(err).Str("document_id", cr.DocumentID).Str("cancellation_id", cr.ID).
			Msg("la solicitud queda en procesando; requiere revisión manual")
		return
	}
	c.log.Error().Err(cause).Str("document_id", cr.DocumentID).Str("cancellation_id", cr.ID).
		Str("estado_pac", string(cr.Estado)).Str("codigo", cr.CodigoRespuesta).
		Msg("respuesta del PAC recibida pero no se pudo guardar; solicitud marcada en error")
	c.metrics.IncrementCancellation(string(entity.CancellationError))
}

// applyProviderAnswer fija el estado según la respuesta y devuelve el evento a registrar.
func applyProviderAnswer(cr *entity.CancellationRequest, res *pac.CancelResult, callErr error) entity.EventType {
	switch {
	case callErr != nil:
		cr.Estado = entity.CancellationError
		cr.ErrorMessage = callErr.Error()
		cr.CodigoRespuesta = cfdi.CancelCodeUnknown
		return entity.EventCancelacionError
	case res == nil || !res.Success:
		cr.Estado = entity.CancellationError
		cr.ErrorMessage = "respuesta vacía del PAC"
		if res != nil && res.Error != "" {
			cr.ErrorMessage = res.Error
		}
		cr.CodigoRespuesta = cfdi.CancelCodeUnknown
		return entity.EventCancelacionError
	}
	cr.Acuse = res.Acuse
	cr.CodigoRespuesta = res.StatusCode
	if cfdi.RequiresAcceptance(res.StatusCode) {
		cr.Estado = entity.CancellationPendiente
		cr.RequiereAceptacion = true
		return entity.EventCancelacionPendiente
	}
	cr.Estado = entity.CancellationCancelado
	return entity.EventCancelado
}

// checkIssuer el RFC de la solicitud debe ser el del emisor del CFDI.
func (c *Coordinator) checkIssuer(doc *entity.FiscalDocument, rfc string) error {
	comp, err := cfdixml.Parse([]byte(doc.RawXML))
	if err != nil {
		return err
	}
	if cfdi.NormalizeRFC(comp.Emisor.Rfc) != rfc {
		return &domain.ValidationError{Errors: []domain.FieldError{
			{Field: "rfc", Message: "no coincide con el RFC del emisor del CFDI"},
		}}
	}
	return nil
}

// checkCancellable sin solicitud activa y con el documento en un estado que admite cancelarse.
func (c *Coordinator) checkCancellable(ctx context.Context, documentID string) error {
	active, err := c.cancelRepo.GetActiveByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if active != nil {
		return domain.ErrCancellationInProgress
	}
	events, err := c.eventRepo.ListByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	st, err := lifecycle.StatusOf(events)
	if err != nil {
		return err
	}
	switch st {
	case entity.StatusTimbrado, entity.StatusEnTransito:
		return nil
	default:
		return fmt.Errorf("%w: no se puede cancelar un documento en estado %q", domain.ErrInvalidTransition, st)
	}
}

// resolveProvider el PAC que timbró, si sigue activo; si no, el primero por prioridad.
func (c *Coordinator) resolveProvider(ctx context.Context, doc *entity.FiscalDocument) (entity.ProviderConfig, error) {
	configs, err := c.providers.LoadProviders(ctx)
	if err != nil {
		return entity.ProviderConfig{}, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	reg, err := provider.NewRegistry(configs)
	if err != nil {
		return entity.ProviderConfig{}, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if cfg, ok := reg.Find(doc.ProviderUsed); ok && cfg.Active {
		return cfg, nil
	}
	active := reg.OrderedActive()
	if len(active) == 0 {
		return entity.ProviderConfig{}, domain.ErrConfiguration
	}
	return active[0], nil
}

// ResolvePending cierra la cancelación pendiente del documento con la respuesta del receptor.
func (c *Coordinator) ResolvePending(ctx context.Context, documentID string, r Resolution) (*entity.CancellationRequest, error) {
	release, err := c.locker.Acquire(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer release()

	cr, err := c.cancelRepo.GetActiveByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if cr == nil {
		return nil, domain.ErrNotFound
	}
	if cr.Estado != entity.CancellationPendiente {
		return nil, fmt.Errorf("%w: la cancelación está en %q", domain.ErrConflict, cr.Estado)
	}

	event := entity.EventCancelacionRechazada
	cr.Estado = entity.CancellationRechazado
	if r.Accepted {
		event = entity.EventCancelado
		cr.Estado = entity.CancellationCancelado
	}
	if r.Codigo != "" {
		cr.CodigoRespuesta = r.Codigo
	}
	if r.Acuse != "" {
		cr.Acuse = r.Acuse
	}
	cr.UpdatedAt = c.now()
	ev := tracker.NewEvent(documentID, event, true, map[string]string{
		"cancellation_id": cr.ID,
		"codigo":          cr.CodigoRespuesta,
	}, cr.UpdatedAt)

	err = c.tx.Run(ctx, func(_ repository.FiscalDocumentRepository, eventRepo repository.LifecycleEventRepository, cancelRepo repository.CancellationRepository) error {
		if err := tracker.AppendChecked(ctx, eventRepo, ev); err != nil {
			return err
		}
		return cancelRepo.Update(ctx, cr)
	})
	if err != nil {
		return nil, err
	}
	c.metrics.IncrementCancellation(string(cr.Estado))
	c.metrics.IncrementLifecycleEvent(string(event))
	c.log.Info().Str("document_id", documentID).Str("cancellation_id", cr.ID).
		Str("estado", string(cr.Estado)).Msg("cancelación pendiente resuelta")
	return cr, nil
}

// Get devuelve una solicitud por ID.
func (c *Coordinator) Get(ctx context.Context, id string) (*entity.CancellationRequest, error) {
	cr, err := c.cancelRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cr == nil {
		return nil, domain.ErrNotFound
	}
	return cr, nil
}
