package stamping

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/cartaporte-api/internal/application/ports"
	"github.com/jhoicas/cartaporte-api/internal/application/tracker"
	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/cartaporte"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/lifecycle"
	"github.com/jhoicas/cartaporte-api/internal/domain/provider"
	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/cfdixml"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/metrics"
	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

// Result documento timbrado y rastro de intentos.
type Result struct {
	Document *entity.FiscalDocument
	Provider string
	Attempts []entity.StampingAttempt
}

// BatchItem resultado por documento de un lote.
type BatchItem struct {
	DocumentID string
	Result     *Result
	Err        error
}

// Service caso de uso de timbrado de documentos persistidos.
type Service struct {
	docRepo     repository.FiscalDocumentRepository
	eventRepo   repository.LifecycleEventRepository
	tx          ports.TxRunner
	locker      ports.DocumentLocker
	providers   repository.ProviderConfigLoader
	orch        *Orchestrator
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time
	log         *logger.Logger
}

// ServiceConfig dependencias del servicio.
type ServiceConfig struct {
	Documents        repository.FiscalDocumentRepository
	Events           repository.LifecycleEventRepository
	Tx               ports.TxRunner
	Locker           ports.DocumentLocker
	Providers        repository.ProviderConfigLoader
	Orchestrator     *Orchestrator
	Metrics          *metrics.Metrics // opcional
	BatchConcurrency int
	Now              func() time.Time
	Logger           *logger.Logger
}

// NewService construye el servicio.
func NewService(c ServiceConfig) *Service {
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 4
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	return &Service{
		docRepo:     c.Documents,
		eventRepo:   c.Events,
		tx:          c.Tx,
		locker:      c.Locker,
		providers:   c.Providers,
		orch:        c.Orchestrator,
		metrics:     c.Metrics,
		concurrency: c.BatchConcurrency,
		now:         c.Now,
		log:         c.Logger.Component("stamping"),
	}
}

// StampDocument valida el XML guardado, lo timbra y persiste la identidad fiscal.
// Con error de timbrado el Result conserva los intentos realizados.
func (s *Service) StampDocument(ctx context.Context, documentID string, env entity.Environment) (*Result, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.IsStamped() {
		return nil, domain.ErrAlreadyStamped
	}

	release, err := s.locker.Acquire(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Releer bajo el candado: otro proceso pudo timbrar entre la lectura y el Acquire.
	doc, err = s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.IsStamped() {
		return nil, domain.ErrAlreadyStamped
	}
	events, err := s.eventRepo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CheckTransition(events, entity.EventTimbrado); err != nil {
		return nil, err
	}

	raw := []byte(doc.RawXML)
	comp, err := cfdixml.Parse(raw)
	if err != nil {
		return nil, err
	}
	if res := cartaporte.Validate(comp); !res.IsValid {
		return nil, res.Err()
	}

	active, err := s.activeProviders(ctx)
	if err != nil {
		return nil, err
	}
	fp, _ := cfdixml.Fingerprint(raw)
	s.log.Info().Str("document_id", documentID).Str("fingerprint", fp).Str("environment", string(env)).
		Int("providers", len(active)).Msg("inicio de timbrado")

	out, err := s.orch.Stamp(ctx, Request{DocumentID: documentID, XML: raw, Environment: env, Providers: active})
	result := &Result{Document: doc, Attempts: out.Attempts}
	if err != nil {
		s.log.Error().Err(err).Str("document_id", documentID).Int("attempts", len(out.Attempts)).Msg("timbrado fallido")
		return result, err
	}
	result.Provider = out.Provider

	// El PAC ya asignó el UUID: persistir aunque el llamador se haya ido.
	stamped, err := s.persist(context.WithoutCancel(ctx), doc, out)
	if err != nil {
		s.log.Error().Err(err).Str("document_id", documentID).Str("uuid", out.Result.UUID).
			Msg("timbrado exitoso pero no se pudo persistir")
		return result, err
	}
	result.Document = stamped
	s.log.Info().Str("document_id", documentID).Str("uuid", stamped.UUID).Str("provider", out.Provider).Msg("documento timbrado")
	return result, nil
}

func (s *Service) activeProviders(ctx context.Context) ([]entity.ProviderConfig, error) {
	configs, err := s.providers.LoadProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	reg, err := provider.NewRegistry(configs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return reg.OrderedActive(), nil
}

// persist aplica el timbre sobre una copia: doc solo refleja lo que quedó guardado.
func (s *Service) persist(ctx context.Context, doc *entity.FiscalDocument, out *Outcome) (*entity.FiscalDocument, error) {
	r := out.Result
	data := entity.StampData{
		UUID:           r.UUID,
		StampedXML:     string(r.StampedXML),
		QRCode:         r.QRCode,
		CadenaOriginal: r.CadenaOriginal,
		SelloDigital:   r.SelloDigital,
		SelloSAT:       r.SelloSAT,
		FechaTimbrado:  r.FechaTimbrado,
		Provider:       out.Provider,
	}
	if t, err := cfdixml.ExtractTimbre(r.StampedXML); err == nil {
		data.IDCCP = t.IDCCP
		if data.FechaTimbrado == nil {
			data.FechaTimbrado = t.FechaTimbrado
		}
	}
	now := s.now()
	stamped := *doc
	if err := stamped.ApplyStamp(data, now); err != nil {
		return nil, err
	}
	ev := tracker.NewEvent(doc.ID, entity.EventTimbrado, true,
		map[string]string{"provider": out.Provider, "uuid": stamped.UUID}, now)
	err := s.tx.Run(ctx, func(docRepo repository.FiscalDocumentRepository, eventRepo repository.LifecycleEventRepository, _ repository.CancellationRepository) error {
		if err := docRepo.ApplyStamp(ctx, &stamped); err != nil {
			return err
		}
		return tracker.AppendChecked(ctx, eventRepo, ev)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementLifecycleEvent(string(entity.EventTimbrado))
	return &stamped, nil
}

// StampBatch timbra documentos independientes con concurrencia acotada. Un fallo no
// detiene a los demás; el orden del resultado sigue al de ids.
func (s *Service) StampBatch(ctx context.Context, ids []string, env entity.Environment) []BatchItem {
	items := make([]BatchItem, len(ids))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		items[i].DocumentID = id
		g.Go(func() error {
			res, err := s.StampDocument(ctx, id, env)
			items[i].Result = res
			items[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return items
}
