package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/cartaporte-api/internal/application/dto"
	"github.com/jhoicas/cartaporte-api/internal/application/ports"
	"github.com/jhoicas/cartaporte-api/internal/application/stamping"
	"github.com/jhoicas/cartaporte-api/internal/application/tracker"
	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/cartaporte"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/lifecycle"
	"github.com/jhoicas/cartaporte-api/internal/domain/provider"
	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/cfdixml"
	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

// MaxBatchSize tope de documentos por lote.
const MaxBatchSize = 50

// DocumentDeps dependencias del caso de uso de documentos.
type DocumentDeps struct {
	Documents   repository.FiscalDocumentRepository
	Events      repository.LifecycleEventRepository
	Tx          ports.TxRunner
	Providers   repository.ProviderConfigLoader
	Stamper     *stamping.Service
	Tracker     *tracker.Tracker
	Environment entity.Environment // ambiente por defecto del PAC
	Now         func() time.Time
	Logger      *logger.Logger
}

// DocumentUseCase casos de uso del documento fiscal: alta, validación, timbrado y ciclo de vida.
type DocumentUseCase struct {
	docRepo   repository.FiscalDocumentRepository
	eventRepo repository.LifecycleEventRepository
	tx        ports.TxRunner
	providers repository.ProviderConfigLoader
	stamper   *stamping.Service
	tracker   *tracker.Tracker
	builder   *cfdixml.XMLBuilderService
	env       entity.Environment
	now       func() time.Time
	log       *logger.Logger
}

// NewDocumentUseCase construye el caso de uso.
func NewDocumentUseCase(d DocumentDeps) *DocumentUseCase {
	if d.Environment == "" {
		d.Environment = entity.EnvironmentSandbox
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &DocumentUseCase{
		docRepo:   d.Documents,
		eventRepo: d.Events,
		tx:        d.Tx,
		providers: d.Providers,
		stamper:   d.Stamper,
		tracker:   d.Tracker,
		builder:   cfdixml.NewXMLBuilderService(),
		env:       d.Environment,
		now:       d.Now,
		log:       d.Logger.Component("documents"),
	}
}

// comprobanteFrom resuelve el comprobante y su XML a partir de la entrada.
func (uc *DocumentUseCase) comprobanteFrom(in dto.CreateDocumentRequest) (*entity.Comprobante, []byte, error) {
	raw := strings.TrimSpace(in.RawXML)
	switch {
	case in.Comprobante != nil && raw != "":
		return nil, nil, fmt.Errorf("%w: envíe comprobante o raw_xml, no ambos", domain.ErrInvalidInput)
	case in.Comprobante != nil:
		xml, err := uc.builder.Build(in.Comprobante)
		if err != nil {
			return nil, nil, err
		}
		return in.Comprobante, xml, nil
	case raw != "":
		comp, err := cfdixml.Parse([]byte(raw))
		if err != nil {
			return nil, nil, err
		}
		return comp, []byte(raw), nil
	default:
		return nil, nil, fmt.Errorf("%w: comprobante o raw_xml requerido", domain.ErrInvalidInput)
	}
}

// Create guarda el borrador y registra creado + xml_generado en una sola transacción.
// No valida: un borrador puede estar incompleto hasta el timbrado.
func (uc *DocumentUseCase) Create(ctx context.Context, in dto.CreateDocumentRequest) (*dto.DocumentResponse, error) {
	_, raw, err := uc.comprobanteFrom(in)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	doc := &entity.FiscalDocument{
		ID:        uuid.New().String(),
		RawXML:    string(raw),
		CreatedAt: now,
		UpdatedAt: now,
	}
	created := tracker.NewEvent(doc.ID, entity.EventCreado, true, nil, now)
	generated := tracker.NewEvent(doc.ID, entity.EventXMLGenerado, true, nil, now)

	err = uc.tx.Run(ctx, func(docRepo repository.FiscalDocumentRepository, eventRepo repository.LifecycleEventRepository, _ repository.CancellationRepository) error {
		if err := docRepo.Create(ctx, doc); err != nil {
			return err
		}
		if err := eventRepo.Append(ctx, created); err != nil {
			return err
		}
		return eventRepo.Append(ctx, generated)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("document_id", doc.ID).Msg("documento creado")
	return toDocumentResponse(doc, entity.StatusXMLGenerado), nil
}

// Validate ejecuta esquema y reglas de negocio completos; nunca se detiene en el primer error.
func (uc *DocumentUseCase) Validate(in dto.ValidateDocumentRequest) (*dto.ValidationResponse, error) {
	comp, _, err := uc.comprobanteFrom(in)
	if err != nil {
		return nil, err
	}
	res := cartaporte.Validate(comp)
	return &dto.ValidationResponse{IsValid: res.IsValid, Errors: nonNil(res.Errors), Warnings: nonNil(res.Warnings)}, nil
}

// GetByID devuelve nil, nil si no existe.
func (uc *DocumentUseCase) GetByID(ctx context.Context, id string) (*dto.DocumentResponse, error) {
	doc, err := uc.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	events, err := uc.eventRepo.ListByDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	st, err := lifecycle.StatusOf(events)
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc, st), nil
}

func (uc *DocumentUseCase) environment(s string) (entity.Environment, error) {
	if strings.TrimSpace(s) == "" {
		return uc.env, nil
	}
	return entity.ParseEnvironment(s)
}

// Stamp timbra un documento guardado.
func (uc *DocumentUseCase) Stamp(ctx context.Context, id string, in dto.StampRequest) (*dto.StampResponse, error) {
	env, err := uc.environment(in.Environment)
	if err != nil {
		return nil, err
	}
	res, err := uc.stamper.StampDocument(ctx, id, env)
	if err != nil {
		return nil, err
	}
	return toStampResponse(res, entity.StatusTimbrado), nil
}

// StampBatch timbra varios documentos; los fallos se reportan por documento.
func (uc *DocumentUseCase) StampBatch(ctx context.Context, in dto.BatchStampRequest) (*dto.BatchStampResponse, error) {
	if len(in.DocumentIDs) == 0 || len(in.DocumentIDs) > MaxBatchSize {
		return nil, fmt.Errorf("%w: document_ids debe tener entre 1 y %d elementos", domain.ErrInvalidInput, MaxBatchSize)
	}
	env, err := uc.environment(in.Environment)
	if err != nil {
		return nil, err
	}
	items := uc.stamper.StampBatch(ctx, in.DocumentIDs, env)
	out := &dto.BatchStampResponse{Items: make([]dto.BatchStampItem, len(items))}
	for i, it := range items {
		item := dto.BatchStampItem{DocumentID: it.DocumentID}
		if it.Err != nil {
			code, _ := ErrorCode(it.Err)
			item.Error = &dto.ErrorResponse{Code: code, Message: it.Err.Error()}
			out.Failed++
		} else {
			item.Success = true
			item.Stamp = toStampResponse(it.Result, entity.StatusTimbrado)
			out.Succeeded++
		}
		out.Items[i] = item
	}
	return out, nil
}

// RecordEvent registra un evento manual de tránsito.
func (uc *DocumentUseCase) RecordEvent(ctx context.Context, id string, in dto.RecordEventRequest) (*dto.EventResponse, error) {
	ev, err := uc.tracker.RecordEvent(ctx, id, in.EventType, in.Metadata)
	if err != nil {
		return nil, err
	}
	return toEventResponse(ev), nil
}

// GetStatus estado derivado, avance y alertas.
func (uc *DocumentUseCase) GetStatus(ctx context.Context, id string) (*dto.StatusResponse, error) {
	st, err := uc.tracker.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &dto.StatusResponse{
		DocumentID: st.DocumentID,
		Status:     string(st.Status),
		Progress:   st.Progress,
		Alerts:     make([]dto.AlertResponse, 0, len(st.Alerts)),
	}
	for _, a := range st.Alerts {
		out.Alerts = append(out.Alerts, dto.AlertResponse{Code: a.Code, Message: a.Message, Since: a.Since})
	}
	if st.LastEvent != nil {
		out.LastEvent = toEventResponse(st.LastEvent)
	}
	return out, nil
}

// History eventos en orden cronológico.
func (uc *DocumentUseCase) History(ctx context.Context, id string) ([]dto.EventResponse, error) {
	doc, err := uc.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	events, err := uc.tracker.History(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]dto.EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, *toEventResponse(ev))
	}
	return out, nil
}

// ListProviders PACs activos en orden de prioridad, sin credenciales.
func (uc *DocumentUseCase) ListProviders(ctx context.Context) ([]dto.ProviderResponse, error) {
	configs, err := uc.providers.LoadProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	reg, err := provider.NewRegistry(configs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	active := reg.OrderedActive()
	out := make([]dto.ProviderResponse, 0, len(active))
	for _, p := range active {
		out = append(out, dto.ProviderResponse{
			Name:          p.Name,
			Type:          string(p.Type),
			Priority:      p.Priority,
			Active:        p.Active,
			SandboxURL:    p.SandboxURL,
			ProductionURL: p.ProductionURL,
		})
	}
	return out, nil
}

// ErrorCode clasifica un error de dominio para la respuesta al cliente; el bool indica
// si es un error esperado (no interno).
func ErrorCode(err error) (string, bool) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, domain.ErrValidation):
		return "VALIDATION", true
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownEvent):
		return "INVALID_INPUT", true
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND", true
	case errors.Is(err, domain.ErrAlreadyStamped):
		return "ALREADY_STAMPED", true
	case errors.Is(err, domain.ErrOperationInFlight):
		return "IN_FLIGHT", true
	case errors.Is(err, domain.ErrCancellationInProgress):
		return "CANCELLATION_IN_PROGRESS", true
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
		return "CONFLICT", true
	case errors.Is(err, domain.ErrRejected):
		return "REJECTED", true
	case errors.Is(err, domain.ErrStampingFailed):
		return "STAMPING_FAILED", true
	case errors.Is(err, domain.ErrConfiguration):
		return "CONFIGURATION", true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CANCELED", true
	default:
		return "INTERNAL", false
	}
}

func nonNil(in []domain.FieldError) []domain.FieldError {
	if in == nil {
		return []domain.FieldError{}
	}
	return in
}

func toDocumentResponse(d *entity.FiscalDocument, st entity.DocumentStatus) *dto.DocumentResponse {
	if d == nil {
		return nil
	}
	return &dto.DocumentResponse{
		ID:                    d.ID,
		Status:                string(st),
		Progress:              lifecycle.Progress(st),
		UUID:                  d.UUID,
		IDCCP:                 d.IDCCP,
		SelloDigital:          d.SelloDigital,
		SelloSAT:              d.SelloSAT,
		CadenaOriginal:        d.CadenaOriginal,
		QRCode:                d.QRCode,
		FechaTimbrado:         d.FechaTimbrado,
		ProviderUsed:          d.ProviderUsed,
		CancellationRequestID: d.CancellationRequestID,
		RawXML:                d.RawXML,
		StampedXML:            d.StampedXML,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

func toStampResponse(r *stamping.Result, st entity.DocumentStatus) *dto.StampResponse {
	out := &dto.StampResponse{
		Document: *toDocumentResponse(r.Document, st),
		Provider: r.Provider,
		Attempts: make([]dto.StampingAttemptResponse, 0, len(r.Attempts)),
	}
	for _, a := range r.Attempts {
		out.Attempts = append(out.Attempts, dto.StampingAttemptResponse{
			Provider:  a.Provider,
			Attempt:   a.Attempt,
			Timestamp: a.Timestamp,
			Success:   a.Success,
			Error:     a.ErrorMessage,
			LatencyMs: a.Latency.Milliseconds(),
		})
	}
	return out
}

func toEventResponse(ev *entity.LifecycleEvent) *dto.EventResponse {
	return &dto.EventResponse{
		ID:        ev.ID,
		EventType: string(ev.EventType),
		Timestamp: ev.Timestamp,
		Automatic: ev.Automatic,
		Metadata:  ev.Metadata,
	}
}
