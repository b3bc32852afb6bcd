// Package tracker registra eventos del ciclo de vida y deriva estado, avance y alertas.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/cartaporte-api/internal/application/ports"
	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/lifecycle"
	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/metrics"
	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

// manualEvents eventos que un usuario puede registrar; el resto los produce el sistema.
var manualEvents = map[entity.EventType]bool{
	entity.EventIniciado:  true,
	entity.EventEnRuta:    true,
	entity.EventEntregado: true,
}

// Status estado derivado del registro de eventos.
type Status struct {
	DocumentID string                 `json:"document_id"`
	Status     entity.DocumentStatus  `json:"status"`
	Progress   int                    `json:"progress"`
	Alerts     []lifecycle.Alert      `json:"alerts"`
	LastEvent  *entity.LifecycleEvent `json:"-"`
}

// Tracker DocumentLifecycleTracker.
type Tracker struct {
	docRepo    repository.FiscalDocumentRepository
	eventRepo  repository.LifecycleEventRepository
	tx         ports.TxRunner
	locker     ports.DocumentLocker
	thresholds lifecycle.Thresholds
	metrics    *metrics.Metrics
	now        func() time.Time
	log        *logger.Logger
}

// Config dependencias del tracker. Tx y Locker son los mismos que usan timbrado y
// cancelación: un evento manual no se intercala con una operación fiscal en curso.
type Config struct {
	Documents  repository.FiscalDocumentRepository
	Events     repository.LifecycleEventRepository
	Tx         ports.TxRunner
	Locker     ports.DocumentLocker
	Thresholds lifecycle.Thresholds
	Metrics    *metrics.Metrics // opcional
	Now        func() time.Time
	Logger     *logger.Logger
}

// New crea el tracker.
func New(c Config) *Tracker {
	th := c.Thresholds
	if th.StampedWithoutTransit <= 0 || th.TransitStale <= 0 {
		th = lifecycle.DefaultThresholds
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	return &Tracker{
		docRepo:    c.Documents,
		eventRepo:  c.Events,
		tx:         c.Tx,
		locker:     c.Locker,
		thresholds: th,
		metrics:    c.Metrics,
		now:        c.Now,
		log:        c.Logger.Component("lifecycle"),
	}
}

// NewEvent construye un evento listo para Append.
func NewEvent(documentID string, t entity.EventType, automatic bool, metadata map[string]string, at time.Time) *entity.LifecycleEvent {
	return &entity.LifecycleEvent{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		EventType:  t,
		Timestamp:  at,
		Automatic:  automatic,
		Metadata:   metadata,
	}
}

// RecordEvent agrega un evento de tránsito registrado por un usuario.
func (t *Tracker) RecordEvent(ctx context.Context, documentID, eventName string, metadata map[string]string) (*entity.LifecycleEvent, error) {
	et, err := lifecycle.ParseEventType(eventName)
	if err != nil {
		t.log.Error().Str("document_id", documentID).Str("event", eventName).Msg("evento de ciclo de vida desconocido")
		return nil, err
	}
	if !manualEvents[et] {
		return nil, fmt.Errorf("%w: el evento %q lo registra el sistema", domain.ErrInvalidInput, et)
	}
	// Con el candado tomado no hay timbrado ni cancelación en curso para el documento.
	release, err := t.locker.Acquire(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer release()

	ev := NewEvent(documentID, et, false, metadata, t.now())
	err = t.tx.Run(ctx, func(docRepo repository.FiscalDocumentRepository, eventRepo repository.LifecycleEventRepository, _ repository.CancellationRepository) error {
		doc, err := docRepo.GetByID(ctx, documentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return domain.ErrNotFound
		}
		return AppendChecked(ctx, eventRepo, ev)
	})
	if err != nil {
		return nil, err
	}
	t.metrics.IncrementLifecycleEvent(string(et))
	t.log.Info().Str("document_id", documentID).Str("event", string(et)).Msg("evento registrado")
	return ev, nil
}

// AppendChecked agrega ev si el registro actual admite la transición. Se llama dentro
// de la transacción que escribe el evento.
func AppendChecked(ctx context.Context, eventRepo repository.LifecycleEventRepository, ev *entity.LifecycleEvent) error {
	events, err := eventRepo.ListByDocument(ctx, ev.DocumentID)
	if err != nil {
		return err
	}
	if err := lifecycle.CheckTransition(events, ev.EventType); err != nil {
		return err
	}
	return eventRepo.Append(ctx, ev)
}

// GetStatus estado, avance y alertas del documento.
func (t *Tracker) GetStatus(ctx context.Context, documentID string) (*Status, error) {
	doc, err := t.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	events, err := t.eventRepo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	st, err := lifecycle.StatusOf(events)
	if err != nil {
		t.log.Error().Err(err).Str("document_id", documentID).Msg("registro de eventos con nombre desconocido")
		return nil, err
	}
	return &Status{
		DocumentID: documentID,
		Status:     st,
		Progress:   lifecycle.Progress(st),
		Alerts:     lifecycle.Alerts(events, t.now(), t.thresholds),
		LastEvent:  lifecycle.Latest(events),
	}, nil
}

// History eventos del documento en orden cronológico.
func (t *Tracker) History(ctx context.Context, documentID string) ([]*entity.LifecycleEvent, error) {
	events, err := t.eventRepo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return lifecycle.Sorted(events), nil
}
