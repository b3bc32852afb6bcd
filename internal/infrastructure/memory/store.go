// Package memory implementa el almacén de documentos en memoria (STORE_DRIVER=memory)
// con las mismas garantías que el de PostgreSQL: UUID de escritura única, una sola
// cancelación activa por documento y transacciones todo o nada.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/cartaporte-api/internal/application/ports"
	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
)

var (
	_ ports.TxRunner                      = (*Store)(nil)
	_ repository.FiscalDocumentRepository = (*documentRepo)(nil)
	_ repository.LifecycleEventRepository = (*eventRepo)(nil)
	_ repository.CancellationRepository   = (*cancellationRepo)(nil)
)

type state struct {
	docs    map[string]entity.FiscalDocument
	byUUID  map[string]string
	events  map[string][]entity.LifecycleEvent
	seq     int64
	cancels map[string]entity.CancellationRequest
}

func (s *state) clone() state {
	out := state{
		docs:    make(map[string]entity.FiscalDocument, len(s.docs)),
		byUUID:  make(map[string]string, len(s.byUUID)),
		events:  make(map[string][]entity.LifecycleEvent, len(s.events)),
		seq:     s.seq,
		cancels: make(map[string]entity.CancellationRequest, len(s.cancels)),
	}
	for k, v := range s.docs {
		out.docs[k] = v
	}
	for k, v := range s.byUUID {
		out.byUUID[k] = v
	}
	for k, v := range s.events {
		out.events[k] = append([]entity.LifecycleEvent(nil), v...)
	}
	for k, v := range s.cancels {
		out.cancels[k] = v
	}
	return out
}

// Store almacén en memoria.
type Store struct {
	mu sync.Mutex
	st state
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{st: state{
		docs:    map[string]entity.FiscalDocument{},
		byUUID:  map[string]string{},
		events:  map[string][]entity.LifecycleEvent{},
		cancels: map[string]entity.CancellationRequest{},
	}}
}

// Documents repositorio de documentos fuera de transacción.
func (s *Store) Documents() repository.FiscalDocumentRepository { return &documentRepo{s: s} }

// Events repositorio de eventos fuera de transacción.
func (s *Store) Events() repository.LifecycleEventRepository { return &eventRepo{s: s} }

// Cancellations repositorio de cancelaciones fuera de transacción.
func (s *Store) Cancellations() repository.CancellationRepository { return &cancellationRepo{s: s} }

// Run ejecuta fn con el almacén bloqueado; si fn falla se descartan sus cambios.
func (s *Store) Run(ctx context.Context, fn func(
	docRepo repository.FiscalDocumentRepository,
	eventRepo repository.LifecycleEventRepository,
	cancelRepo repository.CancellationRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	err := fn(&documentRepo{s: s, tx: true}, &eventRepo{s: s, tx: true}, &cancellationRepo{s: s, tx: true})
	if err != nil {
		s.st = snapshot
	}
	return err
}

// do ejecuta fn sobre el estado; dentro de Run el candado ya está tomado.
func (s *Store) do(tx bool, fn func(st *state) error) error {
	if !tx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(&s.st)
}

// ── documentos ───────────────────────────────────────────────────────────────

type documentRepo struct {
	s  *Store
	tx bool
}

func (r *documentRepo) Create(_ context.Context, doc *entity.FiscalDocument) error {
	return r.s.do(r.tx, func(st *state) error {
		if _, ok := st.docs[doc.ID]; ok {
			return domain.ErrConflict
		}
		if doc.UUID != "" {
			if _, ok := st.byUUID[doc.UUID]; ok {
				return domain.ErrConflict
			}
			st.byUUID[doc.UUID] = doc.ID
		}
		st.docs[doc.ID] = *doc
		return nil
	})
}

func (r *documentRepo) GetByID(_ context.Context, id string) (*entity.FiscalDocument, error) {
	var out *entity.FiscalDocument
	err := r.s.do(r.tx, func(st *state) error {
		if d, ok := st.docs[id]; ok {
			out = &d
		}
		return nil
	})
	return out, err
}

func (r *documentRepo) GetByUUID(_ context.Context, uuid string) (*entity.FiscalDocument, error) {
	var out *entity.FiscalDocument
	err := r.s.do(r.tx, func(st *state) error {
		if id, ok := st.byUUID[uuid]; ok {
			d := st.docs[id]
			out = &d
		}
		return nil
	})
	return out, err
}

func (r *documentRepo) ApplyStamp(_ context.Context, doc *entity.FiscalDocument) error {
	return r.s.do(r.tx, func(st *state) error {
		cur, ok := st.docs[doc.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if cur.UUID != "" {
			return domain.ErrAlreadyStamped
		}
		if _, taken := st.byUUID[doc.UUID]; taken {
			return domain.ErrConflict
		}
		cur.UUID = doc.UUID
		cur.StampedXML = doc.StampedXML
		cur.IDCCP = doc.IDCCP
		cur.SelloDigital = doc.SelloDigital
		cur.SelloSAT = doc.SelloSAT
		cur.CadenaOriginal = doc.CadenaOriginal
		cur.QRCode = doc.QRCode
		cur.FechaTimbrado = doc.FechaTimbrado
		cur.ProviderUsed = doc.ProviderUsed
		cur.UpdatedAt = doc.UpdatedAt
		st.docs[doc.ID] = cur
		st.byUUID[doc.UUID] = doc.ID
		return nil
	})
}

func (r *documentRepo) SetCancellation(_ context.Context, documentID, cancellationID string) error {
	return r.s.do(r.tx, func(st *state) error {
		cur, ok := st.docs[documentID]
		if !ok {
			return domain.ErrNotFound
		}
		cur.CancellationRequestID = cancellationID
		st.docs[documentID] = cur
		return nil
	})
}

// ── eventos ──────────────────────────────────────────────────────────────────

type eventRepo struct {
	s  *Store
	tx bool
}

func (r *eventRepo) Append(_ context.Context, ev *entity.LifecycleEvent) error {
	return r.s.do(r.tx, func(st *state) error {
		if _, ok := st.docs[ev.DocumentID]; !ok {
			return domain.ErrNotFound
		}
		st.seq++
		ev.Sequence = st.seq
		cp := *ev
		cp.Metadata = copyMeta(ev.Metadata)
		st.events[ev.DocumentID] = append(st.events[ev.DocumentID], cp)
		return nil
	})
}

func (r *eventRepo) ListByDocument(_ context.Context, documentID string) ([]*entity.LifecycleEvent, error) {
	var out []*entity.LifecycleEvent
	err := r.s.do(r.tx, func(st *state) error {
		list := st.events[documentID]
		out = make([]*entity.LifecycleEvent, len(list))
		for i := range list {
			ev := list[i]
			ev.Metadata = copyMeta(ev.Metadata)
			out[i] = &ev
		}
		return nil
	})
	return out, err
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ── cancelaciones ────────────────────────────────────────────────────────────

type cancellationRepo struct {
	s  *Store
	tx bool
}

func activeFor(st *state, documentID string) *entity.CancellationRequest {
	for _, c := range st.cancels {
		if c.DocumentID == documentID && !c.Estado.IsTerminal() {
			c := c
			return &c
		}
	}
	return nil
}

func (r *cancellationRepo) Create(_ context.Context, req *entity.CancellationRequest) error {
	return r.s.do(r.tx, func(st *state) error {
		if activeFor(st, req.DocumentID) != nil {
			return domain.ErrCancellationInProgress
		}
		if _, ok := st.cancels[req.ID]; ok {
			return domain.ErrConflict
		}
		st.cancels[req.ID] = *req
		return nil
	})
}

func (r *cancellationRepo) Update(_ context.Context, req *entity.CancellationRequest) error {
	return r.s.do(r.tx, func(st *state) error {
		if _, ok := st.cancels[req.ID]; !ok {
			return domain.ErrNotFound
		}
		st.cancels[req.ID] = *req
		return nil
	})
}

func (r *cancellationRepo) GetByID(_ context.Context, id string) (*entity.CancellationRequest, error) {
	var out *entity.CancellationRequest
	err := r.s.do(r.tx, func(st *state) error {
		if c, ok := st.cancels[id]; ok {
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *cancellationRepo) GetActiveByDocument(_ context.Context, documentID string) (*entity.CancellationRequest, error) {
	var out *entity.CancellationRequest
	err := r.s.do(r.tx, func(st *state) error {
		out = activeFor(st, documentID)
		return nil
	})
	return out, err
}
