package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/memory"
)

func newDoc(id string) *entity.FiscalDocument {
	return &entity.FiscalDocument{ID: id, RawXML: "<cfdi:Comprobante/>", CreatedAt: time.Now()}
}

func TestDocuments_ApplyStampEsDeEscrituraUnica(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	require.NoError(t, s.Documents().Create(ctx, newDoc("a")))
	require.NoError(t, s.Documents().Create(ctx, newDoc("b")))

	require.NoError(t, s.Documents().ApplyStamp(ctx, &entity.FiscalDocument{ID: "a", UUID: "U-1", ProviderUsed: "demo"}))
	err := s.Documents().ApplyStamp(ctx, &entity.FiscalDocument{ID: "a", UUID: "U-2"})
	assert.ErrorIs(t, err, domain.ErrAlreadyStamped)

	err = s.Documents().ApplyStamp(ctx, &entity.FiscalDocument{ID: "b", UUID: "U-1"})
	assert.ErrorIs(t, err, domain.ErrConflict, "un UUID pertenece a un solo documento")

	doc, err := s.Documents().GetByUUID(ctx, "U-1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "a", doc.ID)
	assert.Equal(t, "demo", doc.ProviderUsed)

	missing, err := s.Documents().GetByID(ctx, "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDocuments_CreateDuplicado(t *testing.T) {
	s := memory.NewStore()
	require.NoError(t, s.Documents().Create(context.Background(), newDoc("a")))
	assert.ErrorIs(t, s.Documents().Create(context.Background(), newDoc("a")), domain.ErrConflict)
}

func TestEvents_SecuenciaYCopiaDefensiva(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	require.NoError(t, s.Documents().Create(ctx, newDoc("a")))

	meta := map[string]string{"k": "v"}
	ev1 := &entity.LifecycleEvent{ID: "e1", DocumentID: "a", EventType: entity.EventCreado, Metadata: meta}
	ev2 := &entity.LifecycleEvent{ID: "e2", DocumentID: "a", EventType: entity.EventXMLGenerado}
	require.NoError(t, s.Events().Append(ctx, ev1))
	require.NoError(t, s.Events().Append(ctx, ev2))
	assert.Less(t, ev1.Sequence, ev2.Sequence)

	meta["k"] = "mutado"
	list, err := s.Events().ListByDocument(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "e1", list[0].ID)
	assert.Equal(t, "v", list[0].Metadata["k"])

	err = s.Events().Append(ctx, &entity.LifecycleEvent{ID: "x", DocumentID: "nope", EventType: entity.EventCreado})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancellations_UnaActivaPorDocumento(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	repo := s.Cancellations()

	first := &entity.CancellationRequest{ID: "c1", DocumentID: "a", Estado: entity.CancellationProcesando}
	require.NoError(t, repo.Create(ctx, first))
	err := repo.Create(ctx, &entity.CancellationRequest{ID: "c2", DocumentID: "a", Estado: entity.CancellationProcesando})
	assert.ErrorIs(t, err, domain.ErrCancellationInProgress)

	first.Estado = entity.CancellationError
	require.NoError(t, repo.Update(ctx, first))
	active, err := repo.GetActiveByDocument(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, active)

	require.NoError(t, repo.Create(ctx, &entity.CancellationRequest{ID: "c2", DocumentID: "a", Estado: entity.CancellationProcesando}))
	active, err = repo.GetActiveByDocument(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "c2", active.ID)
}

func TestRun_DescartaCambiosSiFalla(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	require.NoError(t, s.Documents().Create(ctx, newDoc("a")))

	boom := errors.New("boom")
	err := s.Run(ctx, func(docs repository.FiscalDocumentRepository, events repository.LifecycleEventRepository, _ repository.CancellationRepository) error {
		if err := docs.ApplyStamp(ctx, &entity.FiscalDocument{ID: "a", UUID: "U-1"}); err != nil {
			return err
		}
		if err := events.Append(ctx, &entity.LifecycleEvent{ID: "e", DocumentID: "a", EventType: entity.EventTimbrado}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	doc, err := s.Documents().GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, doc.UUID)
	list, err := s.Events().ListByDocument(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, list)
	byUUID, err := s.Documents().GetByUUID(ctx, "U-1")
	require.NoError(t, err)
	assert.Nil(t, byUUID)
}

func TestRun_ConfirmaCambios(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	require.NoError(t, s.Documents().Create(ctx, newDoc("a")))

	err := s.Run(ctx, func(docs repository.FiscalDocumentRepository, _ repository.LifecycleEventRepository, cancels repository.CancellationRepository) error {
		if err := cancels.Create(ctx, &entity.CancellationRequest{ID: "c1", DocumentID: "a", Estado: entity.CancellationPendiente}); err != nil {
			return err
		}
		return docs.SetCancellation(ctx, "a", "c1")
	})
	require.NoError(t, err)

	doc, err := s.Documents().GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "c1", doc.CancellationRequestID)
}
