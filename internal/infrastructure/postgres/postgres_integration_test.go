//go:build integration

package postgres_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"github.com/jhoicas/cartaporte-api/internal/application/tracker"
	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/domain/cartaporte/cartaportetest"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/cfdixml"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/postgres"
	"github.com/jhoicas/cartaporte-api/pkg/config"
)

type StoreSuite struct {
	suite.Suite
	pool *pgxpool.Pool
	docs *postgres.FiscalDocumentRepo
	evts *postgres.LifecycleEventRepo
	cans *postgres.CancellationRepo
	tx   *postgres.TxRunner
}

func TestStoreSuite(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL no definido")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: os.Getenv("DATABASE_URL")})
	s.Require().NoError(err)
	ddl, err := os.ReadFile("../../../migrations/001_cartaporte.sql")
	s.Require().NoError(err)
	_, err = pool.Exec(ctx, string(ddl))
	s.Require().NoError(err)

	s.pool = pool
	s.docs = postgres.NewFiscalDocumentRepository(pool)
	s.evts = postgres.NewLifecycleEventRepository(pool)
	s.cans = postgres.NewCancellationRepository(pool)
	s.tx = postgres.NewTxRunner(pool)
}

func (s *StoreSuite) TearDownSuite() {
	s.pool.Close()
}

func (s *StoreSuite) newDocument() *entity.FiscalDocument {
	raw, err := cfdixml.NewXMLBuilderService().Build(cartaportetest.ValidComprobante())
	s.Require().NoError(err)
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := &entity.FiscalDocument{ID: uuid.NewString(), RawXML: string(raw), CreatedAt: now, UpdatedAt: now}
	s.Require().NoError(s.docs.Create(context.Background(), doc))
	return doc
}

func (s *StoreSuite) TestApplyStampSoloUnaVez() {
	ctx := context.Background()
	doc := s.newDocument()
	fecha := time.Now().UTC().Truncate(time.Second)

	const writers = 10
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.docs.ApplyStamp(ctx, &entity.FiscalDocument{
				ID: doc.ID, UUID: uuid.NewString(), FechaTimbrado: &fecha, ProviderUsed: "demo", UpdatedAt: fecha,
			})
			if err == nil {
				wins.Add(1)
				return
			}
			s.ErrorIs(err, domain.ErrAlreadyStamped)
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())

	got, err := s.docs.GetByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.NotEmpty(got.UUID)
	s.Require().NotNil(got.FechaTimbrado)
	s.True(fecha.Equal(*got.FechaTimbrado))

	byUUID, err := s.docs.GetByUUID(ctx, got.UUID)
	s.Require().NoError(err)
	s.Equal(doc.ID, byUUID.ID)
}

func (s *StoreSuite) TestApplyStampDocumentoInexistente() {
	err := s.docs.ApplyStamp(context.Background(), &entity.FiscalDocument{ID: uuid.NewString(), UUID: uuid.NewString()})
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *StoreSuite) TestEventosEnOrdenConMetadata() {
	ctx := context.Background()
	doc := s.newDocument()
	now := time.Now().UTC()
	s.Require().NoError(s.evts.Append(ctx, tracker.NewEvent(doc.ID, entity.EventCreado, true, nil, now)))
	s.Require().NoError(s.evts.Append(ctx, tracker.NewEvent(doc.ID, entity.EventXMLGenerado, true,
		map[string]string{"origen": "api"}, now)))

	list, err := s.evts.ListByDocument(ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(entity.EventCreado, list[0].EventType)
	s.Less(list[0].Sequence, list[1].Sequence)
	s.Equal("api", list[1].Metadata["origen"])

	err = s.evts.Append(ctx, tracker.NewEvent(uuid.NewString(), entity.EventCreado, true, nil, now))
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *StoreSuite) TestUnaCancelacionActivaPorDocumento() {
	ctx := context.Background()
	doc := s.newDocument()
	now := time.Now().UTC()
	newReq := func() *entity.CancellationRequest {
		return &entity.CancellationRequest{
			ID: uuid.NewString(), DocumentID: doc.ID, UUID: "U", RFC: cartaportetest.EmisorRFC,
			MotivoCode: "02", Estado: entity.CancellationProcesando, Provider: "demo", CreatedAt: now, UpdatedAt: now,
		}
	}

	first := newReq()
	s.Require().NoError(s.cans.Create(ctx, first))
	s.ErrorIs(s.cans.Create(ctx, newReq()), domain.ErrCancellationInProgress)

	first.Estado = entity.CancellationError
	first.CodigoRespuesta = "unknown"
	s.Require().NoError(s.cans.Update(ctx, first))
	active, err := s.cans.GetActiveByDocument(ctx, doc.ID)
	s.Require().NoError(err)
	s.Nil(active)
	s.NoError(s.cans.Create(ctx, newReq()))
}

func (s *StoreSuite) TestTransaccionRevierte() {
	ctx := context.Background()
	doc := s.newDocument()
	err := s.tx.Run(ctx, func(docs repository.FiscalDocumentRepository, events repository.LifecycleEventRepository, _ repository.CancellationRepository) error {
		if err := events.Append(ctx, tracker.NewEvent(doc.ID, entity.EventCreado, true, nil, time.Now())); err != nil {
			return err
		}
		return docs.SetCancellation(ctx, uuid.NewString(), uuid.NewString())
	})
	s.ErrorIs(err, domain.ErrNotFound)

	list, err := s.evts.ListByDocument(ctx, doc.ID)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *StoreSuite) TestProviderUpsertDesactivaAusentes() {
	ctx := context.Background()
	repo := postgres.NewProviderConfigRepository(s.pool)
	suffix := uuid.NewString()[:8]
	a := entity.ProviderConfig{Name: "a-" + suffix, Type: entity.ProviderDemo, Active: true, Priority: 1}
	b := entity.ProviderConfig{Name: "b-" + suffix, Type: entity.ProviderSmartWeb, SandboxURL: "https://sw.test",
		Credentials: entity.ProviderCredentials{Token: "t"}, Active: true, Priority: 2}

	_, err := repo.Upsert(ctx, []entity.ProviderConfig{a, b})
	s.Require().NoError(err)

	a.Priority = 5
	deactivated, err := repo.Upsert(ctx, []entity.ProviderConfig{a})
	s.Require().NoError(err)
	s.GreaterOrEqual(deactivated, int64(1))

	list, err := repo.LoadProviders(ctx)
	s.Require().NoError(err)
	byName := map[string]entity.ProviderConfig{}
	for _, p := range list {
		byName[p.Name] = p
	}
	s.Equal(5, byName[a.Name].Priority)
	s.True(byName[a.Name].Active)
	s.False(byName[b.Name].Active)
	s.Equal("t", byName[b.Name].Credentials.Token)
}
