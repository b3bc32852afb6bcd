package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jhoicas/cartaporte-api/internal/application/cancellation"
	"github.com/jhoicas/cartaporte-api/internal/application/ports"
	"github.com/jhoicas/cartaporte-api/internal/application/stamping"
	"github.com/jhoicas/cartaporte-api/internal/application/tracker"
	"github.com/jhoicas/cartaporte-api/internal/application/usecase"
	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/lifecycle"
	"github.com/jhoicas/cartaporte-api/internal/domain/provider"
	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/lock"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/memory"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/metrics"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/pac"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/cartaporte-api/internal/interfaces/http"
	"github.com/jhoicas/cartaporte-api/pkg/config"
	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

// stores repositorios y transacciones del driver elegido.
type stores struct {
	documents     repository.FiscalDocumentRepository
	events        repository.LifecycleEventRepository
	cancellations repository.CancellationRepository
	tx            ports.TxRunner
	providers     repository.ProviderConfigLoader
	close         func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Driver).
		Str("pac_environment", cfg.PAC.Environment).
		Msg("iniciando aplicación")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET requerido")
	}
	env, err := entity.ParseEnvironment(cfg.PAC.Environment)
	if err != nil {
		log.Fatal().Err(err).Msg("PAC_ENVIRONMENT")
	}

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión al almacén")
	}
	defer st.close()
	checkProviders(ctx, st.providers, log)

	var locker ports.DocumentLocker = lock.NewMemoryLocker()
	if cfg.Redis.URL != "" {
		rdb, err := lock.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.Redis.LockTTL, log)
	} else {
		log.Warn().Msg("REDIS_URL vacío: candado por documento en memoria, válido solo con una réplica")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// El límite por llamada lo impone el orquestador con el contexto.
	clients := pac.NewFactory(&http.Client{Transport: http.DefaultTransport})
	orch := stamping.NewOrchestrator(clients, stamping.Config{
		MaxRetries:  cfg.PAC.MaxRetries,
		BaseDelay:   cfg.PAC.BackoffBase,
		CallTimeout: cfg.PAC.CallTimeout,
	}, log, stamping.WithObserver(m))

	stamper := stamping.NewService(stamping.ServiceConfig{
		Documents:        st.documents,
		Events:           st.events,
		Tx:               st.tx,
		Locker:           locker,
		Providers:        st.providers,
		Orchestrator:     orch,
		Metrics:          m,
		BatchConcurrency: cfg.PAC.BatchConcurrency,
		Logger:           log,
	})
	lifecycleTracker := tracker.New(tracker.Config{
		Documents: st.documents,
		Events:    st.events,
		Tx:        st.tx,
		Locker:    locker,
		Thresholds: lifecycle.Thresholds{
			StampedWithoutTransit: cfg.Lifecycle.StampedWithoutTransit,
			TransitStale:          cfg.Lifecycle.TransitStale,
		},
		Metrics: m,
		Logger:  log,
	})
	coordinator := cancellation.New(cancellation.Config{
		Documents:     st.documents,
		Events:        st.events,
		Cancellations: st.cancellations,
		Tx:            st.tx,
		Locker:        locker,
		Providers:     st.providers,
		Clients:       clients,
		CallTimeout:   cfg.PAC.CallTimeout,
		Metrics:       m,
		Logger:        log,
	})

	documentUC := usecase.NewDocumentUseCase(usecase.DocumentDeps{
		Documents:   st.documents,
		Events:      st.events,
		Tx:          st.tx,
		Providers:   st.providers,
		Stamper:     stamper,
		Tracker:     lifecycleTracker,
		Environment: env,
		Logger:      log,
	})
	cancellationUC := usecase.NewCancellationUseCase(coordinator, env)

	// El timbrado puede tardar MaxRetries llamadas por PAC; WriteTimeout lo acompaña.
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Carta Porte API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		ServiceName:    cfg.App.Name,
		DocumentUC:     documentUC,
		CancellationUC: cancellationUC,
		Gatherer:       reg,
		JWTSecret:      cfg.JWT.Secret,
		JWTIssuer:      cfg.JWT.Issuer,
		Logger:         log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	// Margen para que los timbrados en curso persistan su resultado.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.PAC.CallTimeout+10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	var fileProviders repository.ProviderConfigLoader = config.FileProviderLoader{Path: cfg.PAC.ProvidersFile}

	if cfg.Store.Driver == config.StoreMemory {
		mem := memory.NewStore()
		return &stores{
			documents:     mem.Documents(),
			events:        mem.Events(),
			cancellations: mem.Cancellations(),
			tx:            mem,
			providers:     fileProviders,
			close:         func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	s := &stores{
		documents:     postgres.NewFiscalDocumentRepository(pool),
		events:        postgres.NewLifecycleEventRepository(pool),
		cancellations: postgres.NewCancellationRepository(pool),
		tx:            postgres.NewTxRunner(pool),
		providers:     fileProviders,
		close:         pool.Close,
	}
	if cfg.PAC.ProvidersSource == config.ProvidersFromDB {
		s.providers = postgres.NewProviderConfigRepository(pool)
	}
	return s, nil
}

// checkProviders valida la lista al arrancar. No es fatal: la lista se relee en cada
// timbrado y puede corregirse sin reiniciar.
func checkProviders(ctx context.Context, loader repository.ProviderConfigLoader, log *logger.Logger) {
	configs, err := loader.LoadProviders(ctx)
	if err != nil {
		log.Error().Err(err).Msg("no se pudo leer la lista de PACs")
		return
	}
	reg, err := provider.NewRegistry(configs)
	if err != nil {
		log.Error().Err(err).Msg("lista de PACs inválida")
		return
	}
	active := reg.OrderedActive()
	if len(active) == 0 {
		log.Warn().Msg("no hay PACs activos; el timbrado responderá CONFIGURATION")
		return
	}
	names := make([]string, len(active))
	for i, p := range active {
		names[i] = p.Name
	}
	log.Info().Strs("providers", names).Msg("PACs activos en orden de failover")
}
