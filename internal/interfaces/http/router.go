package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/cartaporte-api/internal/application/usecase"
	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	ServiceName    string
	DocumentUC     *usecase.DocumentUseCase
	CancellationUC *usecase.CancellationUseCase
	Gatherer       prometheus.Gatherer // nil omite /metrics
	JWTSecret      string
	JWTIssuer      string
	Logger         *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("http")

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.ServiceName})
	})
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Todas las rutas de negocio requieren Bearer Token.
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))
	anyRole := RequireRole(RoleAdmin, RoleOperator, RoleViewer)
	writers := RequireRole(RoleAdmin, RoleOperator)

	docHandler := NewDocumentHandler(deps.DocumentUC, log)
	docs := api.Group("/documents")
	docs.Post("/", writers, docHandler.Create)
	docs.Post("/validate", writers, docHandler.Validate)
	docs.Post("/stamp", writers, docHandler.StampBatch)
	docs.Get("/:id", anyRole, docHandler.GetByID)
	docs.Post("/:id/stamp", writers, docHandler.Stamp)
	docs.Post("/:id/events", writers, docHandler.RecordEvent)
	docs.Get("/:id/events", anyRole, docHandler.History)
	docs.Get("/:id/status", anyRole, docHandler.GetStatus)

	cancelHandler := NewCancellationHandler(deps.CancellationUC, log)
	docs.Post("/:id/cancellation/resolution", RequireRole(RoleAdmin), cancelHandler.Resolve)
	cancellations := api.Group("/cancellations")
	cancellations.Post("/", writers, cancelHandler.Cancel)
	cancellations.Get("/:id", anyRole, cancelHandler.GetByID)

	api.Get("/providers", anyRole, docHandler.ListProviders)
}
