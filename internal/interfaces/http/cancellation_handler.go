package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/cartaporte-api/internal/application/dto"
	"github.com/jhoicas/cartaporte-api/internal/application/usecase"
	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

// CancellationHandler solicitudes de cancelación ante el PAC.
type CancellationHandler struct {
	uc  *usecase.CancellationUseCase
	log *logger.Logger
}

// NewCancellationHandler construye el handler.
func NewCancellationHandler(uc *usecase.CancellationUseCase, log *logger.Logger) *CancellationHandler {
	return &CancellationHandler{uc: uc, log: log}
}

// Cancel solicita la cancelación de un UUID timbrado. La respuesta lleva el estado
// de la solicitud (cancelado, pendiente o error).
// POST /api/cancellations
func (h *CancellationHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Cancel(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	status := fiber.StatusOK
	if out.Estado == "pendiente" {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(out)
}

// GetByID GET /api/cancellations/:id
func (h *CancellationHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Resolve registra la respuesta definitiva de una cancelación pendiente.
// POST /api/documents/:id/cancellation/resolution
func (h *CancellationHandler) Resolve(c *fiber.Ctx) error {
	var in dto.ResolutionRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Resolve(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}
