package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/cartaporte-api/internal/application/dto"
	"github.com/jhoicas/cartaporte-api/internal/application/usecase"
	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

// DocumentHandler documentos Carta Porte: alta, validación, timbrado y ciclo de vida.
type DocumentHandler struct {
	uc  *usecase.DocumentUseCase
	log *logger.Logger
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(uc *usecase.DocumentUseCase, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{uc: uc, log: log}
}

// Create registra un documento a partir del comprobante estructurado o del XML.
// POST /api/documents
func (h *DocumentHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Create(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Validate valida sin persistir. Un documento inválido responde 200 con isValid=false.
// POST /api/documents/validate
func (h *DocumentHandler) Validate(c *fiber.Ctx) error {
	var in dto.ValidateDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Validate(in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// GetByID GET /api/documents/:id
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	if out == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "documento no encontrado"})
	}
	return c.JSON(out)
}

// Stamp timbra el documento. El cuerpo es opcional (ambiente).
// POST /api/documents/:id/stamp
func (h *DocumentHandler) Stamp(c *fiber.Ctx) error {
	var in dto.StampRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	out, err := h.uc.Stamp(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.log.Info().
		Str("document_id", c.Params("id")).
		Str("provider", out.Provider).
		Str("subject", GetSubject(c)).
		Msg("documento timbrado")
	return c.JSON(out)
}

// StampBatch POST /api/documents/stamp
func (h *DocumentHandler) StampBatch(c *fiber.Ctx) error {
	var in dto.BatchStampRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.StampBatch(c.UserContext(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// RecordEvent registra un evento manual de tránsito.
// POST /api/documents/:id/events
func (h *DocumentHandler) RecordEvent(c *fiber.Ctx) error {
	var in dto.RecordEventRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.RecordEvent(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// History GET /api/documents/:id/events
func (h *DocumentHandler) History(c *fiber.Ctx) error {
	out, err := h.uc.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// GetStatus GET /api/documents/:id/status
func (h *DocumentHandler) GetStatus(c *fiber.Ctx) error {
	out, err := h.uc.GetStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// ListProviders GET /api/providers
func (h *DocumentHandler) ListProviders(c *fiber.Ctx) error {
	out, err := h.uc.ListProviders(c.UserContext())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}
