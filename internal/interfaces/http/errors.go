package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/cartaporte-api/internal/application/dto"
	"github.com/jhoicas/cartaporte-api/internal/application/usecase"
	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

// statusClientClosed convención de nginx para peticiones abandonadas por el cliente.
const statusClientClosed = 499

var statusByCode = map[string]int{
	"VALIDATION":               fiber.StatusBadRequest,
	"INVALID_INPUT":            fiber.StatusBadRequest,
	"NOT_FOUND":                fiber.StatusNotFound,
	"ALREADY_STAMPED":          fiber.StatusConflict,
	"IN_FLIGHT":                fiber.StatusConflict,
	"CANCELLATION_IN_PROGRESS": fiber.StatusConflict,
	"CONFLICT":                 fiber.StatusConflict,
	"REJECTED":                 fiber.StatusUnprocessableEntity,
	"STAMPING_FAILED":          fiber.StatusBadGateway,
	"CONFIGURATION":            fiber.StatusServiceUnavailable,
	"CANCELED":                 statusClientClosed,
}

// writeError traduce un error de dominio a dto.ErrorResponse. Los internos no exponen el detalle.
func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	code, known := usecase.ErrorCode(err)
	if !known {
		log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: code, Message: "error interno"})
	}
	body := dto.ErrorResponse{Code: code, Message: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Details = ve.Errors
	}
	return c.Status(statusByCode[code]).JSON(body)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
