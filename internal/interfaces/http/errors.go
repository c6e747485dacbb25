package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/cobros-sri/internal/application/dto"
	appsri "github.com/jhoicas/cobros-sri/internal/application/sri"
	"github.com/jhoicas/cobros-sri/internal/domain"
)

// writeError traduce errores de dominio a la respuesta HTTP.
func writeError(c *fiber.Ctx, err error) error {
	var (
		short   *domain.InsufficientFundsError
		pending *domain.PendingVerificationError
	)
	status, code := fiber.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.As(err, &short):
		status, code = fiber.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"
	case errors.As(err, &pending):
		status, code = fiber.StatusConflict, "PENDING_VERIFICATION"
	case errors.Is(err, domain.ErrInvoiceVoid):
		status, code = fiber.StatusUnprocessableEntity, "INVOICE_VOID"
	case errors.Is(err, domain.ErrBusinessRule):
		status, code = fiber.StatusUnprocessableEntity, "BUSINESS_RULE"
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrNotFound):
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrForbidden):
		status, code = fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrNotAuthorized):
		status, code = fiber.StatusConflict, "NOT_AUTHORIZED"
	case errors.Is(err, appsri.ErrReconcileInProgress):
		status, code = fiber.StatusConflict, "RECONCILE_IN_PROGRESS"
	case errors.Is(err, domain.ErrConflict):
		status, code = fiber.StatusConflict, "CONFLICT"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
