package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/cobros-sri/internal/application/billing"
	"github.com/jhoicas/cobros-sri/internal/application/dto"
)

// PaymentHandler transferencias reportadas y validación de Tesorería.
type PaymentHandler struct {
	uc *billing.TreasuryUseCase
}

// NewPaymentHandler construye el handler.
func NewPaymentHandler(uc *billing.TreasuryUseCase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

// ReportTransfer registra una transferencia pendiente de validación.
// POST /api/payments/transfers
func (h *PaymentHandler) ReportTransfer(c *fiber.Ctx) error {
	var in dto.ReportTransferRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.ReportTransfer(c.UserContext(), scopedPartner(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Validate marca el pago como verificado.
// POST /api/payments/:id/validate
func (h *PaymentHandler) Validate(c *fiber.Ctx) error {
	out, err := h.uc.ValidatePayment(c.UserContext(), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
