package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/cobros-sri/internal/application/billing"
	"github.com/jhoicas/cobros-sri/internal/application/dto"
)

// InvoiceHandler cobro en ventanilla, estado fiscal y RIDE.
type InvoiceHandler struct {
	settle *billing.SettleInvoiceUseCase
	fiscal *billing.FiscalUseCase
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(settle *billing.SettleInvoiceUseCase, fiscal *billing.FiscalUseCase) *InvoiceHandler {
	return &InvoiceHandler{settle: settle, fiscal: fiscal}
}

// Settle registra el cobro y devuelve el cuerpo tal cual lo produjo el caso de
// uso: un reintento recibe exactamente los mismos bytes.
// POST /api/invoices/:id/settle
func (h *InvoiceHandler) Settle(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.SettlementRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	body, err := h.settle.Settle(c.UserContext(), c.Params("id"), userID, in)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(body)
}

// FiscalStatus estado financiero y fiscal de la factura.
// GET /api/invoices/:id/fiscal-status
func (h *InvoiceHandler) FiscalStatus(c *fiber.Ctx) error {
	out, err := h.fiscal.FiscalStatus(c.UserContext(), scopedPartner(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// RIDE descarga el PDF de una factura autorizada.
// GET /api/invoices/:id/ride
func (h *InvoiceHandler) RIDE(c *fiber.Ctx) error {
	pdf, filename, err := h.fiscal.DownloadRIDE(c.UserContext(), scopedPartner(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdf)
}
