package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/cobros-sri/internal/application/billing"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Settle     *billing.SettleInvoiceUseCase
	Fiscal     *billing.FiscalUseCase
	Treasury   *billing.TreasuryUseCase
	Reconciler reconciler
	JWTSecret  string
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	invoiceHandler := NewInvoiceHandler(deps.Settle, deps.Fiscal)
	invoices := api.Group("/invoices")
	invoices.Post("/:id/settle", RequireRole(RoleTreasurer, RoleOperator), invoiceHandler.Settle)
	invoices.Get("/:id/fiscal-status", RequireRole(RoleTreasurer, RoleOperator, RolePartner), invoiceHandler.FiscalStatus)
	invoices.Get("/:id/ride", RequireRole(RoleTreasurer, RoleOperator, RolePartner), invoiceHandler.RIDE)

	paymentHandler := NewPaymentHandler(deps.Treasury)
	payments := api.Group("/payments")
	payments.Post("/transfers", RequireRole(RolePartner, RoleOperator), paymentHandler.ReportTransfer)
	payments.Post("/:id/validate", RequireRole(RoleTreasurer), paymentHandler.Validate)

	sriHandler := NewSRIHandler(deps.Reconciler)
	api.Post("/sri/reconcile", RequireRole(RoleAdmin), sriHandler.Reconcile)
}
