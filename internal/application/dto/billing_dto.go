package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── Cobro en caja ─────────────────────────────────────────────────────────────

// SettlementPayment una forma de pago recibida en caja.
type SettlementPayment struct {
	Method     string          `json:"method"` // CASH|TRANSFER|CHECK (acepta EFECTIVO/TRANSFERENCIA/CHEQUE)
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference,omitempty"`
	SourceBank string          `json:"source_bank,omitempty"`
}

// SettlementRequest body para POST /api/invoices/:id/settle.
type SettlementRequest struct {
	Payments []SettlementPayment `json:"payments"`
}

// SettlementInvoice estado de la factura tras el cobro.
type SettlementInvoice struct {
	ID                 string `json:"id"`
	FinancialState     string `json:"financial_state"`
	FiscalState        string `json:"fiscal_state"`
	FiscalErrorMessage string `json:"fiscal_error_message"`
}

// SettlementResponse contrato de respuesta del cobro. Se cachea y se
// reenvía byte a byte ante reintentos del mismo cobro.
type SettlementResponse struct {
	Status      string            `json:"status"` // OK|SRI_PENDING|SRI_ERROR
	PaidAmount  string            `json:"paid_amount"`
	Message     string            `json:"message"`
	Invoice     SettlementInvoice `json:"invoice"`
	DocumentURL string            `json:"document_url,omitempty"`
}

// ── Transferencias (Tesorería) ────────────────────────────────────────────────

// ReportTransferRequest body para POST /api/payments/transfers.
type ReportTransferRequest struct {
	InvoiceID  string          `json:"invoice_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference"`
	SourceBank string          `json:"source_bank,omitempty"`
}

// PaymentResponse pago en respuestas.
type PaymentResponse struct {
	ID          string                 `json:"id"`
	InvoiceID   string                 `json:"invoice_id"`
	Total       decimal.Decimal        `json:"total"`
	Channel     string                 `json:"channel"`
	Validated   bool                   `json:"validated"`
	ValidatedBy string                 `json:"validated_by,omitempty"`
	ValidatedAt *time.Time             `json:"validated_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	Entries     []PaymentEntryResponse `json:"entries"`
}

// PaymentEntryResponse detalle del pago.
type PaymentEntryResponse struct {
	Method     string          `json:"method"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference,omitempty"`
	SourceBank string          `json:"source_bank,omitempty"`
}
