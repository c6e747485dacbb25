package dto

import "time"

// ── Reconciliación ────────────────────────────────────────────────────────────

// ReconcileJob trabajo encolado por la reconciliación.
type ReconcileJob struct {
	InvoiceID        string `json:"invoice_id"`
	PriorFiscalState string `json:"prior_fiscal_state"`
	JobID            string `json:"job_id"`
	JobType          string `json:"job_type"`
}

// ReconcileManifest respuesta de POST /api/sri/reconcile.
type ReconcileManifest struct {
	TotalEnqueued int            `json:"total_enqueued"`
	Jobs          []ReconcileJob `json:"jobs"`
}

// ── Estado fiscal ─────────────────────────────────────────────────────────────

// FiscalStatusResponse respuesta de GET /api/invoices/:id/fiscal-status.
type FiscalStatusResponse struct {
	InvoiceID           string     `json:"invoice_id"`
	FinancialState      string     `json:"financial_state"`
	FiscalState         string     `json:"fiscal_state"`
	AccessKey           string     `json:"access_key,omitempty"`
	FiscalErrorCode     string     `json:"fiscal_error_code,omitempty"`
	FiscalErrorMessage  *string    `json:"fiscal_error_message"`
	AuthorizationNumber string     `json:"authorization_number,omitempty"`
	AuthorizedAt        *time.Time `json:"authorized_at,omitempty"`
}
