package billing

import (
	"context"
	"time"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	"github.com/jhoicas/cobros-sri/internal/domain/repository"
)

// SettlementTxRunner ejecuta fn dentro de una transacción con los repositorios
// de factura y pago ligados a ella. Si fn devuelve error se hace rollback.
type SettlementTxRunner interface {
	RunSettlement(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		paymentRepo repository.PaymentRepository,
	) error) error
}

// IdempotencyCache guarda la respuesta exacta de un cobro ya procesado.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, response []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SubmissionScheduler programa el envío al SRI una vez confirmada la transacción.
type SubmissionScheduler interface {
	ScheduleSubmission(ctx context.Context, invoiceID string) error
}

// InvoicePDFGenerator genera el RIDE en PDF.
type InvoicePDFGenerator interface {
	Render(inv *entity.Invoice, partner *entity.Partner) ([]byte, error)
}
