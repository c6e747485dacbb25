package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
)

// PaymentRepository define el puerto de persistencia para Payment y sus detalles.
type PaymentRepository interface {
	// Register inserta cabecera y detalles.
	Register(ctx context.Context, payment *entity.Payment) error
	GetByID(ctx context.Context, id string) (*entity.Payment, error)
	// HasPendingTransfers indica si la factura tiene transferencias sin validar.
	HasPendingTransfers(ctx context.Context, invoiceID string) (bool, error)
	// SumValidatedTransfers suma los detalles TRANSFER de pagos ya validados.
	SumValidatedTransfers(ctx context.Context, invoiceID string) (decimal.Decimal, error)
	// Validate marca el pago como verificado por Tesorería.
	Validate(ctx context.Context, id, validatedBy string, at time.Time) error
}
