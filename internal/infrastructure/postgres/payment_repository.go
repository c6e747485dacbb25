package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	"github.com/jhoicas/cobros-sri/internal/domain/repository"
)

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

// PaymentRepo implementación de PaymentRepository (usable con pool o tx).
type PaymentRepo struct {
	q Querier
}

// NewPaymentRepository construye el adaptador.
func NewPaymentRepository(q Querier) *PaymentRepo {
	return &PaymentRepo{q: q}
}

// Register inserta la cabecera y sus detalles.
func (r *PaymentRepo) Register(ctx context.Context, p *entity.Payment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	const header = `
		INSERT INTO payments (id, invoice_id, partner_id, total, channel, validated, validated_by, validated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, header,
		p.ID, p.InvoiceID, nullIfEmpty(p.PartnerID), p.Total, p.Channel,
		p.Validated, nullIfEmpty(p.ValidatedBy), p.ValidatedAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	const entry = `
		INSERT INTO payment_entries (id, payment_id, method, amount, reference, source_bank)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range p.Entries {
		e := &p.Entries[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		e.PaymentID = p.ID
		if _, err := r.q.Exec(ctx, entry, e.ID, p.ID, e.Method, e.Amount, nullIfEmpty(e.Reference), nullIfEmpty(e.SourceBank)); err != nil {
			if violatedConstraint(err) == constraintTransferRef {
				return asConflict(err, "la referencia de transferencia ya fue reportada")
			}
			return fmt.Errorf("insert payment entry: %w", asConflict(err, "detalle de pago duplicado"))
		}
	}
	return nil
}

// GetByID pago con sus detalles. (nil, nil) si no existe.
func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*entity.Payment, error) {
	const query = `
		SELECT id, invoice_id, COALESCE(partner_id::text, ''), total, channel, validated,
		       COALESCE(validated_by, ''), validated_at, created_at
		FROM payments WHERE id = $1`
	var p entity.Payment
	var channel string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.InvoiceID, &p.PartnerID, &p.Total, &channel, &p.Validated,
		&p.ValidatedBy, &p.ValidatedAt, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	p.Channel = entity.PaymentChannel(channel)

	rows, err := r.q.Query(ctx, `
		SELECT id, payment_id, method, amount, COALESCE(reference, ''), COALESCE(source_bank, '')
		FROM payment_entries WHERE payment_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("list payment entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e entity.PaymentEntry
		var method string
		if err := rows.Scan(&e.ID, &e.PaymentID, &method, &e.Amount, &e.Reference, &e.SourceBank); err != nil {
			return nil, fmt.Errorf("scan payment entry: %w", err)
		}
		if m, ok := entity.ParsePaymentMethod(method); ok {
			e.Method = m
		} else {
			e.Method = entity.PaymentMethod(method)
		}
		p.Entries = append(p.Entries, e)
	}
	return &p, rows.Err()
}

// HasPendingTransfers transferencias registradas y aún no validadas por Tesorería.
func (r *PaymentRepo) HasPendingTransfers(ctx context.Context, invoiceID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM payments p
			JOIN payment_entries e ON e.payment_id = p.id
			WHERE p.invoice_id = $1 AND p.validated = false AND e.method = 'TRANSFER')`
	var exists bool
	if err := r.q.QueryRow(ctx, query, invoiceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("pending transfers: %w", err)
	}
	return exists, nil
}

// SumValidatedTransfers suma los detalles TRANSFER de pagos validados.
func (r *PaymentRepo) SumValidatedTransfers(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(e.amount), 0)
		FROM payments p
		JOIN payment_entries e ON e.payment_id = p.id
		WHERE p.invoice_id = $1 AND p.validated = true AND e.method = 'TRANSFER'`
	var sum decimal.Decimal
	if err := r.q.QueryRow(ctx, query, invoiceID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum validated transfers: %w", err)
	}
	return sum, nil
}

// Validate marca el pago como verificado.
func (r *PaymentRepo) Validate(ctx context.Context, id, validatedBy string, at time.Time) error {
	const query = `
		UPDATE payments SET validated = true, validated_by = $2, validated_at = $3
		WHERE id = $1 AND validated = false`
	if _, err := r.q.Exec(ctx, query, id, validatedBy, at); err != nil {
		return fmt.Errorf("validate payment: %w", err)
	}
	return nil
}
