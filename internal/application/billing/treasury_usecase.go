package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/cobros-sri/internal/application/dto"
	"github.com/jhoicas/cobros-sri/internal/domain"
	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	"github.com/jhoicas/cobros-sri/internal/domain/repository"
	domainsri "github.com/jhoicas/cobros-sri/internal/domain/sri"
)

// TreasuryUseCase transferencias reportadas por el socio y su validación.
// Mientras una transferencia no se valide, la factura no se puede cobrar.
type TreasuryUseCase struct {
	invoices repository.InvoiceRepository
	payments repository.PaymentRepository
	logger   zerolog.Logger
	now      func() time.Time
}

// NewTreasuryUseCase construye el caso de uso.
func NewTreasuryUseCase(invoices repository.InvoiceRepository, payments repository.PaymentRepository, logger zerolog.Logger) *TreasuryUseCase {
	return &TreasuryUseCase{
		invoices: invoices,
		payments: payments,
		logger:   logger.With().Str("component", "treasury").Logger(),
		now:      time.Now,
	}
}

// ReportTransfer registra una transferencia ONLINE sin validar. partnerID vacío
// significa que la reporta personal interno en nombre del socio.
func (uc *TreasuryUseCase) ReportTransfer(ctx context.Context, partnerID string, in dto.ReportTransferRequest) (*dto.PaymentResponse, error) {
	if in.InvoiceID == "" || strings.TrimSpace(in.Reference) == "" || !in.Amount.IsPositive() {
		return nil, domain.ErrInvalidInput
	}
	inv, err := uc.invoices.GetByID(ctx, in.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("transferencia: obtener factura: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if partnerID != "" && inv.PartnerID != partnerID {
		return nil, domain.ErrForbidden
	}
	if err := domainsri.CheckPayable(inv); err != nil {
		return nil, err
	}
	if inv.IsPaid() {
		return nil, fmt.Errorf("%w: la factura ya está pagada", domain.ErrConflict)
	}

	now := uc.now()
	payment := &entity.Payment{
		ID:        uuid.New().String(),
		InvoiceID: inv.ID,
		PartnerID: inv.PartnerID,
		Total:     in.Amount.Round(2),
		Channel:   entity.ChannelOnline,
		CreatedAt: now,
	}
	payment.Entries = []entity.PaymentEntry{{
		ID:         uuid.New().String(),
		PaymentID:  payment.ID,
		Method:     entity.PaymentTransfer,
		Amount:     payment.Total,
		Reference:  strings.TrimSpace(in.Reference),
		SourceBank: in.SourceBank,
	}}
	if err := uc.payments.Register(ctx, payment); err != nil {
		return nil, fmt.Errorf("transferencia: registrar: %w", err)
	}
	uc.logger.Info().Str("invoice_id", inv.ID).Str("payment_id", payment.ID).
		Str("monto", payment.Total.StringFixed(2)).Msg("transferencia reportada, pendiente de validación")
	return toPaymentResponse(payment), nil
}

// ValidatePayment marca el pago como verificado por Tesorería.
func (uc *TreasuryUseCase) ValidatePayment(ctx context.Context, paymentID, treasurerID string) (*dto.PaymentResponse, error) {
	if paymentID == "" {
		return nil, domain.ErrInvalidInput
	}
	payment, err := uc.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("validar pago: %w", err)
	}
	if payment == nil {
		return nil, domain.ErrNotFound
	}
	if payment.Validated {
		return nil, fmt.Errorf("%w: el pago ya fue validado", domain.ErrConflict)
	}
	now := uc.now()
	if err := uc.payments.Validate(ctx, paymentID, treasurerID, now); err != nil {
		return nil, fmt.Errorf("validar pago: %w", err)
	}
	payment.Validated = true
	payment.ValidatedBy = treasurerID
	payment.ValidatedAt = &now
	uc.logger.Info().Str("payment_id", paymentID).Str("tesorero", treasurerID).Msg("pago validado")
	return toPaymentResponse(payment), nil
}

func toPaymentResponse(p *entity.Payment) *dto.PaymentResponse {
	out := &dto.PaymentResponse{
		ID:          p.ID,
		InvoiceID:   p.InvoiceID,
		Total:       p.Total,
		Channel:     string(p.Channel),
		Validated:   p.Validated,
		ValidatedBy: p.ValidatedBy,
		ValidatedAt: p.ValidatedAt,
		CreatedAt:   p.CreatedAt,
		Entries:     make([]dto.PaymentEntryResponse, 0, len(p.Entries)),
	}
	for _, e := range p.Entries {
		out.Entries = append(out.Entries, dto.PaymentEntryResponse{
			Method:     string(e.Method),
			Amount:     e.Amount,
			Reference:  e.Reference,
			SourceBank: e.SourceBank,
		})
	}
	return out
}
