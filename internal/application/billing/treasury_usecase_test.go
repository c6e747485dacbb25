package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cobros-sri/internal/application/billing"
	"github.com/jhoicas/cobros-sri/internal/application/dto"
	"github.com/jhoicas/cobros-sri/internal/domain"
	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/memory"
)

func newTreasury() (*memory.Store, *billing.TreasuryUseCase) {
	store := memory.NewStore()
	store.PutInvoice(&entity.Invoice{
		ID: "inv-1", PartnerID: "socio-1",
		Total:          decimal.NewFromInt(100),
		FinancialState: entity.FinancialPending,
	})
	return store, billing.NewTreasuryUseCase(store.Invoices(), store.Payments(), zerolog.Nop())
}

func transfer(amount int64) dto.ReportTransferRequest {
	return dto.ReportTransferRequest{InvoiceID: "inv-1", Amount: decimal.NewFromInt(amount), Reference: "TRX-991", SourceBank: "Guayaquil"}
}

func TestReportTransfer_QuedaSinValidar(t *testing.T) {
	store, uc := newTreasury()

	out, err := uc.ReportTransfer(context.Background(), "socio-1", transfer(100))
	require.NoError(t, err)
	assert.False(t, out.Validated)
	assert.Equal(t, "ONLINE", out.Channel)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, "TRANSFER", out.Entries[0].Method)

	pending, err := store.Payments().HasPendingTransfers(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestReportTransfer_SocioAjeno(t *testing.T) {
	_, uc := newTreasury()
	_, err := uc.ReportTransfer(context.Background(), "socio-2", transfer(100))
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestReportTransfer_Invalida(t *testing.T) {
	_, uc := newTreasury()
	_, err := uc.ReportTransfer(context.Background(), "", transfer(0))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	in := transfer(10)
	in.Reference = "  "
	_, err = uc.ReportTransfer(context.Background(), "", in)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestValidatePayment_DesbloqueaCobro(t *testing.T) {
	store, uc := newTreasury()
	reported, err := uc.ReportTransfer(context.Background(), "", transfer(100))
	require.NoError(t, err)

	validated, err := uc.ValidatePayment(context.Background(), reported.ID, "tesorero-1")
	require.NoError(t, err)
	assert.True(t, validated.Validated)
	assert.Equal(t, "tesorero-1", validated.ValidatedBy)
	require.NotNil(t, validated.ValidatedAt)

	sum, err := store.Payments().SumValidatedTransfers(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(100)))

	_, err = uc.ValidatePayment(context.Background(), reported.ID, "tesorero-1")
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestValidatePayment_NoExiste(t *testing.T) {
	_, uc := newTreasury()
	_, err := uc.ValidatePayment(context.Background(), "p-x", "tesorero-1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
