package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cobros-sri/internal/application/billing"
	"github.com/jhoicas/cobros-sri/internal/domain"
	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/memory"
)

type pdfStub struct{}

func (pdfStub) Render(inv *entity.Invoice, _ *entity.Partner) ([]byte, error) {
	return []byte("%PDF-" + inv.ID), nil
}

func newFiscal(state entity.FiscalState) *billing.FiscalUseCase {
	store := memory.NewStore()
	at := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	store.PutInvoice(&entity.Invoice{
		ID: "inv-1", PartnerID: "socio-1",
		FinancialState:   entity.FinancialPaid,
		FiscalState:      state,
		AccessKey:        "0102202401179001234500110010010000001231234567819",
		AuthorityMessage: "[ERROR] FIRMA INVALIDA [ID:39]",
		AuthorizedAt:     &at,
	})
	store.PutPartner(&entity.Partner{ID: "socio-1", FirstNames: "Ana"})
	return billing.NewFiscalUseCase(store.Invoices(), store.Partners(), pdfStub{})
}

func TestFiscalStatus(t *testing.T) {
	uc := newFiscal(entity.FiscalRejected)
	out, err := uc.FiscalStatus(context.Background(), "", "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", out.FiscalState)
	require.NotNil(t, out.FiscalErrorMessage)
	assert.Contains(t, *out.FiscalErrorMessage, "ID:39")

	_, err = uc.FiscalStatus(context.Background(), "socio-2", "inv-1")
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	_, err = uc.FiscalStatus(context.Background(), "", "inv-x")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDownloadRIDE_SoloAutorizada(t *testing.T) {
	_, _, err := newFiscal(entity.FiscalPendingAuthority).DownloadRIDE(context.Background(), "", "inv-1")
	assert.True(t, errors.Is(err, domain.ErrNotAuthorized))

	pdf, name, err := newFiscal(entity.FiscalAuthorized).DownloadRIDE(context.Background(), "socio-1", "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-inv-1", string(pdf))
	assert.Equal(t, "RIDE_0102202401179001234500110010010000001231234567819.pdf", name)
}
