package sri_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cobros-sri/internal/domain"
	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	domainsri "github.com/jhoicas/cobros-sri/internal/domain/sri"
	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

var now = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ── Liquidación ──────────────────────────────────────────────────────────────

func TestCheckSettlement_Insuficiente(t *testing.T) {
	err := domainsri.CheckSettlement(d("100.00"), decimal.Zero, d("50.00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBusinessRule))

	var insuf *domain.InsufficientFundsError
	require.True(t, errors.As(err, &insuf))
	assert.Equal(t, "50.00", insuf.Shortfall.StringFixed(2))
}

func TestCheckSettlement_ToleranciaUnCentavo(t *testing.T) {
	assert.NoError(t, domainsri.CheckSettlement(d("120.00"), decimal.Zero, d("120.00")))
	assert.NoError(t, domainsri.CheckSettlement(d("120.00"), d("20.00"), d("99.99")))
	assert.Error(t, domainsri.CheckSettlement(d("120.00"), d("20.00"), d("99.98")))
}

func TestCheckSettlement_SobrepagoPermitido(t *testing.T) {
	assert.NoError(t, domainsri.CheckSettlement(d("10.00"), decimal.Zero, d("15.00")))
}

func TestMarkPaid_ArrancaCircuitoFiscal(t *testing.T) {
	inv := &entity.Invoice{FinancialState: entity.FinancialPending, FiscalState: entity.FiscalNotSent}
	require.NoError(t, domainsri.MarkPaid(inv, now))
	assert.Equal(t, entity.FinancialPaid, inv.FinancialState)
	assert.Equal(t, entity.FiscalPendingSignature, inv.FiscalState)
	assert.Equal(t, now, inv.UpdatedAt)
}

func TestMarkPaid_Anulada(t *testing.T) {
	inv := &entity.Invoice{FinancialState: entity.FinancialVoid, FiscalState: entity.FiscalNotSent}
	err := domainsri.MarkPaid(inv, now)
	assert.ErrorIs(t, err, domain.ErrInvoiceVoid)
	assert.Equal(t, entity.FinancialVoid, inv.FinancialState)
}

// ── Transiciones fiscales ────────────────────────────────────────────────────

func TestTransition_NuncaSaleDeAutorizado(t *testing.T) {
	all := []entity.FiscalState{
		entity.FiscalNotSent, entity.FiscalPendingSignature, entity.FiscalPendingAuthority,
		entity.FiscalReturned, entity.FiscalRejected, entity.FiscalError,
	}
	for _, to := range all {
		inv := &entity.Invoice{FiscalState: entity.FiscalAuthorized, AuthorizedDocument: "<xml/>"}
		err := domainsri.Transition(inv, to, "X", "msg", now)
		assert.ErrorIs(t, err, domainsri.ErrInvalidTransition, string(to))
		assert.Equal(t, entity.FiscalAuthorized, inv.FiscalState)
		assert.Equal(t, "<xml/>", inv.AuthorizedDocument)
	}
}

func TestTransition_AutorizadoSobreAutorizadoNoCambiaNada(t *testing.T) {
	inv := &entity.Invoice{FiscalState: entity.FiscalAuthorized, AuthorityMessage: "ok"}
	require.NoError(t, domainsri.Transition(inv, entity.FiscalAuthorized, "", "", now))
	assert.Equal(t, "ok", inv.AuthorityMessage)
	assert.True(t, inv.UpdatedAt.IsZero())
}

func TestTransition_AutoBucleEnPendienteSRI(t *testing.T) {
	inv := &entity.Invoice{FiscalState: entity.FiscalPendingAuthority}
	require.NoError(t, domainsri.Transition(inv, entity.FiscalPendingAuthority, entity.FiscalCodeNotFound, "no encontrada", now))
	assert.Equal(t, entity.FiscalCodeNotFound, inv.FiscalErrorCode)
}

func TestTransition_NoSaltaFirma(t *testing.T) {
	inv := &entity.Invoice{FiscalState: entity.FiscalNotSent}
	err := domainsri.Transition(inv, entity.FiscalAuthorized, "", "", now)
	assert.ErrorIs(t, err, domainsri.ErrInvalidTransition)
	assert.Equal(t, entity.FiscalNotSent, inv.FiscalState)
}

func TestAuthorize_LimpiaError(t *testing.T) {
	inv := &entity.Invoice{FiscalState: entity.FiscalPendingAuthority, FiscalErrorCode: entity.FiscalCodeNotFound, AuthorityMessage: "x"}
	at := now.Add(-time.Minute)
	require.NoError(t, domainsri.Authorize(inv, "<autorizacion/>", "123", &at, now))
	assert.Equal(t, entity.FiscalAuthorized, inv.FiscalState)
	assert.Empty(t, inv.FiscalErrorCode)
	assert.Empty(t, inv.AuthorityMessage)
	assert.Equal(t, at, *inv.AuthorizedAt)
	assert.Equal(t, "123", inv.AuthorizationNumber)
}

// ── Clasificación y enrutamiento ─────────────────────────────────────────────

func TestSettledResponseStatus(t *testing.T) {
	assert.Equal(t, domainsri.StatusOK, domainsri.SettledResponseStatus(entity.FiscalAuthorized))
	assert.Equal(t, domainsri.StatusSRIError, domainsri.SettledResponseStatus(entity.FiscalError))
	assert.Equal(t, domainsri.StatusSRIPending, domainsri.SettledResponseStatus(entity.FiscalPendingAuthority))
	assert.Equal(t, domainsri.StatusSRIPending, domainsri.SettledResponseStatus(entity.FiscalReturned))
}

func TestClassifySigningFailure(t *testing.T) {
	assert.Equal(t, entity.FiscalCodeSigningTimeout,
		domainsri.ClassifySigningFailure(pkgsri.NewSigningError(pkgsri.ErrSigningTimeout, "", nil)))
	assert.Equal(t, entity.FiscalCodeBadCredential,
		domainsri.ClassifySigningFailure(pkgsri.NewSigningError(pkgsri.ErrCertificateCorrupt, "", nil)))
	assert.Equal(t, entity.FiscalCodeSigningFailed,
		domainsri.ClassifySigningFailure(errors.New("otro")))
}

func TestCanRegenerateAccessKey(t *testing.T) {
	assert.True(t, domainsri.CanRegenerateAccessKey(&entity.Invoice{FiscalState: entity.FiscalNotSent}))
	assert.True(t, domainsri.CanRegenerateAccessKey(&entity.Invoice{FiscalState: entity.FiscalPendingSignature}))
	assert.False(t, domainsri.CanRegenerateAccessKey(&entity.Invoice{FiscalState: entity.FiscalPendingAuthority}))
	assert.False(t, domainsri.CanRegenerateAccessKey(&entity.Invoice{FiscalState: entity.FiscalAuthorized}))
}

func TestIsReconcilable(t *testing.T) {
	paid := func(st entity.FiscalState, code string) *entity.Invoice {
		return &entity.Invoice{FinancialState: entity.FinancialPaid, FiscalState: st, FiscalErrorCode: code}
	}
	assert.True(t, domainsri.IsReconcilable(paid(entity.FiscalPendingSignature, "")))
	assert.True(t, domainsri.IsReconcilable(paid(entity.FiscalPendingAuthority, entity.FiscalCodeNotFound)))
	assert.True(t, domainsri.IsReconcilable(paid(entity.FiscalReturned, "")))
	assert.True(t, domainsri.IsReconcilable(paid(entity.FiscalError, entity.FiscalCodeSigningTimeout)))
	assert.True(t, domainsri.IsReconcilable(paid(entity.FiscalError, entity.FiscalCodeConnection)))
	assert.False(t, domainsri.IsReconcilable(paid(entity.FiscalError, entity.FiscalCodeBadCredential)))
	assert.False(t, domainsri.IsReconcilable(paid(entity.FiscalAuthorized, "")))
	assert.False(t, domainsri.IsReconcilable(paid(entity.FiscalRejected, "")))

	pending := paid(entity.FiscalPendingSignature, "")
	pending.FinancialState = entity.FinancialPending
	assert.False(t, domainsri.IsReconcilable(pending))
}

func TestPastSubmission(t *testing.T) {
	assert.True(t, domainsri.PastSubmission(&entity.Invoice{FiscalState: entity.FiscalPendingAuthority}))
	assert.False(t, domainsri.PastSubmission(&entity.Invoice{FiscalState: entity.FiscalReturned}))
}
