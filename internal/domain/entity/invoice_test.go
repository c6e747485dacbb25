package entity_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
)

func TestParseFiscalState_AliasesHistoricos(t *testing.T) {
	cases := []struct {
		raw  string
		want entity.FiscalState
		code string
	}{
		{"AUTORIZADO", entity.FiscalAuthorized, ""},
		{"AUTORIZADO_SRI", entity.FiscalAuthorized, ""},
		{"DEVUELTA", entity.FiscalReturned, ""},
		{"DEVUELTA_SRI", entity.FiscalReturned, ""},
		{"pendiente_firma", entity.FiscalPendingSignature, ""},
		{"EN PROCESAMIENTO", entity.FiscalPendingAuthority, ""},
		{"NO_ENCONTRADO", entity.FiscalPendingAuthority, entity.FiscalCodeNotFound},
		{"TIMEOUT_FIRMA", entity.FiscalError, entity.FiscalCodeSigningTimeout},
		{"ERROR_FIRMA", entity.FiscalError, entity.FiscalCodeSigningFailed},
		{" AUTHORIZED ", entity.FiscalAuthorized, ""},
	}
	for _, c := range cases {
		got, code, ok := entity.ParseFiscalState(c.raw)
		assert.True(t, ok, c.raw)
		assert.Equal(t, c.want, got, c.raw)
		assert.Equal(t, c.code, code, c.raw)
	}

	_, _, ok := entity.ParseFiscalState("CUALQUIERA")
	assert.False(t, ok)
}

func TestParseFinancialState(t *testing.T) {
	st, ok := entity.ParseFinancialState("PAGADA")
	assert.True(t, ok)
	assert.Equal(t, entity.FinancialPaid, st)

	st, ok = entity.ParseFinancialState("por_validar")
	assert.True(t, ok)
	assert.Equal(t, entity.FinancialPending, st)

	_, ok = entity.ParseFinancialState("x")
	assert.False(t, ok)
}

func TestPayment_TransferAmount(t *testing.T) {
	p := &entity.Payment{Entries: []entity.PaymentEntry{
		{Method: entity.PaymentCash, Amount: decimal.NewFromInt(20)},
		{Method: entity.PaymentTransfer, Amount: decimal.RequireFromString("30.50")},
	}}
	assert.True(t, p.HasTransfer())
	assert.Equal(t, "30.50", p.TransferAmount().StringFixed(2))
	assert.Equal(t, "50.50", entity.SumEntries(p.Entries).StringFixed(2))
}

func TestParsePaymentMethod(t *testing.T) {
	m, ok := entity.ParsePaymentMethod("transferencia")
	assert.True(t, ok)
	assert.Equal(t, entity.PaymentTransfer, m)
	_, ok = entity.ParsePaymentMethod("BITCOIN")
	assert.False(t, ok)
}

func TestPartner_Email(t *testing.T) {
	assert.True(t, (&entity.Partner{Email: "socio@junta.ec"}).HasValidEmail())
	assert.False(t, (&entity.Partner{Email: "sin-arroba"}).HasValidEmail())
	assert.False(t, (&entity.Partner{Email: "x@"}).HasValidEmail())
	assert.Equal(t, "Ana Pérez", (&entity.Partner{FirstNames: "Ana", LastNames: "Pérez"}).FullName())
}
