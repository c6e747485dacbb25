package sri_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cobros-sri/pkg/sri"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vectores de referencia calculados a mano con la regla módulo 11 del SRI:
//
//	fecha 01022024 + tipo 01 + RUC 1790012345001 + ambiente 1 + serie 001001 +
//	secuencial 000000123 + código numérico 12345678 + tipo emisión 1
//	= 010220240117900123450011001001000000123123456781  → verificador 9
// ──────────────────────────────────────────────────────────────────────────────

const (
	testPayload         = "010220240117900123450011001001000000123123456781"
	testPayloadDigit    = 9
	testPayloadMaps11To = "010220240117900123450011001001000000123000000001" // 11 → 0
	testPayloadMaps10To = "010220240117900123450011001001000000123000000041" // 10 → 1
)

func testIssuer() sri.IssuerConfig {
	return sri.IssuerConfig{
		RUC:           "1790012345001",
		LegalName:     "JUNTA ADMINISTRADORA DE AGUA POTABLE EL ARBOLITO",
		MainAddress:   "Vía principal s/n",
		Establishment: "001",
		EmissionPoint: "001",
		Environment:   sri.EnvironmentTest,
		TaxRateCode:   sri.TaxRateCodeZero,
		PaymentForm:   sri.PaymentFormCash,
	}
}

func fixedDigits(v string) sri.AccessKeyOption {
	return sri.WithRandomDigits(func(int) (string, error) { return v, nil })
}

func TestComputeCheckDigit_VectorExacto(t *testing.T) {
	d, err := sri.ComputeCheckDigit(testPayload)
	require.NoError(t, err)
	assert.Equal(t, testPayloadDigit, d)
}

func TestComputeCheckDigit_MapeoOnceYDiez(t *testing.T) {
	d, err := sri.ComputeCheckDigit(testPayloadMaps11To)
	require.NoError(t, err)
	assert.Equal(t, 0, d, "11 debe mapear a 0")

	d, err = sri.ComputeCheckDigit(testPayloadMaps10To)
	require.NoError(t, err)
	assert.Equal(t, 1, d, "10 debe mapear a 1")

	d, err = sri.ComputeCheckDigit(strings.Repeat("0", 48))
	require.NoError(t, err)
	assert.Equal(t, 0, d, "suma cero produce 11, que mapea a 0")
}

func TestComputeCheckDigit_LongitudInvalida(t *testing.T) {
	for _, payload := range []string{"", "123", testPayload + "1", testPayload[:47]} {
		_, err := sri.ComputeCheckDigit(payload)
		assert.True(t, errors.Is(err, sri.ErrInvalidKeyLength), "payload %q", payload)
	}
	_, err := sri.ComputeCheckDigit(strings.Repeat("a", 48))
	assert.ErrorIs(t, err, sri.ErrInvalidKeyLength)
}

func TestComputeCheckDigit_Determinista(t *testing.T) {
	first, err := sri.ComputeCheckDigit(testPayload)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := sri.ComputeCheckDigit(testPayload)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// ── Generate ──────────────────────────────────────────────────────────────────

func TestGenerate_ArmaLos49Digitos(t *testing.T) {
	gen := sri.NewAccessKeyGenerator(testIssuer(), fixedDigits("12345678"))
	emission := time.Date(2024, time.February, 1, 10, 0, 0, 0, time.UTC)

	key, err := gen.Generate(emission, "123")
	require.NoError(t, err)

	assert.Len(t, key, sri.AccessKeyLength)
	assert.Equal(t, testPayload+"9", key)
	assert.Equal(t, "01022024", key[0:8], "fecha ddmmyyyy")
	assert.Equal(t, "01", key[8:10], "tipo de comprobante factura")
	assert.Equal(t, "1790012345001", key[10:23], "RUC emisor")
	assert.Equal(t, "1", key[23:24], "ambiente")
	assert.Equal(t, "001001", key[24:30], "serie")
	assert.Equal(t, "000000123", key[30:39], "secuencial con ceros")
	assert.Equal(t, "12345678", key[39:47], "código numérico")
	assert.Equal(t, "1", key[47:48], "tipo de emisión normal")
	assert.NoError(t, sri.ValidateAccessKey(key))
}

func TestGenerate_RucIncompletoFalla(t *testing.T) {
	issuer := testIssuer()
	issuer.RUC = "17900123"
	gen := sri.NewAccessKeyGenerator(issuer, fixedDigits("12345678"))

	_, err := gen.Generate(time.Now(), "1")
	assert.ErrorIs(t, err, sri.ErrInvalidKeyLength)
}

func TestGenerate_AleatorioSiempreValido(t *testing.T) {
	gen := sri.NewAccessKeyGenerator(testIssuer())
	for i := 0; i < 20; i++ {
		key, err := gen.Generate(time.Now(), "42")
		require.NoError(t, err)
		assert.True(t, sri.IsAccessKey(key), "clave %s", key)
	}
}

func TestValidateAccessKey_VerificadorIncorrecto(t *testing.T) {
	assert.ErrorIs(t, sri.ValidateAccessKey(testPayload+"3"), sri.ErrInvalidAccessKey)
	assert.ErrorIs(t, sri.ValidateAccessKey("PENDIENTE"), sri.ErrInvalidAccessKey)
	assert.False(t, sri.IsAccessKey(""))
}

func TestPadSequential(t *testing.T) {
	assert.Equal(t, "000000001", sri.PadSequential("1"))
	assert.Equal(t, "123456789", sri.PadSequential("123456789"))
}

func TestIssuerConfig_Validate(t *testing.T) {
	require.NoError(t, testIssuer().Validate())

	bad := testIssuer()
	bad.Environment = "3"
	assert.Error(t, bad.Validate())

	bad = testIssuer()
	bad.Establishment = "1"
	assert.Error(t, bad.Validate())
}
