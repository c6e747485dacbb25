package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$0.00", formatMoney(decimal.Zero))
	assert.Equal(t, "$120.00", formatMoney(decimal.NewFromInt(120)))
	assert.Equal(t, "$1,234.50", formatMoney(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "$1,000,000.01", formatMoney(decimal.RequireFromString("1000000.01")))
	assert.Equal(t, "-$15.00", formatMoney(decimal.NewFromInt(-15)))
}

func TestRender_GeneraPDF(t *testing.T) {
	g := NewRideGenerator(pkgsri.IssuerConfig{
		RUC: "1790012345001", LegalName: "JUNTA DE AGUA PRUEBAS", MainAddress: "Calle 1",
		Establishment: "001", EmissionPoint: "001", Environment: pkgsri.EnvironmentTest,
		TaxRate: decimal.NewFromInt(15),
	})
	now := time.Now()
	inv := &entity.Invoice{
		ID: "inv-1", Sequential: 123, AccessKey: "0102202401179001234500110010010000001231234567819",
		AuthorizedAt: &now, Subtotal: decimal.NewFromInt(100), Tax: decimal.NewFromInt(15), Total: decimal.NewFromInt(115),
		Lines: []entity.InvoiceLine{{Concept: "Consumo de agua", Quantity: decimal.NewFromInt(1),
			UnitPrice: decimal.NewFromInt(100), Subtotal: decimal.NewFromInt(100)}},
	}
	partner := &entity.Partner{FirstNames: "Ana", LastNames: "Quispe", Identification: "1712345678"}

	out, err := g.Render(inv, partner)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRender_SinClave(t *testing.T) {
	g := NewRideGenerator(pkgsri.IssuerConfig{})
	_, err := g.Render(&entity.Invoice{ID: "x"}, &entity.Partner{})
	assert.Error(t, err)
}
