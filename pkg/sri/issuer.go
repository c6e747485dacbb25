package sri

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IssuerConfig datos inmutables del emisor. Se construye una vez desde la
// configuración y se pasa explícitamente a generador, builder y firmador.
type IssuerConfig struct {
	RUC                  string
	LegalName            string // razonSocial
	TradeName            string // nombreComercial
	MainAddress          string // dirMatriz
	EstablishmentAddress string // dirEstablecimiento (vacío = dirMatriz)
	Establishment        string // estab, 3 dígitos
	EmissionPoint        string // ptoEmi, 3 dígitos
	Environment          string // 1 pruebas, 2 producción
	KeepsAccounting      bool   // obligadoContabilidad
	TaxRateCode          string // codigoPorcentaje IVA
	TaxRate              decimal.Decimal
	PaymentForm          string // formaPago del pago agregado
}

// Series devuelve estab + ptoEmi (6 dígitos).
func (c IssuerConfig) Series() string {
	return c.Establishment + c.EmissionPoint
}

// EstablishmentAddr dirección del establecimiento con fallback a la matriz.
func (c IssuerConfig) EstablishmentAddr() string {
	if c.EstablishmentAddress != "" {
		return c.EstablishmentAddress
	}
	return c.MainAddress
}

// AccountingFlag valor SI/NO para obligadoContabilidad.
func (c IssuerConfig) AccountingFlag() string {
	if c.KeepsAccounting {
		return "SI"
	}
	return "NO"
}

// Validate revisa que los campos de ancho fijo de la clave de acceso sean correctos.
func (c IssuerConfig) Validate() error {
	if len(c.RUC) != 13 || !isDigits(c.RUC) {
		return fmt.Errorf("sri: RUC del emisor debe tener 13 dígitos (%q)", c.RUC)
	}
	if len(c.Establishment) != 3 || !isDigits(c.Establishment) {
		return fmt.Errorf("sri: establecimiento debe tener 3 dígitos (%q)", c.Establishment)
	}
	if len(c.EmissionPoint) != 3 || !isDigits(c.EmissionPoint) {
		return fmt.Errorf("sri: punto de emisión debe tener 3 dígitos (%q)", c.EmissionPoint)
	}
	if c.Environment != EnvironmentTest && c.Environment != EnvironmentProduction {
		return fmt.Errorf("sri: ambiente desconocido %q (usar 1 o 2)", c.Environment)
	}
	return nil
}
