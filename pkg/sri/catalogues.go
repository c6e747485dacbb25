// Package sri contiene catálogos, tipos y puertos del esquema de comprobantes
// electrónicos del Servicio de Rentas Internas (Ecuador), versión offline.
package sri

// Tabla 3: tipos de comprobante.
const (
	DocTypeInvoice = "01" // Factura
)

// Tabla 2: tipo de emisión.
const (
	EmissionTypeNormal = "1"
)

// Tabla 4: ambientes.
const (
	EnvironmentTest       = "1" // Pruebas
	EnvironmentProduction = "2" // Producción
)

// Tabla 6: tipo de identificación del comprador.
const (
	IdentificationRUC      = "04"
	IdentificationCedula   = "05"
	IdentificationPassport = "06"
	IdentificationFinal    = "07" // Consumidor final
)

// Tabla 24: formas de pago.
const (
	PaymentFormCash     = "01" // Sin utilización del sistema financiero
	PaymentFormTransfer = "20" // Otros con utilización del sistema financiero
)

// Tabla 16/17: impuestos.
const (
	TaxCodeIVA      = "2"
	TaxRateCodeZero = "0"
	CurrencyDollar  = "DOLAR"
	DocumentVersion = "1.1.0"
	DocumentRootID  = "comprobante"
)

// Marcadores con los que el SRI indica que el comprobante sigue en cola.
const (
	MarkerInProcessID   = "ID:70"
	MarkerInProcessText = "EN PROCESAMIENTO"
)

// Identificador 43: la clave ya fue recibida en un envío anterior.
const MarkerKeyRegistered = "ID:43"
