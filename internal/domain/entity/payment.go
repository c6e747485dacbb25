package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod medio de pago de un detalle.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentCheck    PaymentMethod = "CHECK"
)

// ParsePaymentMethod acepta el nombre canónico o el histórico en español.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(PaymentCash), "EFECTIVO":
		return PaymentCash, true
	case string(PaymentTransfer), "TRANSFERENCIA":
		return PaymentTransfer, true
	case string(PaymentCheck), "CHEQUE":
		return PaymentCheck, true
	}
	return "", false
}

// PaymentChannel origen del pago.
type PaymentChannel string

const (
	// ChannelCounter pago registrado en ventanilla: se valida en el acto.
	ChannelCounter PaymentChannel = "COUNTER"
	// ChannelOnline transferencia subida por el socio: requiere validación de Tesorería.
	ChannelOnline PaymentChannel = "ONLINE"
)

// Payment cabecera de un pago aplicado a una factura.
type Payment struct {
	ID          string
	InvoiceID   string
	PartnerID   string
	Total       decimal.Decimal
	Entries     []PaymentEntry
	Channel     PaymentChannel
	Validated   bool
	ValidatedBy string
	ValidatedAt *time.Time
	CreatedAt   time.Time
}

// PaymentEntry detalle por medio de pago.
type PaymentEntry struct {
	ID         string
	PaymentID  string
	Method     PaymentMethod
	Amount     decimal.Decimal
	Reference  string
	SourceBank string
}

// HasTransfer indica si algún detalle es transferencia.
func (p *Payment) HasTransfer() bool {
	for _, e := range p.Entries {
		if e.Method == PaymentTransfer {
			return true
		}
	}
	return false
}

// TransferAmount suma de los detalles por transferencia.
func (p *Payment) TransferAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range p.Entries {
		if e.Method == PaymentTransfer {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// SumEntries total de los detalles.
func SumEntries(entries []PaymentEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	return sum
}
