package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FinancialState estado de cobro de la factura.
type FinancialState string

const (
	FinancialPending FinancialState = "PENDING"
	FinancialPaid    FinancialState = "PAID"
	FinancialVoid    FinancialState = "VOID"
)

// FiscalState estado de la factura en el circuito del SRI.
type FiscalState string

const (
	FiscalNotSent          FiscalState = "NOT_SENT"
	FiscalPendingSignature FiscalState = "PENDING_SIGNATURE"
	FiscalPendingAuthority FiscalState = "PENDING_AUTHORITY"
	FiscalAuthorized       FiscalState = "AUTHORIZED"
	FiscalReturned         FiscalState = "RETURNED"
	FiscalRejected         FiscalState = "REJECTED"
	FiscalError            FiscalState = "ERROR"
)

// Subcódigos persistidos junto al estado para triage del operador.
const (
	FiscalCodeSigningTimeout = "TIMEOUT_FIRMA"
	FiscalCodeBadCredential  = "CERTIFICADO_INVALIDO"
	FiscalCodeSigningFailed  = "ERROR_FIRMA"
	FiscalCodeConnection     = "ERROR_CONEXION"
	FiscalCodeNotFound       = "NO_ENCONTRADO"
	FiscalCodeInternal       = "ERROR_INTERNO"
)

// fiscalAliases nombres históricos de las dos generaciones del enum.
var fiscalAliases = map[string]FiscalState{
	"NO_ENVIADA":       FiscalNotSent,
	"PENDIENTE_FIRMA":  FiscalPendingSignature,
	"PENDIENTE_SRI":    FiscalPendingAuthority,
	"EN PROCESAMIENTO": FiscalPendingAuthority,
	"NO_ENCONTRADO":    FiscalPendingAuthority,
	"AUTORIZADO":       FiscalAuthorized,
	"AUTORIZADO_SRI":   FiscalAuthorized,
	"AUTORIZADA":       FiscalAuthorized,
	"DEVUELTA":         FiscalReturned,
	"DEVUELTA_SRI":     FiscalReturned,
	"RECHAZADA":        FiscalRejected,
	"RECHAZADO":        FiscalRejected,
	"NO AUTORIZADO":    FiscalRejected,
	"ERROR_FIRMA":      FiscalError,
	"TIMEOUT_FIRMA":    FiscalError,
	"EXCEPTION":        FiscalError,
}

// legacyCodes subcódigo implícito en algunos alias.
var legacyCodes = map[string]string{
	"TIMEOUT_FIRMA": FiscalCodeSigningTimeout,
	"ERROR_FIRMA":   FiscalCodeSigningFailed,
	"EXCEPTION":     FiscalCodeInternal,
	"NO_ENCONTRADO": FiscalCodeNotFound,
}

// ParseFiscalState normaliza un valor canónico o histórico. Devuelve además el
// subcódigo implícito en el alias (p. ej. TIMEOUT_FIRMA → ERROR + TIMEOUT_FIRMA).
func ParseFiscalState(raw string) (FiscalState, string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch FiscalState(s) {
	case FiscalNotSent, FiscalPendingSignature, FiscalPendingAuthority, FiscalAuthorized,
		FiscalReturned, FiscalRejected, FiscalError:
		return FiscalState(s), "", true
	}
	if st, ok := fiscalAliases[s]; ok {
		return st, legacyCodes[s], true
	}
	return "", "", false
}

// ParseFinancialState normaliza PENDIENTE/POR_VALIDAR/PAGADA/ANULADA.
func ParseFinancialState(raw string) (FinancialState, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(FinancialPending), "PENDIENTE", "POR_VALIDAR":
		return FinancialPending, true
	case string(FinancialPaid), "PAGADA":
		return FinancialPaid, true
	case string(FinancialVoid), "ANULADA":
		return FinancialVoid, true
	}
	return "", false
}

// Invoice cabecera de la factura de servicios.
type Invoice struct {
	ID                  string
	PartnerID           string
	IssueDate           time.Time
	Sequential          int64 // 0 hasta asignar
	Subtotal            decimal.Decimal
	Tax                 decimal.Decimal
	Total               decimal.Decimal
	Lines               []InvoiceLine
	FinancialState      FinancialState
	FiscalState         FiscalState
	AccessKey           string
	FiscalErrorCode     string
	AuthorityMessage    string
	AuthorizedDocument  string
	AuthorizationNumber string
	AuthorizedAt        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// InvoiceLine rubro facturado (agua, alcantarillado, multa, etc.).
type InvoiceLine struct {
	ID        string
	InvoiceID string
	Concept   string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// IsPaid indica si el cobro ya se registró.
func (i *Invoice) IsPaid() bool { return i.FinancialState == FinancialPaid }

// IsAuthorized indica si el SRI ya autorizó el comprobante.
func (i *Invoice) IsAuthorized() bool { return i.FiscalState == FiscalAuthorized }

// Touch actualiza UpdatedAt.
func (i *Invoice) Touch(now time.Time) { i.UpdatedAt = now }
