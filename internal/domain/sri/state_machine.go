// Package sri contiene las reglas del ciclo de vida de la factura: estado
// financiero (cobro) por estado fiscal (circuito SRI).
package sri

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cobros-sri/internal/domain"
	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

// Tolerance diferencia máxima aceptada entre lo pagado y el total.
var Tolerance = decimal.New(1, -2)

// ErrInvalidTransition el cambio de estado fiscal no está permitido.
var ErrInvalidTransition = errors.New("transición de estado fiscal no permitida")

// ResponseStatus estado devuelto al cajero tras liquidar.
type ResponseStatus string

const (
	StatusOK         ResponseStatus = "OK"
	StatusSRIPending ResponseStatus = "SRI_PENDING"
	StatusSRIError   ResponseStatus = "SRI_ERROR"
)

// transitions destinos válidos por estado de origen. AUTHORIZED no tiene salida.
var transitions = map[entity.FiscalState][]entity.FiscalState{
	entity.FiscalNotSent: {entity.FiscalPendingSignature},
	entity.FiscalPendingSignature: {
		entity.FiscalPendingSignature, entity.FiscalPendingAuthority,
		entity.FiscalReturned, entity.FiscalError,
	},
	entity.FiscalPendingAuthority: {
		entity.FiscalPendingAuthority, entity.FiscalAuthorized,
		entity.FiscalReturned, entity.FiscalRejected, entity.FiscalError,
	},
	entity.FiscalError: {
		entity.FiscalPendingSignature, entity.FiscalPendingAuthority,
		entity.FiscalReturned, entity.FiscalError,
	},
	entity.FiscalReturned:   {entity.FiscalPendingSignature, entity.FiscalPendingAuthority},
	entity.FiscalRejected:   {entity.FiscalPendingSignature, entity.FiscalPendingAuthority},
	entity.FiscalAuthorized: {entity.FiscalAuthorized},
}

// CanTransition indica si from → to es un cambio permitido.
func CanTransition(from, to entity.FiscalState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition aplica el cambio de estado fiscal con su subcódigo y mensaje.
// AUTHORIZED → AUTHORIZED no modifica nada.
func Transition(inv *entity.Invoice, to entity.FiscalState, code, message string, now time.Time) error {
	from := inv.FiscalState
	if from == "" {
		from = entity.FiscalNotSent
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	if from == entity.FiscalAuthorized {
		return nil
	}
	inv.FiscalState = to
	inv.FiscalErrorCode = code
	inv.AuthorityMessage = message
	inv.Touch(now)
	return nil
}

// Authorize registra la autorización: documento, número y fecha; limpia el error.
func Authorize(inv *entity.Invoice, document, number string, at *time.Time, now time.Time) error {
	if err := Transition(inv, entity.FiscalAuthorized, "", "", now); err != nil {
		return err
	}
	inv.AuthorizedDocument = document
	inv.AuthorizationNumber = number
	if at == nil {
		at = &now
	}
	inv.AuthorizedAt = at
	return nil
}

// CheckPayable rechaza facturas anuladas.
func CheckPayable(inv *entity.Invoice) error {
	if inv.FinancialState == entity.FinancialVoid {
		return domain.ErrInvoiceVoid
	}
	return nil
}

// CheckSettlement valida que previo validado + recibido cubra el total.
func CheckSettlement(total, priorValidated, received decimal.Decimal) error {
	paid := priorValidated.Add(received)
	shortfall := total.Sub(paid)
	if shortfall.GreaterThan(Tolerance) {
		return &domain.InsufficientFundsError{
			Total:          total,
			PriorValidated: priorValidated,
			Received:       received,
			Shortfall:      shortfall.Round(2),
		}
	}
	return nil
}

// MarkPaid PENDING → PAID y arranca el circuito fiscal (NOT_SENT → PENDING_SIGNATURE).
func MarkPaid(inv *entity.Invoice, now time.Time) error {
	if err := CheckPayable(inv); err != nil {
		return err
	}
	inv.FinancialState = entity.FinancialPaid
	if inv.FiscalState == "" || inv.FiscalState == entity.FiscalNotSent {
		return Transition(inv, entity.FiscalPendingSignature, "", "", now)
	}
	inv.Touch(now)
	return nil
}

// SettledResponseStatus estado a informar para una factura ya pagada.
func SettledResponseStatus(fiscal entity.FiscalState) ResponseStatus {
	switch fiscal {
	case entity.FiscalAuthorized:
		return StatusOK
	case entity.FiscalError:
		return StatusSRIError
	default:
		return StatusSRIPending
	}
}

// ClassifySigningFailure subcódigo para persistir según el tipo de falla de firma.
func ClassifySigningFailure(err error) string {
	switch {
	case errors.Is(err, pkgsri.ErrSigningTimeout):
		return entity.FiscalCodeSigningTimeout
	case errors.Is(err, pkgsri.ErrCertificateCorrupt):
		return entity.FiscalCodeBadCredential
	default:
		return entity.FiscalCodeSigningFailed
	}
}

// CanRegenerateAccessKey la clave sólo se puede rehacer antes del primer envío.
func CanRegenerateAccessKey(inv *entity.Invoice) bool {
	switch inv.FiscalState {
	case "", entity.FiscalNotSent, entity.FiscalPendingSignature:
		return true
	}
	return false
}

// NeedsAccessKey ausente o con un valor que no es una clave válida (placeholder).
func NeedsAccessKey(inv *entity.Invoice) bool {
	return !pkgsri.IsAccessKey(inv.AccessKey)
}

// PastSubmission el SRI ya recibió el comprobante: sólo queda consultar.
func PastSubmission(inv *entity.Invoice) bool {
	return inv.FiscalState == entity.FiscalPendingAuthority
}

// NeedsSubmission la factura pagada debe (re)entrar a la fase de envío.
func NeedsSubmission(inv *entity.Invoice) bool {
	if !inv.IsPaid() {
		return false
	}
	switch inv.FiscalState {
	case entity.FiscalNotSent, entity.FiscalPendingSignature, entity.FiscalReturned, entity.FiscalError:
		return true
	}
	return false
}

// ReconcileStates estados que barre la reconciliación.
func ReconcileStates() []entity.FiscalState {
	return []entity.FiscalState{
		entity.FiscalPendingSignature,
		entity.FiscalPendingAuthority,
		entity.FiscalError,
		entity.FiscalReturned,
	}
}

// IsReconcilable filtra los ERROR que no son transitorios (p. ej. certificado inválido).
func IsReconcilable(inv *entity.Invoice) bool {
	if !inv.IsPaid() {
		return false
	}
	switch inv.FiscalState {
	case entity.FiscalPendingSignature, entity.FiscalPendingAuthority, entity.FiscalReturned:
		return true
	case entity.FiscalError:
		return inv.FiscalErrorCode == entity.FiscalCodeSigningTimeout ||
			inv.FiscalErrorCode == entity.FiscalCodeConnection
	}
	return false
}
