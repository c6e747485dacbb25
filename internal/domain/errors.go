package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio.
var (
	ErrNotFound      = errors.New("recurso no encontrado")
	ErrInvalidInput  = errors.New("entrada inválida")
	ErrUnauthorized  = errors.New("no autorizado")
	ErrForbidden     = errors.New("acceso denegado")
	ErrConflict      = errors.New("conflicto con el estado actual")
	ErrNotAuthorized = errors.New("la factura aún no está autorizada por el SRI")

	// ErrBusinessRule agrupa las violaciones de reglas de negocio (sin reintento, sin mutación).
	ErrBusinessRule = errors.New("regla de negocio violada")
	ErrInvoiceVoid  = fmt.Errorf("%w: la factura está anulada", ErrBusinessRule)
)

// InsufficientFundsError el total validado no cubre la factura.
type InsufficientFundsError struct {
	Total          decimal.Decimal
	PriorValidated decimal.Decimal
	Received       decimal.Decimal
	Shortfall      decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("monto insuficiente: faltan $%s (previo validado: $%s + recibido caja: $%s)",
		e.Shortfall.StringFixed(2), e.PriorValidated.StringFixed(2), e.Received.StringFixed(2))
}

// Is hace que errors.Is(err, ErrBusinessRule) sea verdadero.
func (e *InsufficientFundsError) Is(target error) bool { return target == ErrBusinessRule }

// PendingVerificationError existen transferencias sin validar por Tesorería.
type PendingVerificationError struct {
	InvoiceID string
}

func (e *PendingVerificationError) Error() string {
	return fmt.Sprintf("la factura %s tiene transferencias subidas pero no verificadas por Tesorería", e.InvoiceID)
}

func (e *PendingVerificationError) Is(target error) bool { return target == ErrBusinessRule }
