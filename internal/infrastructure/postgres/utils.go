package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/cobros-sri/internal/domain"
)

const (
	codeUniqueViolation = "23505"
	// Índice único parcial sobre referencias de transferencia (0001_init).
	constraintTransferRef = "uq_payment_entries_transfer_ref"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation
	}
	return strings.Contains(err.Error(), codeUniqueViolation)
}

// violatedConstraint nombre del constraint violado, vacío si no viene en el error.
func violatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// asConflict traduce una violación de unicidad a domain.ErrConflict; el resto pasa igual.
func asConflict(err error, what string) error {
	if !isUniqueViolation(err) {
		return err
	}
	return fmt.Errorf("%w: %s", domain.ErrConflict, what)
}
