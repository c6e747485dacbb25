package repository

import (
	"context"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
)

// InvoiceRepository define el puerto de persistencia para Invoice y sus rubros.
// GetByID y GetForUpdate devuelven (nil, nil) cuando no existe.
type InvoiceRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// GetForUpdate bloquea la fila hasta el fin de la transacción (sólo con tx).
	GetForUpdate(ctx context.Context, id string) (*entity.Invoice, error)
	// Save persiste estados, clave de acceso, secuencial y campos de autorización.
	Save(ctx context.Context, invoice *entity.Invoice) error
	// ListByFiscalStates facturas pagadas en los estados dados, más antiguas primero.
	ListByFiscalStates(ctx context.Context, states []entity.FiscalState, limit int) ([]*entity.Invoice, error)
}
