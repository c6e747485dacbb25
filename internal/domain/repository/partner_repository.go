package repository

import (
	"context"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
)

// PartnerRepository resuelve el socio (comprador) de una factura.
type PartnerRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Partner, error)
}
