package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	"github.com/jhoicas/cobros-sri/internal/domain/repository"
)

var _ repository.PartnerRepository = (*PartnerRepo)(nil)

// PartnerRepo lectura de socios.
type PartnerRepo struct {
	q Querier
}

// NewPartnerRepository construye el adaptador.
func NewPartnerRepository(q Querier) *PartnerRepo {
	return &PartnerRepo{q: q}
}

// GetByID (nil, nil) si no existe.
func (r *PartnerRepo) GetByID(ctx context.Context, id string) (*entity.Partner, error) {
	const query = `
		SELECT id, first_names, last_names, identification_type, identification,
		       email, phone, address, created_at, updated_at
		FROM partners WHERE id = $1`
	var p entity.Partner
	var email, phone, address *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.FirstNames, &p.LastNames, &p.IdentificationType, &p.Identification,
		&email, &phone, &address, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get partner: %w", err)
	}
	p.Email = derefStr(email)
	p.Phone = derefStr(phone)
	p.Address = derefStr(address)
	return &p, nil
}
