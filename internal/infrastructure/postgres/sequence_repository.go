package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/cobros-sri/internal/domain/repository"
)

var _ repository.SequenceProvider = (*SequenceRepo)(nil)

// SequenceRepo secuenciales por tipo de comprobante. El upsert con RETURNING
// es atómico: dos llamadas concurrentes nunca reciben el mismo valor.
type SequenceRepo struct {
	q Querier
}

// NewSequenceRepository construye el adaptador.
func NewSequenceRepository(q Querier) *SequenceRepo {
	return &SequenceRepo{q: q}
}

// Next siguiente secuencial para docType.
func (r *SequenceRepo) Next(ctx context.Context, docType string) (int64, error) {
	const query = `
		INSERT INTO document_sequences (doc_type, last_value) VALUES ($1, 1)
		ON CONFLICT (doc_type) DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value`
	var next int64
	if err := r.q.QueryRow(ctx, query, docType).Scan(&next); err != nil {
		return 0, fmt.Errorf("next sequential %s: %w", docType, err)
	}
	return next, nil
}
