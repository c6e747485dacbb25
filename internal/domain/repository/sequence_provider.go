package repository

import "context"

// SequenceProvider entrega el siguiente secuencial por tipo de comprobante.
// Debe ser estrictamente creciente y único entre llamadores concurrentes.
type SequenceProvider interface {
	Next(ctx context.Context, docType string) (int64, error)
}
