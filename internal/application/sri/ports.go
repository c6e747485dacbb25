// Package sri orquesta el circuito asíncrono de la factura electrónica:
// envío (fase 1), consulta de autorización (fase 2) y reconciliación.
package sri

import (
	"context"
	"time"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
)

// LockTTL vigencia del candado por factura.
const LockTTL = 300 * time.Second

// ReconcileLockKey candado global del barrido de reconciliación.
const ReconcileLockKey = "lock:sri:reconcile"

// LockKey clave del candado de una factura.
func LockKey(invoiceID string) string { return "lock:sri:" + invoiceID }

// Lock candado distribuido de exclusión mutua. Acquire es atómico
// "crear si no existe"; Release debe ser seguro de llamar aunque haya expirado.
type Lock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// JobQueue cola durable donde se programan los trabajos.
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) error
}

// DocumentBuilder arma el XML del comprobante sin firmar.
type DocumentBuilder interface {
	Build(inv *entity.Invoice, partner *entity.Partner) ([]byte, error)
}

// AuthorizedNotice datos para avisar al socio de la autorización.
type AuthorizedNotice struct {
	Invoice *entity.Invoice
	Partner *entity.Partner
	RIDE    []byte // PDF opcional
}

// Notifier envía el comprobante autorizado al socio.
type Notifier interface {
	NotifyAuthorized(ctx context.Context, notice AuthorizedNotice) error
}

// Archiver guarda el XML autorizado y devuelve su ubicación.
type Archiver interface {
	Archive(ctx context.Context, inv *entity.Invoice) (string, error)
}

// RideRenderer genera la representación impresa (RIDE) en PDF.
type RideRenderer interface {
	Render(inv *entity.Invoice, partner *entity.Partner) ([]byte, error)
}

// Metrics observador de resultados del circuito.
type Metrics interface {
	JobFinished(jobType JobType, outcome Outcome, elapsed time.Duration)
	SubmissionClassified(state string)
	AuthorizationClassified(state string)
	Reconciled(enqueued int)
}

type nopMetrics struct{}

func (nopMetrics) JobFinished(JobType, Outcome, time.Duration) {}
func (nopMetrics) SubmissionClassified(string) {}
func (nopMetrics) AuthorizationClassified(string) {}
func (nopMetrics) Reconciled(int) {}
