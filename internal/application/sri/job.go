package sri

import "time"

// JobType tipo de trabajo asíncrono.
type JobType string

const (
	JobSubmitInvoice     JobType = "submit_invoice"
	JobPollAuthorization JobType = "poll_authorization"
	JobReconcilePending  JobType = "reconcile_pending"
)

// Valid indica si el tipo es conocido.
func (t JobType) Valid() bool {
	switch t {
	case JobSubmitInvoice, JobPollAuthorization, JobReconcilePending:
		return true
	}
	return false
}

// Job unidad de trabajo encolada. Attempt cuenta reintentos consumidos (0 = primer intento).
type Job struct {
	ID         string    `json:"id"`
	Type       JobType   `json:"type"`
	InvoiceID  string    `json:"invoice_id,omitempty"`
	Attempt    int       `json:"attempt"`
	RunAt      time.Time `json:"run_at"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// RetryPolicy presupuesto de reintentos por tipo de trabajo.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// Policies configuración de tiempos del circuito.
type Policies struct {
	Submit         RetryPolicy
	Poll           RetryPolicy
	Reconcile      RetryPolicy
	PollAfterSend  time.Duration // primera consulta tras RECIBIDA
	PollInProcess  time.Duration // consulta tras "en procesamiento"
	LockContention time.Duration // espera cuando otra ejecución tiene el candado
	ReconcileLimit int
}

// DefaultPolicies tiempos de producción.
func DefaultPolicies() Policies {
	return Policies{
		Submit:         RetryPolicy{MaxRetries: 3, Delay: 15 * time.Second},
		Poll:           RetryPolicy{MaxRetries: 5, Delay: 60 * time.Second},
		Reconcile:      RetryPolicy{MaxRetries: 1, Delay: time.Minute},
		PollAfterSend:  5 * time.Second,
		PollInProcess:  30 * time.Second,
		LockContention: 30 * time.Second,
		ReconcileLimit: 500,
	}
}

func (p Policies) retryFor(t JobType) RetryPolicy {
	switch t {
	case JobSubmitInvoice:
		return p.Submit
	case JobPollAuthorization:
		return p.Poll
	default:
		return p.Reconcile
	}
}
