// Package metrics expone en Prometheus los resultados del circuito SRI.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	appsri "github.com/jhoicas/cobros-sri/internal/application/sri"
)

const metricPrefix = "cobros_sri_"

// Metrics implementa sri.Metrics.
type Metrics struct {
	JobsTotal       *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	Submissions     *prometheus.CounterVec
	Authorizations  *prometheus.CounterVec
	ReconcileQueued prometheus.Counter
}

var _ appsri.Metrics = (*Metrics)(nil)

// New construye y registra las métricas en reg (prometheus.DefaultRegisterer en producción).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "jobs_total",
				Help: "Trabajos procesados por tipo y resultado",
			},
			[]string{"type", "outcome"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "job_duration_seconds",
				Help:    "Duración de los trabajos en segundos",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 60, 120},
			},
			[]string{"type"},
		),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "submissions_total",
				Help: "Respuestas de recepción por estado",
			},
			[]string{"state"},
		),
		Authorizations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "authorizations_total",
				Help: "Respuestas de autorización por estado",
			},
			[]string{"state"},
		),
		ReconcileQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "reconcile_enqueued_total",
			Help: "Facturas reencoladas por la reconciliación",
		}),
	}
	reg.MustRegister(m.JobsTotal, m.JobDuration, m.Submissions, m.Authorizations, m.ReconcileQueued)
	return m
}

func (m *Metrics) JobFinished(jobType appsri.JobType, outcome appsri.Outcome, elapsed time.Duration) {
	m.JobsTotal.WithLabelValues(string(jobType), string(outcome)).Inc()
	m.JobDuration.WithLabelValues(string(jobType)).Observe(elapsed.Seconds())
}

func (m *Metrics) SubmissionClassified(state string) {
	m.Submissions.WithLabelValues(state).Inc()
}

func (m *Metrics) AuthorizationClassified(state string) {
	m.Authorizations.WithLabelValues(state).Inc()
}

func (m *Metrics) Reconciled(enqueued int) {
	m.ReconcileQueued.Add(float64(enqueued))
}
