package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	appsri "github.com/jhoicas/cobros-sri/internal/application/sri"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/metrics"
)

func TestMetrics_Contadores(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.JobFinished(appsri.JobSubmitInvoice, appsri.OutcomeOk, 2*time.Second)
	m.JobFinished(appsri.JobSubmitInvoice, appsri.OutcomeOk, time.Second)
	m.JobFinished(appsri.JobPollAuthorization, appsri.OutcomeRetry, time.Second)
	m.SubmissionClassified("RECIBIDA")
	m.AuthorizationClassified("AUTORIZADO")
	m.Reconciled(3)
	m.Reconciled(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("submit_invoice", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("poll_authorization", "retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("RECIBIDA")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Authorizations.WithLabelValues("AUTORIZADO")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ReconcileQueued))
}

func TestMetrics_RegistroDuplicadoFalla(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	assert.Panics(t, func() { metrics.New(reg) })
}
