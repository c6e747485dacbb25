package sri

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/cobros-sri/internal/application/dto"
	"github.com/jhoicas/cobros-sri/internal/domain/repository"
	domainsri "github.com/jhoicas/cobros-sri/internal/domain/sri"
)

// ErrReconcileInProgress otra reconciliación tiene el candado global.
var ErrReconcileInProgress = errors.New("reconciliación en curso")

// Phases las dos fases del circuito; Pipeline la implementa.
type Phases interface {
	SubmitInvoice(ctx context.Context, invoiceID string) Result
	PollAuthorization(ctx context.Context, invoiceID string) Result
}

// Orchestrator despacha trabajos a las fases, aplica el presupuesto de
// reintentos por tipo y programa los trabajos siguientes.
type Orchestrator struct {
	phases   Phases
	queue    JobQueue
	invoices repository.InvoiceRepository
	lock     Lock
	policies Policies
	metrics  Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewOrchestrator construye el orquestador. metrics puede ser nil.
func NewOrchestrator(
	phases Phases,
	queue JobQueue,
	invoices repository.InvoiceRepository,
	lock Lock,
	policies Policies,
	metrics Metrics,
	logger zerolog.Logger,
) *Orchestrator {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Orchestrator{
		phases:   phases,
		queue:    queue,
		invoices: invoices,
		lock:     lock,
		policies: policies,
		metrics:  metrics,
		logger:   logger.With().Str("component", "sri_orchestrator").Logger(),
		now:      time.Now,
	}
}

// Enqueue programa un trabajo nuevo tras delay.
func (o *Orchestrator) Enqueue(ctx context.Context, jobType JobType, invoiceID string, delay time.Duration) (Job, error) {
	if !jobType.Valid() {
		return Job{}, fmt.Errorf("tipo de trabajo desconocido %q", jobType)
	}
	now := o.now()
	job := Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		InvoiceID:  invoiceID,
		RunAt:      now.Add(delay),
		EnqueuedAt: now,
	}
	if err := o.queue.Enqueue(ctx, job); err != nil {
		return Job{}, fmt.Errorf("encolar %s: %w", jobType, err)
	}
	return job, nil
}

// ScheduleSubmission encola submit_invoice para ejecución inmediata.
func (o *Orchestrator) ScheduleSubmission(ctx context.Context, invoiceID string) error {
	_, err := o.Enqueue(ctx, JobSubmitInvoice, invoiceID, 0)
	return err
}

// Handle ejecuta un trabajo y reprograma según el Result. Sólo devuelve error
// cuando no se pudo encolar la continuación.
func (o *Orchestrator) Handle(ctx context.Context, job Job) error {
	log := o.logger.With().
		Str("job", string(job.Type)).
		Str("job_id", job.ID).
		Str("invoice_id", job.InvoiceID).
		Int("attempt", job.Attempt).
		Logger()

	start := o.now()
	var res Result
	switch job.Type {
	case JobSubmitInvoice:
		res = o.phases.SubmitInvoice(ctx, job.InvoiceID)
	case JobPollAuthorization:
		res = o.phases.PollAuthorization(ctx, job.InvoiceID)
	case JobReconcilePending:
		res = o.reconcileJob(ctx)
	default:
		res = Fatal(fmt.Errorf("tipo de trabajo desconocido %q", job.Type))
	}
	o.metrics.JobFinished(job.Type, res.Outcome, o.now().Sub(start))

	switch res.Outcome {
	case OutcomeOk:
		for _, next := range res.Next {
			if _, err := o.Enqueue(ctx, next.Type, job.InvoiceID, next.Delay); err != nil {
				return err
			}
		}
		log.Debug().Int("siguientes", len(res.Next)).Msg("trabajo terminado")
		return nil

	case OutcomeDefer:
		log.Debug().Dur("delay", res.Delay).Msg("trabajo diferido")
		return o.requeue(ctx, job, job.Attempt, res.Delay)

	case OutcomeRetry:
		policy := o.policies.retryFor(job.Type)
		if job.Attempt >= policy.MaxRetries {
			log.Error().Err(res.Err).Int("max_retries", policy.MaxRetries).
				Msg("reintentos agotados; la reconciliación lo retomará")
			return nil
		}
		log.Warn().Err(res.Err).Dur("delay", res.Delay).Msg("reintento programado")
		return o.requeue(ctx, job, job.Attempt+1, res.Delay)

	default:
		log.Error().Err(res.Err).Msg("trabajo fallido sin reintento")
		return nil
	}
}

func (o *Orchestrator) requeue(ctx context.Context, job Job, attempt int, delay time.Duration) error {
	now := o.now()
	job.Attempt = attempt
	job.RunAt = now.Add(delay)
	job.EnqueuedAt = now
	if err := o.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("reencolar %s: %w", job.Type, err)
	}
	return nil
}

func (o *Orchestrator) reconcileJob(ctx context.Context) Result {
	_, err := o.Reconcile(ctx)
	if errors.Is(err, ErrReconcileInProgress) {
		return Ok()
	}
	if err != nil {
		return Retry(o.policies.Reconcile.Delay, err)
	}
	return Ok()
}

// Reconcile barre las facturas pagadas que quedaron a medio circuito y
// reencola la fase que corresponde: consulta si el SRI ya las recibió,
// envío en cualquier otro caso.
func (o *Orchestrator) Reconcile(ctx context.Context) (*dto.ReconcileManifest, error) {
	acquired, err := o.lock.Acquire(ctx, ReconcileLockKey, LockTTL)
	if err != nil {
		return nil, fmt.Errorf("candado de reconciliación: %w", err)
	}
	if !acquired {
		return nil, ErrReconcileInProgress
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.lock.Release(relCtx, ReconcileLockKey); err != nil {
			o.logger.Warn().Err(err).Msg("no se pudo liberar el candado de reconciliación")
		}
	}()

	invoices, err := o.invoices.ListByFiscalStates(ctx, domainsri.ReconcileStates(), o.policies.ReconcileLimit)
	if err != nil {
		return nil, fmt.Errorf("listar pendientes: %w", err)
	}

	manifest := &dto.ReconcileManifest{Jobs: []dto.ReconcileJob{}}
	for _, inv := range invoices {
		if !domainsri.IsReconcilable(inv) {
			continue
		}
		jobType := JobSubmitInvoice
		if domainsri.PastSubmission(inv) {
			jobType = JobPollAuthorization
		}
		job, err := o.Enqueue(ctx, jobType, inv.ID, 0)
		if err != nil {
			return manifest, err
		}
		manifest.Jobs = append(manifest.Jobs, dto.ReconcileJob{
			InvoiceID:        inv.ID,
			PriorFiscalState: string(inv.FiscalState),
			JobID:            job.ID,
			JobType:          string(jobType),
		})
	}
	manifest.TotalEnqueued = len(manifest.Jobs)
	o.metrics.Reconciled(manifest.TotalEnqueued)
	o.logger.Info().Int("total_enqueued", manifest.TotalEnqueued).Int("candidatas", len(invoices)).Msg("reconciliación completada")
	return manifest, nil
}
