// Package worker consume la cola de trabajos SRI con concurrencia acotada.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	appsri "github.com/jhoicas/cobros-sri/internal/application/sri"
)

// Source origen de trabajos vencidos. Un trabajo reclamado sin Ack vuelve a
// entregarse cuando vence su reserva.
type Source interface {
	Claim(ctx context.Context, now time.Time, max int) ([]appsri.Job, error)
	Ack(ctx context.Context, job appsri.Job) error
}

// Handler ejecuta un trabajo; en producción es *appsri.Orchestrator.
type Handler interface {
	Handle(ctx context.Context, job appsri.Job) error
}

// Config parámetros del worker.
type Config struct {
	Concurrency  int
	PollInterval time.Duration
	JobTimeout   time.Duration // tope por trabajo; debe ser menor que el TTL del candado
}

// DefaultConfig valores por defecto.
func DefaultConfig() Config {
	return Config{Concurrency: 4, PollInterval: time.Second, JobTimeout: 2 * time.Minute}
}

// Worker reclama lotes de trabajos y los ejecuta en paralelo.
type Worker struct {
	source  Source
	handler Handler
	cfg     Config
	logger  zerolog.Logger
}

// New construye el worker.
func New(source Source, handler Handler, cfg Config, logger zerolog.Logger) *Worker {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	return &Worker{source: source, handler: handler, cfg: cfg, logger: logger.With().Str("component", "worker").Logger()}
}

// Run procesa hasta que ctx se cancele. Los trabajos en curso terminan antes de salir.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Int("concurrency", w.cfg.Concurrency).Dur("poll_interval", w.cfg.PollInterval).Msg("worker iniciado")
	for {
		n, err := w.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error().Err(err).Msg("no se pudieron reclamar trabajos")
		}
		if n > 0 && ctx.Err() == nil {
			continue
		}
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("worker detenido")
			return nil
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// RunOnce reclama un lote y lo ejecuta completo. Devuelve cuántos trabajos corrió.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.source.Claim(ctx, time.Now(), w.cfg.Concurrency)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	// Los trabajos ya están reservados: se terminan aunque ctx se cancele.
	runCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			jobCtx, cancel := context.WithTimeout(runCtx, w.cfg.JobTimeout)
			defer cancel()
			if err := w.handler.Handle(jobCtx, job); err != nil {
				// Sin Ack: la cola lo vuelve a entregar al vencer la reserva.
				w.logger.Error().Err(err).Str("job", string(job.Type)).Str("job_id", job.ID).
					Str("invoice_id", job.InvoiceID).Msg("no se pudo reprogramar el trabajo")
				return nil
			}
			if err := w.source.Ack(runCtx, job); err != nil {
				w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("no se pudo confirmar el trabajo")
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(jobs), nil
}

// EnqueueFunc programa un trabajo; lo implementa *appsri.Orchestrator.Enqueue.
type EnqueueFunc func(ctx context.Context, jobType appsri.JobType, invoiceID string, delay time.Duration) (appsri.Job, error)

// RunPeriodic encola reconcile_pending cada interval hasta que ctx se cancele.
func RunPeriodic(ctx context.Context, interval time.Duration, enqueue EnqueueFunc, logger zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := enqueue(ctx, appsri.JobReconcilePending, "", 0); err != nil {
				logger.Error().Err(err).Msg("no se pudo programar la reconciliación periódica")
			}
		}
	}
}
