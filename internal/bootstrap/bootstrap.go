// Package bootstrap arma las dependencias compartidas por cmd/api y cmd/worker.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jhoicas/cobros-sri/internal/application/billing"
	appsri "github.com/jhoicas/cobros-sri/internal/application/sri"
	"github.com/jhoicas/cobros-sri/internal/domain/repository"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/archive"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/cache"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/memory"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/metrics"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/notify"
	infrapdf "github.com/jhoicas/cobros-sri/internal/infrastructure/pdf"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/postgres"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/queue"
	infrasri "github.com/jhoicas/cobros-sri/internal/infrastructure/sri"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/sri/signer"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/worker"
	"github.com/jhoicas/cobros-sri/pkg/config"
	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

// Queue cola de trabajos: se encola desde el orquestador y se reclama desde el worker.
type Queue interface {
	appsri.JobQueue
	Claim(ctx context.Context, now time.Time, max int) ([]appsri.Job, error)
	Ack(ctx context.Context, job appsri.Job) error
}

// Options ajustes por proceso.
type Options struct {
	// WithEffects activa correo y archivo S3 (sólo el worker los necesita).
	WithEffects bool
	// Registerer destino de las métricas; nil = prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Container dependencias construidas.
type Container struct {
	Invoices  repository.InvoiceRepository
	Payments  repository.PaymentRepository
	Partners  repository.PartnerRepository
	Sequences repository.SequenceProvider
	TxRunner  billing.SettlementTxRunner

	Lock        appsri.Lock
	Idempotency billing.IdempotencyCache
	Queue       Queue
	// SharedQueue false cuando la cola vive en memoria y sólo la ve este proceso.
	SharedQueue bool

	Issuer       pkgsri.IssuerConfig
	Ride         *infrapdf.RideGenerator
	Metrics      *metrics.Metrics
	Pipeline     *appsri.Pipeline
	Orchestrator *appsri.Orchestrator

	Settle   *billing.SettleInvoiceUseCase
	Treasury *billing.TreasuryUseCase
	Fiscal   *billing.FiscalUseCase

	closers []func()
}

// Close libera conexiones en orden inverso.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// Build construye el contenedor a partir de la configuración.
func Build(ctx context.Context, cfg *config.Config, opts Options, logger zerolog.Logger) (*Container, error) {
	c := &Container{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	issuer, err := cfg.SRI.Issuer()
	if err != nil {
		return nil, fmt.Errorf("emisor SRI: %w", err)
	}
	c.Issuer = issuer

	// ── 1. Persistencia ───────────────────────────────────────────────────────
	if err := c.buildStore(ctx, cfg, logger); err != nil {
		return nil, err
	}

	// ── 2. Redis o memoria ────────────────────────────────────────────────────
	if err := c.buildCoordination(ctx, cfg, logger); err != nil {
		return nil, err
	}

	// ── 3. Circuito SRI ───────────────────────────────────────────────────────
	sign, err := buildSigner(cfg.Signer, logger)
	if err != nil {
		return nil, err
	}
	endpoints := infrasri.DefaultEndpoints(issuer.Environment)
	if cfg.SRI.ReceptionURL != "" {
		endpoints.Reception = cfg.SRI.ReceptionURL
	}
	if cfg.SRI.AuthorizationURL != "" {
		endpoints.Authorization = cfg.SRI.AuthorizationURL
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c.Metrics = metrics.New(reg)
	c.Ride = infrapdf.NewRideGenerator(issuer)

	deps := appsri.PipelineDeps{
		Invoices:  c.Invoices,
		Partners:  c.Partners,
		Sequences: c.Sequences,
		Keys:      pkgsri.NewAccessKeyGenerator(issuer),
		Builder:   infrasri.NewXMLBuilderService(issuer),
		Signer:    sign,
		Authority: infrasri.NewSOAPAuthorityClient(endpoints, cfg.SRI.Timeout(), logger),
		Lock:      c.Lock,
		Ride:      c.Ride,
		Metrics:   c.Metrics,
	}
	if opts.WithEffects {
		if err := buildEffects(ctx, cfg, &deps, logger); err != nil {
			return nil, err
		}
	}

	policies := appsri.DefaultPolicies()
	c.Pipeline = appsri.NewPipeline(deps, policies, logger)
	c.Orchestrator = appsri.NewOrchestrator(c.Pipeline, c.Queue, c.Invoices, c.Lock, policies, c.Metrics, logger)

	// ── 4. Casos de uso HTTP ──────────────────────────────────────────────────
	c.Settle = billing.NewSettleInvoiceUseCase(c.TxRunner, c.Invoices, c.Payments, c.Idempotency, c.Orchestrator, logger)
	c.Treasury = billing.NewTreasuryUseCase(c.Invoices, c.Payments, logger)
	c.Fiscal = billing.NewFiscalUseCase(c.Invoices, c.Partners, c.Ride)

	logger.Info().
		Str("ambiente", issuer.Environment).
		Str("recepcion", endpoints.Reception).
		Str("firma", cfg.Signer.Mode).
		Bool("cola_compartida", c.SharedQueue).
		Msg("dependencias listas")
	ok = true
	return c, nil
}

func (c *Container) buildStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.DB.InMemory() {
		if !cfg.App.IsDevelopment() {
			return errors.New("STORE_DRIVER=memory sólo se permite en desarrollo")
		}
		logger.Warn().Msg("usando store en memoria: los datos se pierden al reiniciar")
		store := memory.NewStore()
		c.Invoices = store.Invoices()
		c.Payments = store.Payments()
		c.Partners = store.Partners()
		c.Sequences = store.Sequences()
		c.TxRunner = store
		return nil
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	c.closers = append(c.closers, pool.Close)
	c.Invoices = postgres.NewInvoiceRepository(pool)
	c.Payments = postgres.NewPaymentRepository(pool)
	c.Partners = postgres.NewPartnerRepository(pool)
	c.Sequences = postgres.NewSequenceRepository(pool)
	c.TxRunner = postgres.NewTxRunner(pool)
	return nil
}

func (c *Container) buildCoordination(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if !cfg.Redis.Enabled() {
		if !cfg.App.IsDevelopment() {
			return errors.New("REDIS_ADDR es obligatorio fuera de desarrollo")
		}
		logger.Warn().Msg("sin Redis: candados, idempotencia y cola en memoria")
		idem := cache.NewMemoryIdempotencyCache()
		c.closers = append(c.closers, func() { _ = idem.Close() })
		c.Lock = cache.NewMemoryLock()
		c.Idempotency = idem
		c.Queue = queue.NewMemoryQueue(queue.WithVisibility(queueVisibility(cfg.Worker)))
		return nil
	}
	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("conexión a Redis: %w", err)
	}
	c.closers = append(c.closers, func() { _ = client.Close() })
	c.Lock = cache.NewRedisLock(client)
	c.Idempotency = cache.NewRedisIdempotencyCache(client, "idem:cobro:")
	c.Queue = queue.NewRedisQueue(client, cfg.Redis.QueueKey, queue.WithVisibility(queueVisibility(cfg.Worker)))
	c.SharedQueue = true
	return nil
}

func buildSigner(cfg config.SignerConfig, logger zerolog.Logger) (pkgsri.Signer, error) {
	switch cfg.Mode {
	case config.SignerModeJar, "":
		return signer.NewJarSigner(signer.JarConfig{
			JavaBin:          cfg.JavaBin,
			JarPath:          cfg.JarPath,
			CredentialBase64: cfg.CredentialBase64,
			CredentialPath:   cfg.CredentialPath,
			Password:         cfg.Password,
			Timeout:          cfg.Timeout(),
			TempDir:          cfg.TempDir,
		}, logger), nil
	case config.SignerModeXades:
		s, err := signer.NewXadesSigner(cfg.CredentialBase64, cfg.CredentialPath, cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("firmador XAdES: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("SRI_FIRMA_MODE desconocido %q", cfg.Mode)
	}
}

func buildEffects(ctx context.Context, cfg *config.Config, deps *appsri.PipelineDeps, logger zerolog.Logger) error {
	if cfg.Mail.Enabled() {
		deps.Notifier = notify.NewMailNotifier(notify.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			User:     cfg.Mail.User,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}, logger)
	}
	if cfg.Archive.Enabled() {
		a, err := archive.NewS3Archive(ctx, archive.Config{
			Bucket:   cfg.Archive.Bucket,
			Region:   cfg.Archive.Region,
			Endpoint: cfg.Archive.Endpoint,
			Prefix:   cfg.Archive.Prefix,
		})
		if err != nil {
			return fmt.Errorf("archivo S3: %w", err)
		}
		deps.Archiver = a
	}
	return nil
}

// WorkerConfig traduce la configuración del proceso a worker.Config. Ceros = valores por defecto.
func WorkerConfig(cfg config.WorkerConfig) worker.Config {
	out := worker.DefaultConfig()
	if cfg.Concurrency > 0 {
		out.Concurrency = cfg.Concurrency
	}
	if cfg.PollIntervalMillis > 0 {
		out.PollInterval = time.Duration(cfg.PollIntervalMillis) * time.Millisecond
	}
	if cfg.JobTimeoutSeconds > 0 {
		out.JobTimeout = time.Duration(cfg.JobTimeoutSeconds) * time.Second
	}
	return out
}

// queueVisibility reserva de un trabajo reclamado: el doble del tope por trabajo.
func queueVisibility(cfg config.WorkerConfig) time.Duration {
	return 2 * WorkerConfig(cfg).JobTimeout
}

// ReconcileInterval cada cuánto se programa reconcile_pending; 0 lo desactiva.
func ReconcileInterval(cfg config.WorkerConfig) time.Duration {
	return time.Duration(cfg.ReconcileIntervalMinutes) * time.Minute
}
