package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	appsri "github.com/jhoicas/cobros-sri/internal/application/sri"
	"github.com/jhoicas/cobros-sri/internal/bootstrap"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/worker"
	"github.com/jhoicas/cobros-sri/pkg/config"
	"github.com/jhoicas/cobros-sri/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name + "-worker",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Int("concurrency", cfg.Worker.Concurrency).
		Msg("iniciando worker SRI")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap.Build(ctx, cfg, bootstrap.Options{WithEffects: true}, log.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("construir dependencias")
	}
	defer c.Close()

	if !c.SharedQueue {
		// Sin Redis la API no puede encolarle nada; sólo corre la reconciliación local.
		log.Warn().Msg("cola en memoria: este worker no ve los trabajos de la API")
	}

	// Métricas Prometheus
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("servidor de métricas finalizado")
		}
	}()

	// Reconciliación al arrancar y luego periódica.
	if _, err := c.Orchestrator.Enqueue(ctx, appsri.JobReconcilePending, "", 0); err != nil {
		log.Error().Err(err).Msg("no se pudo programar la reconciliación inicial")
	}
	go worker.RunPeriodic(ctx, bootstrap.ReconcileInterval(cfg.Worker), c.Orchestrator.Enqueue, log.Zerolog())

	w := worker.New(c.Queue, c.Orchestrator, bootstrap.WorkerConfig(cfg.Worker), log.Zerolog())
	if err := w.Run(ctx); err != nil {
		log.Error().Err(err).Msg("worker finalizado con error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor de métricas")
	}

	log.Info().Msg("worker detenido")
}
