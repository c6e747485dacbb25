package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/cobros-sri/internal/bootstrap"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/worker"
	httpRouter "github.com/jhoicas/cobros-sri/internal/interfaces/http"
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
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando API")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es obligatorio")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap.Build(ctx, cfg, bootstrap.Options{}, log.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("construir dependencias")
	}
	defer c.Close()

	// Con la cola en memoria nadie más la ve: el worker corre dentro de la API.
	if !c.SharedQueue {
		log.Warn().Msg("cola en memoria: worker embebido en el proceso de la API")
		w := worker.New(c.Queue, c.Orchestrator, bootstrap.WorkerConfig(cfg.Worker), log.Zerolog())
		go worker.RunPeriodic(ctx, bootstrap.ReconcileInterval(cfg.Worker), c.Orchestrator.Enqueue, log.Zerolog())
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error().Err(err).Msg("worker embebido finalizado")
			}
		}()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Cobros SRI API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Settle:     c.Settle,
		Fiscal:     c.Fiscal,
		Treasury:   c.Treasury,
		Reconciler: c.Orchestrator,
		JWTSecret:  cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
