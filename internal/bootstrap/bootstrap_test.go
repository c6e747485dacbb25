package bootstrap_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cobros-sri/internal/bootstrap"
	"github.com/jhoicas/cobros-sri/internal/infrastructure/worker"
	"github.com/jhoicas/cobros-sri/pkg/config"
)

func devConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "development", Name: "cobros-sri"},
		DB:  config.DBConfig{Driver: "memory"},
		SRI: config.SRIConfig{
			RUC:           "1790012345001",
			LegalName:     "JUNTA DE AGUA",
			MainAddress:   "Av. Principal",
			Establishment: "001",
			EmissionPoint: "001",
			Environment:   "1",
			TaxRateCode:   "4",
			TaxRate:       "15",
			PaymentForm:   "01",
		},
		Signer: config.SignerConfig{Mode: config.SignerModeJar, JavaBin: "java", TimeoutSeconds: 25},
	}
}

func TestBuild_DesarrolloEnMemoria(t *testing.T) {
	c, err := bootstrap.Build(context.Background(), devConfig(),
		bootstrap.Options{WithEffects: true, Registerer: prometheus.NewRegistry()}, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.SharedQueue)
	assert.NotNil(t, c.Orchestrator)
	assert.NotNil(t, c.Settle)
	assert.NotNil(t, c.Fiscal)
	assert.Equal(t, "001001", c.Issuer.Series())
}

func TestBuild_MemoriaFueraDeDesarrollo(t *testing.T) {
	cfg := devConfig()
	cfg.App.Env = "production"
	_, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{Registerer: prometheus.NewRegistry()}, zerolog.Nop())
	assert.Error(t, err)
}

func TestBuild_ModoDeFirmaDesconocido(t *testing.T) {
	cfg := devConfig()
	cfg.Signer.Mode = "hsm"
	_, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{Registerer: prometheus.NewRegistry()}, zerolog.Nop())
	assert.ErrorContains(t, err, "hsm")
}

func TestBuild_EmisorInvalido(t *testing.T) {
	cfg := devConfig()
	cfg.SRI.RUC = ""
	_, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{Registerer: prometheus.NewRegistry()}, zerolog.Nop())
	assert.Error(t, err)
}

func TestWorkerConfig(t *testing.T) {
	def := bootstrap.WorkerConfig(config.WorkerConfig{})
	assert.Equal(t, worker.DefaultConfig(), def)

	cfg := bootstrap.WorkerConfig(config.WorkerConfig{Concurrency: 8, PollIntervalMillis: 250, JobTimeoutSeconds: 90})
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 90*time.Second, cfg.JobTimeout)

	assert.Equal(t, 15*time.Minute, bootstrap.ReconcileInterval(config.WorkerConfig{ReconcileIntervalMinutes: 15}))
	assert.Zero(t, bootstrap.ReconcileInterval(config.WorkerConfig{}))
}
