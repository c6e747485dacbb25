package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg := fromViper(viper.New())

	assert.Equal(t, "development", cfg.App.Env)
	assert.True(t, cfg.App.IsDevelopment())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Mail.Enabled())
	assert.False(t, cfg.Archive.Enabled())
	assert.Equal(t, SignerModeJar, cfg.Signer.Mode)
	assert.Equal(t, "sri:jobs:scheduled", cfg.Redis.QueueKey)
	assert.Equal(t, 15, cfg.Worker.ReconcileIntervalMinutes)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.False(t, cfg.DB.InMemory())
}

func TestFromViper_StoreEnMemoria(t *testing.T) {
	v := viper.New()
	v.Set("STORE_DRIVER", "Memory")
	assert.True(t, fromViper(v).DB.InMemory())
}

func TestFromViper_EnteroInvalidoUsaDefault(t *testing.T) {
	v := viper.New()
	v.Set("HTTP_PORT", "ochenta")
	v.Set("DB_PORT", "6543")
	cfg := fromViper(v)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 6543, cfg.DB.Port)
}

func TestDBConfig_DSNEscapaPassword(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "cobros", Password: "p@ss:w/rd", DBName: "junta", SSLMode: "disable"}
	assert.Equal(t, "postgres://cobros:p%40ss%3Aw%2Frd@db:5432/junta?sslmode=disable", c.DSN())

	c.DatabaseURL = "postgres://otro"
	assert.Equal(t, "postgres://otro", c.ConnectionString())
}

func TestSRIConfig_Issuer(t *testing.T) {
	v := viper.New()
	v.Set("SRI_RUC", "1790012345001")
	v.Set("SRI_RAZON_SOCIAL", "JUNTA DE AGUA")
	v.Set("SRI_OBLIGADO_CONTABILIDAD", "SI")
	v.Set("SRI_FIRMA_MODE", "XADES")
	cfg := fromViper(v)

	issuer, err := cfg.SRI.Issuer()
	require.NoError(t, err)
	assert.Equal(t, "001001", issuer.Series())
	assert.Equal(t, "SI", issuer.AccountingFlag())
	assert.Equal(t, "15", issuer.TaxRate.String())
	assert.Equal(t, SignerModeXades, cfg.Signer.Mode)
}

func TestSRIConfig_IssuerInvalido(t *testing.T) {
	cfg := fromViper(viper.New())
	_, err := cfg.SRI.Issuer()
	assert.Error(t, err, "sin RUC no hay emisor")

	v := viper.New()
	v.Set("SRI_RUC", "1790012345001")
	v.Set("SRI_IVA_TARIFA", "quince")
	_, err = fromViper(v).SRI.Issuer()
	assert.Error(t, err)
}
