package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
)

func TestDriverURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/x?sslmode=disable", DriverURL("postgres://u:p@db:5432/x?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/x", DriverURL("postgresql://u@db/x"))
	assert.Equal(t, "pgx5://ya", DriverURL("pgx5://ya"))
}

func TestMigracionesEmbebidas_Pares(t *testing.T) {
	names, err := fs.Glob(migrations, "sql/*.sql")
	require.NoError(t, err)
	ups, downs := 0, 0
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups++
		case strings.HasSuffix(n, ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, 2, ups)
	assert.Equal(t, ups, downs)
}

// Cada alias histórico que entiende el dominio debe normalizarse también en SQL.
func TestMigracionLegacy_CubreAlias(t *testing.T) {
	raw, err := fs.ReadFile(migrations, "sql/0002_legacy_fiscal_states.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	for _, alias := range []string{
		"NO_ENVIADA", "PENDIENTE_FIRMA", "PENDIENTE_SRI", "EN PROCESAMIENTO", "NO_ENCONTRADO",
		"AUTORIZADO", "AUTORIZADO_SRI", "AUTORIZADA", "DEVUELTA", "DEVUELTA_SRI",
		"RECHAZADA", "RECHAZADO", "NO AUTORIZADO", "ERROR_FIRMA", "TIMEOUT_FIRMA", "EXCEPTION",
	} {
		st, _, ok := entity.ParseFiscalState(alias)
		require.True(t, ok, alias)
		assert.Contains(t, sql, "WHEN '"+alias+"'", alias)
		assert.Contains(t, sql, "THEN '"+string(st)+"'", alias)
	}
}
