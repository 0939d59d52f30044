package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fortunegate/internal/models"
)

func TestOpenMemoryAndMigrate(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db))

	for _, table := range []string{"cohort_fortune_pool", "cohort_pool_settings", "fortune_cache", "llm_usage_logs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex(&models.CohortPoolEntry{}, "idx_cohort_pool_lookup"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"}, nil)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "file:x.db?mode=ro", sqliteDSN("file:x.db?mode=ro"))
	assert.Equal(t, "file:data/f.db?_journal_mode=WAL&_foreign_keys=on", sqliteDSN("data/f.db"))
}
