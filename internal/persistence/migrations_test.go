package persistence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrationFilesArePaired(t *testing.T) {
	names, err := MigrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := 0, 0
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups++
		case strings.HasSuffix(n, ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)
}

func TestUsersMigrationSchema(t *testing.T) {
	raw, err := migrationFS.ReadFile("migrations/000001_create_users.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	assert.Contains(t, sql, "CONSTRAINT users_email_key UNIQUE (email)")
	assert.Contains(t, sql, "active      BOOLEAN NOT NULL DEFAULT TRUE")
	assert.Contains(t, sql, "(active, created_at DESC)")
}

func TestRunMigrationsRejectsKeywordDSN(t *testing.T) {
	err := RunMigrations("host=localhost user=app", zap.NewNop())
	assert.Error(t, err)
	assert.NoError(t, RunMigrations("", zap.NewNop()))
}
