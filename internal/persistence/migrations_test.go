package persistence

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmbeddedMigrationsAreGooseFiles(t *testing.T) {
	entries, err := fs.ReadDir(embedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		body, err := fs.ReadFile(embedMigrations, migrationsDir+"/"+entry.Name())
		require.NoError(t, err)
		text := string(body)
		assert.True(t, strings.HasPrefix(text, "-- +goose Up"), entry.Name())
		assert.Contains(t, text, "-- +goose Down", entry.Name())
	}
}

func TestRoleNamesUniqueIgnoringCase(t *testing.T) {
	body, err := fs.ReadFile(embedMigrations, migrationsDir+"/00005_role_name_case.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE UNIQUE INDEX roles_name_key ON roles (LOWER(name))")
}

func TestMigrateWithoutPoolIsNoop(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, zap.NewNop()))
}

func TestNilStoresReportUnavailable(t *testing.T) {
	var pg *Postgres
	assert.Error(t, pg.Ping(context.Background()))
	assert.False(t, pg.Enabled())

	r := &Redis{}
	assert.Error(t, r.Ping(context.Background()))
}
