package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("POSTGRES_DSN", "")
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["migrate"])
	assert.True(t, names["seed"])
	assert.True(t, names["create-admin"])

	migrate, _, err := root.Find([]string{"migrate", "status"})
	require.NoError(t, err)
	assert.Equal(t, "status", migrate.Name())
}

func TestCreateAdminRequiresFlags(t *testing.T) {
	_, err := run(t, "create-admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestCreateAdminRejectsShortPassword(t *testing.T) {
	_, err := run(t, "create-admin", "--email", "a@example.com", "--password", "short")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8")
}

func TestCommandsNeedDatabase(t *testing.T) {
	_, err := run(t, "seed")
	assert.ErrorIs(t, err, errNoDatabase)

	_, err = run(t, "migrate", "up")
	assert.ErrorIs(t, err, errNoDatabase)
}
