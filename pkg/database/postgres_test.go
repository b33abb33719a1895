package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"0002_archive.up.sql",
		"0001_outgoing_queue.up.sql",
		"0001_outgoing_queue.down.sql",
		"0002_archive.down.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}

	up, err := MigrationFiles(dir, Up)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "0001_outgoing_queue.up.sql"),
		filepath.Join(dir, "0002_archive.up.sql"),
	}, up)

	down, err := MigrationFiles(dir, Down)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "0002_archive.down.sql"),
		filepath.Join(dir, "0001_outgoing_queue.down.sql"),
	}, down)

	_, err = MigrationFiles(filepath.Join(dir, "missing"), Up)
	assert.Error(t, err)
}

func TestRepositoryMigrationsArePaired(t *testing.T) {
	up, err := MigrationFiles("../../migrations", Up)
	require.NoError(t, err)
	down, err := MigrationFiles("../../migrations", Down)
	require.NoError(t, err)
	assert.NotEmpty(t, up)
	assert.Len(t, down, len(up))
}
