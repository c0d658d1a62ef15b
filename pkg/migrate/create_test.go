package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSQLMigrationWritesValidFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Payout Index!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260302083000_add_payout_index.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "add payout index", now)
	require.Error(t, err, "same version and slug must not overwrite")
}

func TestCreateSQLMigrationRejectsEmptySlug(t *testing.T) {
	_, err := CreateSQLMigration(t.TempDir(), " !! ", time.Now())
	require.Error(t, err)
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("20260301000000_ok.sql", "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	write("bad-name.sql", "")
	write("20260301000001_no_down.sql", "-- +goose Up\nSELECT 1;\n")
	write("20260301000002_unbalanced.sql", "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad-name.sql")
	assert.Contains(t, err.Error(), "no_down")
	assert.Contains(t, err.Error(), "StatementBegin")
	assert.NotContains(t, err.Error(), "_ok.sql")
}
