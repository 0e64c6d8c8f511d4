package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"NASKAH_CONFIG", "NASKAH_ADDR", "NASKAH_STORE", "NASKAH_SQLITE_PATH", "NASKAH_DIR",
		"NASKAH_AUTOSAVE", "NASKAH_LOG_LEVEL", "user", "password", "host", "port", "dbname", "sslmode",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "naskah.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: postgres\naddr: \":9000\"\npostgres:\n  host: db.local\n  dbname: naskah\n"), 0o600))

	clearEnv(t)
	t.Setenv("NASKAH_CONFIG", path)
	t.Setenv("NASKAH_ADDR", ":9100")
	t.Setenv("NASKAH_AUTOSAVE", "45s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, 45*time.Second, cfg.AutosaveInterval)
	assert.Equal(t, "db.local", cfg.Postgres.Host)
	assert.Equal(t, "naskah", cfg.Postgres.DBName)
	assert.Equal(t, "5432", cfg.Postgres.Port)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	clearEnv(t)
	// godotenv never overrides a variable that is already set, even to "".
	t.Setenv("NASKAH_STORE", "")
	require.NoError(t, os.Unsetenv("NASKAH_STORE"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NASKAH_STORE=indexed-dir\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreIndexedDir, cfg.Store)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store = "floppy"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	t.Setenv("NASKAH_AUTOSAVE", "soon")
	assert.Error(t, cfg.applyEnv())
}
