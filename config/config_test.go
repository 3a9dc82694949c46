package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Queue.RetryDelay)
	assert.Equal(t, 30, cfg.Maintenance.StaleAfterDays)
	assert.Equal(t, []string{"listings", "maintenance"}, cfg.Worker.Queues)
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "POSTGRES_HOST=db.internal\nTASK_RETRY_DELAY=5s\nWORKER_QUEUES=listings\nSTALE_AFTER_DAYS=7\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Cleanup(func() {
		for _, k := range []string{"POSTGRES_HOST", "TASK_RETRY_DELAY", "WORKER_QUEUES", "STALE_AFTER_DAYS"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5*time.Second, cfg.Queue.RetryDelay)
	assert.Equal(t, []string{"listings"}, cfg.Worker.Queues)
	assert.Equal(t, 7, cfg.Maintenance.StaleAfterDays)
}

func TestLoadMissingEnvFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want time.Duration
	}{
		{"duration string", "90s", 90 * time.Second},
		{"bare seconds", "45", 45 * time.Second},
		{"garbage falls back", "soon", time.Minute},
		{"empty falls back", "", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.val)
			assert.Equal(t, tt.want, getEnvDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", db.DSN())
}
