package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("DOTENV_PATH", filepath.Join(dir, "missing.env"))
	return dir
}

func TestQueueSizeDefaultsRespectWorkers(t *testing.T) {
	isolate(t)
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("JOB_QUEUE_SIZE", "4")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.WorkerCount != 8 {
		t.Fatalf("expected worker count 8, got %d", cfg.WorkerCount)
	}
	if cfg.JobQueueSize < cfg.WorkerCount {
		t.Fatalf("queue size should be at least workers, got %d", cfg.JobQueueSize)
	}
}

func TestQueueSizeClamped(t *testing.T) {
	isolate(t)
	t.Setenv("JOB_QUEUE_SIZE", "5000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, maxQueueSize, cfg.JobQueueSize)
	assert.NotEmpty(t, cfg.Warnings)
}

func TestHTTPPortDefaultFormatting(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_PORT", "9000")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPPort != ":9000" {
		t.Fatalf("expected HTTP_PORT to include colon, got %s", cfg.HTTPPort)
	}
}

func TestFileConfigThenEnvOverrides(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	body := `
http_port: ":9100"
db_path: /tmp/pulse.db
session_ttl_min: 15
dark_mode: true
enable_watcher: false
auth:
  username: ops
  email: ops@example.com
  password: s3cret
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DB_PATH", "/var/lib/pulse.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTPPort)
	assert.Equal(t, "/var/lib/pulse.db", cfg.DBPath)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL())
	assert.True(t, cfg.DarkMode)
	assert.False(t, cfg.EnableWatcher)
	assert.Equal(t, AuthConfig{Username: "ops", Email: "ops@example.com", Password: "s3cret"}, cfg.Auth)
	assert.Empty(t, cfg.Warnings)
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := isolate(t)
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("AUTH_USERNAME=from-file\nSESSION_TTL_MIN=30\n"), 0o644))
	t.Setenv("DOTENV_PATH", envPath)
	t.Setenv("AUTH_USERNAME", "from-env")
	// t.Setenv restores only keys it set; clear the one the .env file injects.
	t.Setenv("SESSION_TTL_MIN", "")
	require.NoError(t, os.Unsetenv("SESSION_TTL_MIN"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.Username)
	assert.Equal(t, 30, cfg.SessionTTLMin)
}

func TestStrictConfigFailsOnMissingFile(t *testing.T) {
	isolate(t)
	t.Setenv("STRICT_CONFIG", "true")
	_, err := Load()
	assert.Error(t, err)
}

func TestInvalidJobTimeoutIsAnError(t *testing.T) {
	isolate(t)
	t.Setenv("JOB_TIMEOUT_SEC", "-1")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	isolate(t)
	t.Setenv("LOG_LEVEL", "chatty")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Contains(t, cfg.Warnings[len(cfg.Warnings)-1], "LOG_LEVEL")
	assert.Equal(t, defaultLogLevel, cfg.LogLevel, "non-strict mode continues at the default level")

	t.Setenv("STRICT_CONFIG", "1")
	t.Setenv("CONFIG_PATH", writeMinimal(t))
	_, err = Load()
	assert.Error(t, err)
}

func writeMinimal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http_port": "8000"}`), 0o644))
	return path
}

func TestIntSettingsFromFileAndFallbacks(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker_count: 3\njob_timeout_sec: 90\nauth:\n  password: pw\n"), 0o644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("JOB_QUEUE_SIZE", "lots")
	t.Setenv("SESSION_TTL_MIN", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, 90*time.Second, cfg.JobTimeout())
	assert.Equal(t, defaultQueueSize, cfg.JobQueueSize)
	assert.Equal(t, time.Minute, cfg.SessionTTL())
	assert.Len(t, cfg.Warnings, 2)

	t.Setenv("STRICT_CONFIG", "true")
	_, err = Load()
	assert.ErrorContains(t, err, "JOB_QUEUE_SIZE")
}
