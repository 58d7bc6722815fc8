package mediator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte(`
worker_id: 7
enable_logging: false
max_retry_attempts: 5
retry_delay_ms: 250
idempotency_retention_hours: 48
timeout_seconds: 5
default_qos: exactly_once
dead_letter_overflow: evict_oldest
circuit_breaker_threshold: 10
circuit_breaker_duration_ms: 15000
max_event_handler_concurrency: 8
`))
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.WorkerID)
	assert.False(t, cfg.EnableLogging)
	assert.True(t, cfg.EnableTracing, "unset fields keep the preset value")
	assert.Equal(t, 5, cfg.MaxRetryAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 48*time.Hour, cfg.IdempotencyRetention)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, QoSExactlyOnce, cfg.DefaultQoS)
	assert.Equal(t, OverflowEvictOldest, cfg.DeadLetterOverflow)
	assert.Equal(t, 10, cfg.CircuitBreakerThreshold)
	assert.Equal(t, 15*time.Second, cfg.CircuitBreakerDuration)
	assert.Equal(t, 8, cfg.MaxEventHandlerConcurrency)
}

func TestFromYAMLRejectsUnknownKeys(t *testing.T) {
	_, err := FromYAML([]byte("max_retries: 5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retries")
}

func TestFromYAMLPreset(t *testing.T) {
	cfg, err := FromYAML([]byte("preset: minimal\nenable_logging: true\n"))
	require.NoError(t, err)

	assert.True(t, cfg.EnableLogging, "file value overrides the preset")
	assert.False(t, cfg.EnableRetry, "the rest of the preset stays")
	assert.False(t, cfg.EnableIdempotency)
}

func TestFromYAMLUnknownPreset(t *testing.T) {
	_, err := FromYAML([]byte("preset: turbo\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFromYAMLInvalidValues(t *testing.T) {
	_, err := FromYAML([]byte("max_retry_attempts: 0\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{"worker_id": 3, "retry_delay_ms": 50}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), cfg.WorkerID)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryDelay)
}

func TestFromJSONRejectsUnknownKeys(t *testing.T) {
	_, err := FromJSON([]byte(`{"workerId": 3}`))
	require.Error(t, err)
}

func TestLoadConfigYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mediator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker_id: 9\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, int64(9), cfg.WorkerID)
}

func TestLoadConfigJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mediator.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"preset": "high_performance"}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.IdempotencyShardCount)
}

func TestLoadConfigUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mediator.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".toml")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("COURIER_TEST_WORKER", "11")

	path := filepath.Join(t.TempDir(), "mediator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker_id: ${COURIER_TEST_WORKER}\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, int64(11), cfg.WorkerID)
}

func TestLoadConfigMissingEnvVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mediator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker_id: ${COURIER_TEST_ABSENT_VAR}\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COURIER_TEST_ABSENT_VAR")
}

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("COURIER_TEST_VALUE", "abc")

	out, err := expandEnvStrict("x: ${COURIER_TEST_VALUE}")
	require.NoError(t, err)
	assert.Equal(t, "x: abc", out)

	out, err = expandEnvStrict("x: $$literal")
	require.NoError(t, err)
	assert.Equal(t, "x: $literal", out)
}
