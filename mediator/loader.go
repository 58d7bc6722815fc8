package mediator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with the wire units the file format uses.
// Pointer fields distinguish "absent" from zero so file values only
// override what they set.
type fileConfig struct {
	Preset *string `yaml:"preset" json:"preset"`

	WorkerID *int64 `yaml:"worker_id" json:"worker_id"`

	EnableLogging         *bool `yaml:"enable_logging" json:"enable_logging"`
	EnableTracing         *bool `yaml:"enable_tracing" json:"enable_tracing"`
	EnableRetry           *bool `yaml:"enable_retry" json:"enable_retry"`
	EnableValidation      *bool `yaml:"enable_validation" json:"enable_validation"`
	EnableIdempotency     *bool `yaml:"enable_idempotency" json:"enable_idempotency"`
	EnableDeadLetterQueue *bool `yaml:"enable_dead_letter_queue" json:"enable_dead_letter_queue"`

	MaxRetryAttempts          *int    `yaml:"max_retry_attempts" json:"max_retry_attempts"`
	RetryDelayMs              *int    `yaml:"retry_delay_ms" json:"retry_delay_ms"`
	IdempotencyRetentionHours *int    `yaml:"idempotency_retention_hours" json:"idempotency_retention_hours"`
	IdempotencyShardCount     *int    `yaml:"idempotency_shard_count" json:"idempotency_shard_count"`
	DeadLetterQueueMaxSize    *int    `yaml:"dead_letter_queue_max_size" json:"dead_letter_queue_max_size"`
	DeadLetterOverflow        *string `yaml:"dead_letter_overflow" json:"dead_letter_overflow"`
	DefaultQoS                *string `yaml:"default_qos" json:"default_qos"`
	TimeoutSeconds            *int    `yaml:"timeout_seconds" json:"timeout_seconds"`

	CircuitBreakerThreshold  *int `yaml:"circuit_breaker_threshold" json:"circuit_breaker_threshold"`
	CircuitBreakerDurationMs *int `yaml:"circuit_breaker_duration_ms" json:"circuit_breaker_duration_ms"`

	MaxEventHandlerConcurrency *int `yaml:"max_event_handler_concurrency" json:"max_event_handler_concurrency"`
}

// LoadConfig loads configuration from a file, auto-detecting the
// format by extension (.yaml, .yml, .json). `${VAR}` references in the
// file are expanded from the environment before parsing; a referenced
// variable that is missing is an error. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	expanded, err := expandEnvStrict(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("expand config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML([]byte(expanded))
	case ".json":
		return FromJSON([]byte(expanded))
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return fc.apply()
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	var fc fileConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return fc.apply()
}

// apply overlays the file values on the preset base and validates.
func (fc fileConfig) apply() (Config, error) {
	cfg := DefaultConfig()
	if fc.Preset != nil {
		switch *fc.Preset {
		case "", "default":
		case "minimal":
			cfg = MinimalConfig()
		case "development":
			cfg = DevelopmentConfig()
		case "high_performance":
			cfg = HighPerformanceConfig()
		default:
			return Config{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, *fc.Preset)
		}
	}

	if fc.WorkerID != nil {
		cfg.WorkerID = *fc.WorkerID
	}
	if fc.EnableLogging != nil {
		cfg.EnableLogging = *fc.EnableLogging
	}
	if fc.EnableTracing != nil {
		cfg.EnableTracing = *fc.EnableTracing
	}
	if fc.EnableRetry != nil {
		cfg.EnableRetry = *fc.EnableRetry
	}
	if fc.EnableValidation != nil {
		cfg.EnableValidation = *fc.EnableValidation
	}
	if fc.EnableIdempotency != nil {
		cfg.EnableIdempotency = *fc.EnableIdempotency
	}
	if fc.EnableDeadLetterQueue != nil {
		cfg.EnableDeadLetterQueue = *fc.EnableDeadLetterQueue
	}
	if fc.MaxRetryAttempts != nil {
		cfg.MaxRetryAttempts = *fc.MaxRetryAttempts
	}
	if fc.RetryDelayMs != nil {
		cfg.RetryDelay = time.Duration(*fc.RetryDelayMs) * time.Millisecond
	}
	if fc.IdempotencyRetentionHours != nil {
		cfg.IdempotencyRetention = time.Duration(*fc.IdempotencyRetentionHours) * time.Hour
	}
	if fc.IdempotencyShardCount != nil {
		cfg.IdempotencyShardCount = *fc.IdempotencyShardCount
	}
	if fc.DeadLetterQueueMaxSize != nil {
		cfg.DeadLetterQueueMaxSize = *fc.DeadLetterQueueMaxSize
	}
	if fc.DeadLetterOverflow != nil {
		cfg.DeadLetterOverflow = OverflowPolicy(*fc.DeadLetterOverflow)
	}
	if fc.DefaultQoS != nil {
		cfg.DefaultQoS = ParseQoS(*fc.DefaultQoS)
	}
	if fc.TimeoutSeconds != nil {
		cfg.Timeout = time.Duration(*fc.TimeoutSeconds) * time.Second
	}
	if fc.CircuitBreakerThreshold != nil {
		cfg.CircuitBreakerThreshold = *fc.CircuitBreakerThreshold
	}
	if fc.CircuitBreakerDurationMs != nil {
		cfg.CircuitBreakerDuration = time.Duration(*fc.CircuitBreakerDurationMs) * time.Millisecond
	}
	if fc.MaxEventHandlerConcurrency != nil {
		cfg.MaxEventHandlerConcurrency = *fc.MaxEventHandlerConcurrency
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvStrict expands environment variables in s.
//
// Semantics:
//   - `$VAR` and `${VAR}` are expanded via os.ExpandEnv.
//   - If `${VAR}` is present but VAR is missing from the environment,
//     it errors.
//   - `$$` emits a literal `$` (escape hatch).
func expandEnvStrict(s string) (string, error) {
	const dollarSentinel = "\x00COURIER_CONFIG_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	missing := make(map[string]struct{})
	for _, match := range envVarPattern.FindAllStringSubmatch(s, -1) {
		key := match[1]
		if _, ok := os.LookupEnv(key); !ok {
			missing[key] = struct{}{}
		}
	}
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(keys, ", "))
	}

	s = os.ExpandEnv(s)
	s = strings.ReplaceAll(s, dollarSentinel, "$")
	return s, nil
}
