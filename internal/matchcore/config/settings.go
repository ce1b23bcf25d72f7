package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Priority is a queue priority level.
type Priority string

const (
	PriorityPremium  Priority = "premium"
	PriorityStandard Priority = "standard"
	PriorityBatch    Priority = "batch"
)

// GeoMode selects how GeoClient resolves travel-time/geocoding calls.
type GeoMode string

const (
	GeoModeAPIOnly    GeoMode = "api-only"
	GeoModeSimulation GeoMode = "simulation"
	GeoModeHybrid     GeoMode = "hybrid"
)

// QueuePolicy holds the per-priority timeout/retention/retry knobs.
type QueuePolicy struct {
	Timeout    time.Duration
	ResultTTL  time.Duration
	MaxRetries int
}

// CircuitPolicy holds per-dependency breaker tuning.
type CircuitPolicy struct {
	Threshold       int
	Timeout         time.Duration
	SuccessesNeeded int
}

// RetryPolicy holds exponential-backoff tuning.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Weights groups the two weight tables ScoreAggregator consumes.
type Weights struct {
	// Categories maps category name (skills, cultural, text, pref, experience) to weight.
	Categories map[string]float64
	// Features maps a full feature name (skills_coverage) or a family prefix
	// (skills_, text_, pref_, cultural_, experience_) to weight; an exact name
	// takes precedence over its prefix.
	Features map[string]float64
}

// Geo groups GeoClient configuration.
type Geo struct {
	Mode       GeoMode
	DailyQuota int
}

// Cache groups CacheTier configuration.
type Cache struct {
	LocalSize   int64
	DefaultTTL  time.Duration
	BackendPath string
}

// Worker groups the worker-pool configuration.
type Worker struct {
	PoolSize      int
	Priorities    []Priority
	ShutdownGrace time.Duration
}

// Algorithms groups C7/C8 configuration.
type Algorithms struct {
	Enabled     map[string]bool
	MLModelPath string
}

// Embeddings groups the EmbeddingsProvider capability toggle.
type Embeddings struct {
	Enabled bool
	APIKey  string
	Model   string
}

// Config is the single configuration struct for the whole core. It is
// populated from environment variables with defaults by Load, but the core
// accepts a fully built Config directly — environment variables are a
// convenience, not a requirement.
type Config struct {
	Weights    Weights
	Geo        Geo
	Cache      Cache
	Queue      map[Priority]QueuePolicy
	Worker     Worker
	Circuit    map[string]CircuitPolicy
	Retry      map[string]RetryPolicy
	Algorithms Algorithms
	Embeddings Embeddings

	// FeatureVersion is folded into every result fingerprint so that
	// reweighting invalidates cached results without a flush.
	FeatureVersion string

	// QueueHighWaterMark bounds pending count per priority before enqueue
	// reports the queue full.
	QueueHighWaterMark int

	LogLevel string
}

// Load populates a Config from environment variables, falling back to the
// documented defaults where unset.
func Load() Config {
	poolSize := runtime.NumCPU()
	if v := getEnv("WORKER_POOL_SIZE", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			poolSize = n
		}
	}

	return Config{
		Weights: Weights{
			Categories: map[string]float64{
				"skills":     getEnvFloat("WEIGHT_CATEGORY_SKILLS", 0.40),
				"cultural":   getEnvFloat("WEIGHT_CATEGORY_CULTURAL", 0.20),
				"text":       getEnvFloat("WEIGHT_CATEGORY_TEXT", 0.20),
				"pref":       getEnvFloat("WEIGHT_CATEGORY_PREF", 0.15),
				"experience": getEnvFloat("WEIGHT_CATEGORY_EXPERIENCE", 0.05),
			},
			Features: map[string]float64{
				"skills_":         1.0,
				"skills_exact_f1": 0.5,
				"skills_coverage": 3.0,
				"text_":           1.0,
				"pref_":           1.0,
				"pref_salary":     10.0,
				"cultural_":       1.0,
				"experience_":     1.0,
			},
		},
		Geo: Geo{
			Mode:       GeoMode(getEnv("GEO_MODE", string(GeoModeHybrid))),
			DailyQuota: getEnvInt("GEO_DAILY_QUOTA", 2500),
		},
		Cache: Cache{
			LocalSize:   getEnvInt64("CACHE_LOCAL_SIZE", 10_000),
			DefaultTTL:  getEnvDuration("CACHE_DEFAULT_TTL", time.Hour),
			BackendPath: getEnv("CACHE_BACKEND_PATH", "./data/cache"),
		},
		Queue: map[Priority]QueuePolicy{
			PriorityPremium: {
				Timeout:    getEnvDuration("QUEUE_PREMIUM_TIMEOUT", 10*time.Minute),
				ResultTTL:  getEnvDuration("QUEUE_PREMIUM_RESULT_TTL", 24*time.Hour),
				MaxRetries: getEnvInt("QUEUE_PREMIUM_MAX_RETRIES", 5),
			},
			PriorityStandard: {
				Timeout:    getEnvDuration("QUEUE_STANDARD_TIMEOUT", 5*time.Minute),
				ResultTTL:  getEnvDuration("QUEUE_STANDARD_RESULT_TTL", 12*time.Hour),
				MaxRetries: getEnvInt("QUEUE_STANDARD_MAX_RETRIES", 3),
			},
			PriorityBatch: {
				Timeout:    getEnvDuration("QUEUE_BATCH_TIMEOUT", 30*time.Minute),
				ResultTTL:  getEnvDuration("QUEUE_BATCH_RESULT_TTL", 48*time.Hour),
				MaxRetries: getEnvInt("QUEUE_BATCH_MAX_RETRIES", 2),
			},
		},
		Worker: Worker{
			PoolSize:      poolSize,
			Priorities:    []Priority{PriorityPremium, PriorityStandard, PriorityBatch},
			ShutdownGrace: getEnvDuration("WORKER_SHUTDOWN_GRACE", 30*time.Second),
		},
		Circuit: map[string]CircuitPolicy{
			"geo": {
				Threshold:       getEnvInt("CIRCUIT_GEO_THRESHOLD", 5),
				Timeout:         getEnvDuration("CIRCUIT_GEO_TIMEOUT", 30*time.Second),
				SuccessesNeeded: getEnvInt("CIRCUIT_GEO_SUCCESSES_NEEDED", 2),
			},
			"embeddings": {
				Threshold:       getEnvInt("CIRCUIT_EMBEDDINGS_THRESHOLD", 5),
				Timeout:         getEnvDuration("CIRCUIT_EMBEDDINGS_TIMEOUT", 30*time.Second),
				SuccessesNeeded: getEnvInt("CIRCUIT_EMBEDDINGS_SUCCESSES_NEEDED", 2),
			},
			"cache": {
				Threshold:       getEnvInt("CIRCUIT_CACHE_THRESHOLD", 5),
				Timeout:         getEnvDuration("CIRCUIT_CACHE_TIMEOUT", 30*time.Second),
				SuccessesNeeded: getEnvInt("CIRCUIT_CACHE_SUCCESSES_NEEDED", 2),
			},
			"webhook": {
				Threshold:       getEnvInt("CIRCUIT_WEBHOOK_THRESHOLD", 5),
				Timeout:         getEnvDuration("CIRCUIT_WEBHOOK_TIMEOUT", 30*time.Second),
				SuccessesNeeded: getEnvInt("CIRCUIT_WEBHOOK_SUCCESSES_NEEDED", 2),
			},
		},
		Retry: map[string]RetryPolicy{
			"default": {
				MaxRetries: getEnvInt("RETRY_DEFAULT_MAX_RETRIES", 3),
				BaseDelay:  getEnvDuration("RETRY_DEFAULT_BASE_DELAY", 200*time.Millisecond),
				MaxDelay:   getEnvDuration("RETRY_DEFAULT_MAX_DELAY", 10*time.Second),
			},
		},
		Algorithms: Algorithms{
			Enabled:     parseEnabledSet(getEnv("ALGORITHMS_ENABLED", "rule,ml,semantic")),
			MLModelPath: getEnv("ALGORITHMS_ML_MODEL_PATH", ""),
		},
		Embeddings: Embeddings{
			Enabled: getEnv("EMBEDDINGS_ENABLED", "false") == "true",
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("EMBEDDINGS_MODEL", "gemini-embedding-001"),
		},
		FeatureVersion:     getEnv("FEATURE_VERSION", "v1"),
		QueueHighWaterMark: getEnvInt("QUEUE_HIGH_WATER_MARK", 10_000),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func parseEnabledSet(raw string) map[string]bool {
	set := make(map[string]bool)
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			set[name] = true
		}
	}
	return set
}

// getEnv reads an environment variable, falling back to defaultValue when unset.
func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "Warning: invalid int for %s=%q, using default %d\n", key, v, defaultValue)
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "Warning: invalid int64 for %s=%q, using default %d\n", key, v, defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		fmt.Fprintf(os.Stderr, "Warning: invalid float for %s=%q, using default %v\n", key, v, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		fmt.Fprintf(os.Stderr, "Warning: invalid duration for %s=%q, using default %s\n", key, v, defaultValue)
	}
	return defaultValue
}
