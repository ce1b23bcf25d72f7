package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"WORKER_POOL_SIZE", "WEIGHT_CATEGORY_SKILLS", "WEIGHT_CATEGORY_CULTURAL",
		"WEIGHT_CATEGORY_TEXT", "WEIGHT_CATEGORY_PREF", "WEIGHT_CATEGORY_EXPERIENCE",
		"GEO_MODE", "GEO_DAILY_QUOTA", "CACHE_LOCAL_SIZE", "CACHE_DEFAULT_TTL",
		"QUEUE_PREMIUM_TIMEOUT", "QUEUE_PREMIUM_MAX_RETRIES", "ALGORITHMS_ENABLED",
		"ALGORITHMS_ML_MODEL_PATH", "EMBEDDINGS_ENABLED", "FEATURE_VERSION",
		"RETRY_DEFAULT_MAX_RETRIES", "RETRY_DEFAULT_BASE_DELAY", "RETRY_DEFAULT_MAX_DELAY",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg := Load()

	assert.Equal(t, 0.40, cfg.Weights.Categories["skills"])
	assert.Equal(t, 0.20, cfg.Weights.Categories["cultural"])
	assert.Equal(t, GeoModeHybrid, cfg.Geo.Mode)
	assert.Equal(t, 2500, cfg.Geo.DailyQuota)
	assert.Equal(t, int64(10_000), cfg.Cache.LocalSize)
	assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
	assert.Equal(t, "v1", cfg.FeatureVersion)

	premium := cfg.Queue[PriorityPremium]
	assert.Equal(t, 10*time.Minute, premium.Timeout)
	assert.Equal(t, 24*time.Hour, premium.ResultTTL)
	assert.Equal(t, 5, premium.MaxRetries)

	standard := cfg.Queue[PriorityStandard]
	assert.Equal(t, 5*time.Minute, standard.Timeout)
	assert.Equal(t, 3, standard.MaxRetries)

	batch := cfg.Queue[PriorityBatch]
	assert.Equal(t, 30*time.Minute, batch.Timeout)
	assert.Equal(t, 2, batch.MaxRetries)

	assert.True(t, cfg.Algorithms.Enabled["rule"])
	assert.True(t, cfg.Algorithms.Enabled["ml"])
	assert.True(t, cfg.Algorithms.Enabled["semantic"])
	assert.False(t, cfg.Embeddings.Enabled)

	geoBreaker := cfg.Circuit["geo"]
	assert.Equal(t, 5, geoBreaker.Threshold)
	assert.Equal(t, 30*time.Second, geoBreaker.Timeout)
	assert.Equal(t, 2, geoBreaker.SuccessesNeeded)

	retry := cfg.Retry["default"]
	assert.Equal(t, 3, retry.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, retry.BaseDelay)
	assert.Equal(t, 10*time.Second, retry.MaxDelay)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	os.Setenv("GEO_MODE", "api-only")
	os.Setenv("GEO_DAILY_QUOTA", "100")
	os.Setenv("ALGORITHMS_ENABLED", "rule")
	os.Setenv("EMBEDDINGS_ENABLED", "true")
	defer clearConfigEnv(t)

	cfg := Load()

	assert.Equal(t, GeoModeAPIOnly, cfg.Geo.Mode)
	assert.Equal(t, 100, cfg.Geo.DailyQuota)
	assert.True(t, cfg.Algorithms.Enabled["rule"])
	assert.False(t, cfg.Algorithms.Enabled["ml"])
	assert.True(t, cfg.Embeddings.Enabled)
}

func TestGetEnv_FallsBackToDefault(t *testing.T) {
	os.Unsetenv("TEST_CONFIG_VAR")
	assert.Equal(t, "fallback", getEnv("TEST_CONFIG_VAR", "fallback"))

	os.Setenv("TEST_CONFIG_VAR", "set")
	defer os.Unsetenv("TEST_CONFIG_VAR")
	assert.Equal(t, "set", getEnv("TEST_CONFIG_VAR", "fallback"))
}

func TestGetEnvDuration_InvalidFallsBackToDefault(t *testing.T) {
	os.Setenv("TEST_CONFIG_DURATION", "not-a-duration")
	defer os.Unsetenv("TEST_CONFIG_DURATION")

	assert.Equal(t, time.Minute, getEnvDuration("TEST_CONFIG_DURATION", time.Minute))
}

func TestParseEnabledSet(t *testing.T) {
	set := parseEnabledSet("rule, ml ,,semantic")
	assert.True(t, set["rule"])
	assert.True(t, set["ml"])
	assert.True(t, set["semantic"])
	assert.Len(t, set, 3)
}
