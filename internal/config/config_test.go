package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadUpstreamConfigDefaults(t *testing.T) {
	t.Setenv("TMDB_ACCESS_TOKEN", "token")

	cfg := LoadUpstreamConfig()

	assert.Equal(t, "token", cfg.TMDBAccessToken)
	assert.Equal(t, "https://api.themoviedb.org/3", cfg.TMDBBaseURL)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.InitialBackoff)
	assert.Equal(t, 10*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 10*time.Second, cfg.AttemptTimeout)
}

func TestLoadUpstreamConfigClampsPolicy(t *testing.T) {
	t.Setenv("TMDB_ACCESS_TOKEN", "token")
	t.Setenv("UPSTREAM_MAX_ATTEMPTS", "0")
	t.Setenv("UPSTREAM_INITIAL_BACKOFF", "5s")
	t.Setenv("UPSTREAM_MAX_BACKOFF", "1s")

	cfg := LoadUpstreamConfig()

	assert.Equal(t, 1, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.MaxBackoff)
}

func TestLoadRateLimitConfigOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "25")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()

	assert.Equal(t, 25, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL, "ttl is raised to five refill intervals")
}

func TestLoadCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")

	cfg := LoadCacheConfig()

	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.Len(t, cfg.Methods, 2)
	assert.Equal(t, "viewer_route_query", cfg.KeyStrategy)
}

func TestEnvBool(t *testing.T) {
	t.Setenv("FLAG_ON", "yes")
	t.Setenv("FLAG_OFF", "off")
	t.Setenv("FLAG_BAD", "maybe")

	assert.True(t, envBool("FLAG_ON", false))
	assert.False(t, envBool("FLAG_OFF", true))
	assert.True(t, envBool("FLAG_BAD", true))
	assert.False(t, envBool("FLAG_MISSING", false))
}

func TestStorageConfigEnabled(t *testing.T) {
	assert.False(t, StorageConfig{}.Enabled())
	assert.True(t, StorageConfig{Bucket: "b", AccessKey: "a", SecretKey: "s"}.Enabled())
}
