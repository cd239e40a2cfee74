package config

import "time"

// UpstreamConfig holds credentials and the shared retry policy for the
// outbound movie catalog (TMDB) and trailer (YouTube) services.
type UpstreamConfig struct {
	TMDBAccessToken string
	TMDBAPIKey      string
	TMDBBaseURL     string
	TMDBLanguage    string
	YouTubeAPIKey   string
	YouTubeBaseURL  string

	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	AttemptTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
}

// LoadUpstreamConfig reads the catalog and trailer settings.  The TMDB
// read access token is required; everything else has a default.
func LoadUpstreamConfig() UpstreamConfig {
	cfg := UpstreamConfig{
		TMDBAccessToken:   must("TMDB_ACCESS_TOKEN"),
		TMDBAPIKey:        envStr("TMDB_API_KEY", ""),
		TMDBBaseURL:       envStr("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBLanguage:      envStr("TMDB_LANGUAGE", ""),
		YouTubeAPIKey:     envStr("YOUTUBE_API_KEY", ""),
		YouTubeBaseURL:    envStr("YOUTUBE_BASE_URL", "https://www.googleapis.com/youtube/v3"),
		MaxAttempts:       envInt("UPSTREAM_MAX_ATTEMPTS", 3),
		InitialBackoff:    envDur("UPSTREAM_INITIAL_BACKOFF", 2*time.Second),
		MaxBackoff:        envDur("UPSTREAM_MAX_BACKOFF", 10*time.Second),
		AttemptTimeout:    envDur("UPSTREAM_ATTEMPT_TIMEOUT", 10*time.Second),
		RequestsPerSecond: float64(envInt("UPSTREAM_RPS", 40)),
		Burst:             envInt("UPSTREAM_BURST", 20),
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return cfg
}
