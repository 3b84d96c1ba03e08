package config

import "fmt"

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if c.TMDB.APIKey == "" {
		return fmt.Errorf("TMDB_API_KEY is required")
	}
	if c.TMDB.RateLimit <= 0 {
		return fmt.Errorf("TMDB_RATE_LIMIT must be > 0 (got %v)", c.TMDB.RateLimit)
	}
	if c.TMDB.Timeout <= 0 {
		return fmt.Errorf("TMDB_TIMEOUT must be > 0 (got %s)", c.TMDB.Timeout)
	}

	if err := c.Search.validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if c.Auth.JWTSecret == "" && !c.Auth.AllowAnonymous {
		return fmt.Errorf("AUTH_JWT_SECRET is required unless AUTH_ALLOW_ANONYMOUS=true")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}

	if c.RateLimit.Max <= 0 || c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW_SECONDS must be > 0")
	}

	return nil
}

func (s SearchConfig) validate() error {
	if s.Debounce < 0 {
		return fmt.Errorf("SEARCH_DEBOUNCE must be >= 0 (got %s)", s.Debounce)
	}
	if s.LookupTimeout <= 0 {
		return fmt.Errorf("SEARCH_LOOKUP_TIMEOUT must be > 0 (got %s)", s.LookupTimeout)
	}
	if s.HistoryLimit < 1 {
		return fmt.Errorf("SEARCH_HISTORY_LIMIT must be >= 1 (got %d)", s.HistoryLimit)
	}
	if s.SessionIdleTTL <= 0 {
		return fmt.Errorf("SEARCH_SESSION_IDLE_TTL must be > 0 (got %s)", s.SessionIdleTTL)
	}
	switch s.HistoryBackend {
	case HistoryBackendMemory, HistoryBackendRedis, HistoryBackendPostgres:
	default:
		return fmt.Errorf("HISTORY_BACKEND must be one of memory, redis, postgres (got %q)", s.HistoryBackend)
	}
	return nil
}
