package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the search service.
type Config struct {
	DB        DBConfig
	Redis     RedisConfig
	TMDB      TMDBConfig
	Search    SearchConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Port      string
}

// DBConfig holds PostgreSQL configuration.
type DBConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SSLRootCert string
}

// DSN returns the PostgreSQL connection string.
func (d DBConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
	if d.SSLRootCert != "" {
		dsn += fmt.Sprintf(" sslrootcert=%s", d.SSLRootCert)
	}
	return dsn
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TMDBConfig holds TMDB API configuration.
type TMDBConfig struct {
	APIKey    string
	BaseURL   string
	Language  string
	Timeout   time.Duration
	RateLimit float64
}

// SearchConfig tunes search sessions.
type SearchConfig struct {
	Debounce       time.Duration
	LookupTimeout  time.Duration
	HistoryLimit   int
	HistoryBackend string
	Live           bool
	CacheTTL       time.Duration
	SessionIdleTTL time.Duration
}

// AuthConfig controls how callers are identified.
type AuthConfig struct {
	JWTSecret      string
	AllowAnonymous bool
}

// RateLimitConfig holds the per-IP request window.
type RateLimitConfig struct {
	Max           int
	WindowSeconds int
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level  string
	Format string
}

const (
	HistoryBackendMemory   = "memory"
	HistoryBackendRedis    = "redis"
	HistoryBackendPostgres = "postgres"
)

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	var p parser

	cfg := &Config{
		DB: DBConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        p.int("DB_PORT", 5432),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "search_service"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			SSLRootCert: getEnv("DB_SSLROOTCERT", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       p.int("REDIS_DB", 0),
		},
		TMDB: TMDBConfig{
			APIKey:    getEnv("TMDB_API_KEY", ""),
			BaseURL:   getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
			Language:  getEnv("TMDB_LANGUAGE", "en-US"),
			Timeout:   p.duration("TMDB_TIMEOUT", 15*time.Second),
			RateLimit: p.float("TMDB_RATE_LIMIT", 20),
		},
		Search: SearchConfig{
			Debounce:       p.duration("SEARCH_DEBOUNCE", 500*time.Millisecond),
			LookupTimeout:  p.duration("SEARCH_LOOKUP_TIMEOUT", 10*time.Second),
			HistoryLimit:   p.int("SEARCH_HISTORY_LIMIT", 10),
			HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", HistoryBackendMemory)),
			Live:           p.bool("SEARCH_LIVE", false),
			CacheTTL:       p.duration("SEARCH_CACHE_TTL", 5*time.Minute),
			SessionIdleTTL: p.duration("SEARCH_SESSION_IDLE_TTL", 30*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
			AllowAnonymous: p.bool("AUTH_ALLOW_ANONYMOUS", false),
		},
		RateLimit: RateLimitConfig{
			Max:           p.int("RATE_LIMIT_MAX", 100),
			WindowSeconds: p.int("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Port: getEnv("SERVER_PORT", "8084"),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser records the first malformed variable so Load can report it.
type parser struct {
	err error
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, raw, err)
	}
}

func (p *parser) int(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) float(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) bool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}
