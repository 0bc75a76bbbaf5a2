package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides. Nested keys use "__",
// e.g. DISPATCH_DIRECTIONS__API_KEY sets directions.api_key.
const EnvPrefix = "DISPATCH_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Directions DirectionsConfig `koanf:"directions"`
	Cache      CacheConfig      `koanf:"cache"`
	Logging    LoggingConfig    `koanf:"logging"`
	Seed       SeedConfig       `koanf:"seed"`
}

type ServerConfig struct {
	Port              string        `koanf:"port"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// DirectionsConfig configures the external directions provider.
// Provider is "google" or "mock". An empty APIKey disables the google
// provider; optimization then always uses the nearest-neighbor heuristic.
type DirectionsConfig struct {
	Provider       string        `koanf:"provider"`
	APIKey         string        `koanf:"api_key"`
	BaseURL        string        `koanf:"base_url"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxWaypoints   int           `koanf:"max_waypoints"`
	MaxConcurrency int           `koanf:"max_concurrency"`
}

type CacheConfig struct {
	// Backend is one of "none", "sql" or "redis".
	Backend   string        `koanf:"backend"`
	RedisAddr string        `koanf:"redis_addr"`
	RedisDB   int           `koanf:"redis_db"`
	TTL       time.Duration `koanf:"ttl"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

type SeedConfig struct {
	Path string `koanf:"path"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:              "8080",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Directions: DirectionsConfig{
			Provider:       "google",
			BaseURL:        "https://maps.googleapis.com",
			Timeout:        10 * time.Second,
			MaxWaypoints:   27,
			MaxConcurrency: 4,
		},
		Cache: CacheConfig{
			Backend: "none",
			TTL:     7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Seed: SeedConfig{
			Path: "data/seeds/dispatch.json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// DISPATCH_* environment variables, in that order of precedence.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config: read %q: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load config: environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("load config: unmarshal: %w", err)
	}

	if cfg.Directions.APIKey == "" {
		cfg.Directions.APIKey = strings.TrimSpace(os.Getenv("GOOGLE_MAPS_API_KEY"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return &cfg, nil
}

// Validate checks values that have no safe fallback.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server.port is required")
	}
	if c.Directions.MaxWaypoints < 2 {
		return fmt.Errorf("directions.max_waypoints must be at least 2, got %d", c.Directions.MaxWaypoints)
	}
	if c.Directions.MaxConcurrency < 1 {
		return fmt.Errorf("directions.max_concurrency must be positive, got %d", c.Directions.MaxConcurrency)
	}
	if c.Directions.Timeout <= 0 {
		return errors.New("directions.timeout must be positive")
	}

	switch c.Directions.Provider {
	case "google", "mock":
	default:
		return fmt.Errorf("unknown directions provider %q", c.Directions.Provider)
	}

	switch c.Cache.Backend {
	case "none", "sql":
	case "redis":
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return errors.New("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}

	return nil
}

