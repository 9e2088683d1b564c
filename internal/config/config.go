package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Archive store drivers.
const (
	StoreNone     = "none"
	StorePostgres = "postgres"
	StoreMySQL    = "mysql"
)

type Config struct {
	Port                  string   `mapstructure:"PORT"`
	Env                   string   `mapstructure:"ENV"`
	OrthancURL            string   `mapstructure:"ORTHANC_URL"`
	OrthancUsername       string   `mapstructure:"ORTHANC_USERNAME"`
	OrthancPassword       string   `mapstructure:"ORTHANC_PASSWORD"`
	OrthancTimeoutSeconds int      `mapstructure:"ORTHANC_TIMEOUT_SECONDS"`
	OrthancMaxRPS         float64  `mapstructure:"ORTHANC_MAX_RPS"`
	ExtractConcurrency    int      `mapstructure:"EXTRACT_CONCURRENCY"`
	MaxContentDepth       int      `mapstructure:"MAX_CONTENT_DEPTH"`
	StoreDriver           string   `mapstructure:"STORE_DRIVER"`
	DatabaseURL           string   `mapstructure:"DATABASE_URL"`
	MySQLDSN              string   `mapstructure:"MYSQL_DSN"`
	DBMaxConns            int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins           []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS          float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int      `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeoutSeconds int      `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	BodyLimit             string   `mapstructure:"BODY_LIMIT"`
}

var keys = []string{
	"PORT", "ENV",
	"ORTHANC_URL", "ORTHANC_USERNAME", "ORTHANC_PASSWORD", "ORTHANC_TIMEOUT_SECONDS", "ORTHANC_MAX_RPS",
	"EXTRACT_CONCURRENCY", "MAX_CONTENT_DEPTH",
	"STORE_DRIVER", "DATABASE_URL", "MYSQL_DSN", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT_SECONDS", "BODY_LIMIT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("ORTHANC_URL", "http://localhost:8042")
	v.SetDefault("ORTHANC_TIMEOUT_SECONDS", 30)
	v.SetDefault("ORTHANC_MAX_RPS", 0)
	v.SetDefault("EXTRACT_CONCURRENCY", 4)
	v.SetDefault("MAX_CONTENT_DEPTH", 32)
	v.SetDefault("STORE_DRIVER", StoreNone)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 120)
	v.SetDefault("BODY_LIMIT", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = StoreNone
	}
	cfg.OrthancURL = strings.TrimRight(strings.TrimSpace(cfg.OrthancURL), "/")

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) OrthancTimeout() time.Duration {
	return time.Duration(c.OrthancTimeoutSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Validate checks driver/DSN consistency and that numeric limits are usable.
func (c *Config) Validate() error {
	if c.OrthancURL == "" {
		return fmt.Errorf("ORTHANC_URL is required")
	}
	if !strings.HasPrefix(c.OrthancURL, "http://") && !strings.HasPrefix(c.OrthancURL, "https://") {
		return fmt.Errorf("ORTHANC_URL must be an http(s) URL, got %q", c.OrthancURL)
	}

	switch c.StoreDriver {
	case StoreNone:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StorePostgres)
		}
	case StoreMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required when STORE_DRIVER is %q", StoreMySQL)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q, %q or %q, got %q", StoreNone, StorePostgres, StoreMySQL, c.StoreDriver)
	}

	if c.OrthancTimeoutSeconds <= 0 {
		return fmt.Errorf("ORTHANC_TIMEOUT_SECONDS must be positive, got %d", c.OrthancTimeoutSeconds)
	}
	if c.OrthancMaxRPS < 0 {
		return fmt.Errorf("ORTHANC_MAX_RPS must not be negative, got %v", c.OrthancMaxRPS)
	}
	if c.ExtractConcurrency <= 0 {
		return fmt.Errorf("EXTRACT_CONCURRENCY must be positive, got %d", c.ExtractConcurrency)
	}
	if c.MaxContentDepth <= 0 {
		return fmt.Errorf("MAX_CONTENT_DEPTH must be positive, got %d", c.MaxContentDepth)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.RequestTimeoutSeconds)
	}
	if c.StoreDriver != StoreNone && (c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns) {
		return fmt.Errorf("DB_MIN_CONNS (%d) and DB_MAX_CONNS (%d) must satisfy 0 <= min <= max, max > 0", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
