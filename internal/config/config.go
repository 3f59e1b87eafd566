package config

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Climatology ClimatologyConfig
	Cache       CacheConfig
	Database    DatabaseConfig
	CORS        CORSConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// ClimatologyConfig holds settings for the rainfall climatology service.
type ClimatologyConfig struct {
	BaseURL           string
	Parameter         string
	Community         string
	Timeout           time.Duration
	FallbackMmPerYear float64
}

// CacheConfig controls the optional Postgres-backed climatology cache.
type CacheConfig struct {
	Enabled       bool
	TTL           time.Duration
	PurgeSchedule string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("CLIMATOLOGY_BASE_URL", "https://power.larc.nasa.gov")
	v.SetDefault("CLIMATOLOGY_PARAMETER", "PRECTOTCORR")
	v.SetDefault("CLIMATOLOGY_COMMUNITY", "RE")
	v.SetDefault("CLIMATOLOGY_TIMEOUT", "8s")
	v.SetDefault("RAINFALL_FALLBACK_MM", 1000.0)
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_TTL", "720h")
	v.SetDefault("CACHE_PURGE_SCHEDULE", "@hourly")
	v.SetDefault("DB_HOST", "host.docker.internal")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "rainyield")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 1)
	v.SetDefault("DB_POOL_MAX", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Climatology: ClimatologyConfig{
			BaseURL:           strings.TrimRight(v.GetString("CLIMATOLOGY_BASE_URL"), "/"),
			Parameter:         v.GetString("CLIMATOLOGY_PARAMETER"),
			Community:         v.GetString("CLIMATOLOGY_COMMUNITY"),
			Timeout:           v.GetDuration("CLIMATOLOGY_TIMEOUT"),
			FallbackMmPerYear: v.GetFloat64("RAINFALL_FALLBACK_MM"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			TTL:           v.GetDuration("CACHE_TTL"),
			PurgeSchedule: v.GetString("CACHE_PURGE_SCHEDULE"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
// Database settings are only checked when the climatology cache is enabled.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Climatology.BaseURL == "" {
		return fmt.Errorf("CLIMATOLOGY_BASE_URL is required")
	}
	if _, err := url.ParseRequestURI(c.Climatology.BaseURL); err != nil {
		return fmt.Errorf("CLIMATOLOGY_BASE_URL is not a valid URL: %w", err)
	}
	if c.Climatology.Parameter == "" {
		return fmt.Errorf("CLIMATOLOGY_PARAMETER is required")
	}
	if c.Climatology.Community == "" {
		return fmt.Errorf("CLIMATOLOGY_COMMUNITY is required")
	}
	if c.Climatology.Timeout <= 0 {
		return fmt.Errorf("CLIMATOLOGY_TIMEOUT must be positive")
	}
	if !(c.Climatology.FallbackMmPerYear > 0) || math.IsInf(c.Climatology.FallbackMmPerYear, 0) {
		return fmt.Errorf("RAINFALL_FALLBACK_MM must be a positive number")
	}

	if c.Cache.Enabled {
		if err := c.validateCache(); err != nil {
			return err
		}
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if _, err := cron.ParseStandard(c.Cache.PurgeSchedule); err != nil {
		return fmt.Errorf("CACHE_PURGE_SCHEDULE is invalid: %w", err)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
