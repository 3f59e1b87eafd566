package database

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stwalsh4118/rainyield/internal/config"
)

// Test configuration for local PostgreSQL
func getTestConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "host.docker.internal"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		Name:     getEnvOrDefault("DB_NAME", "rainyield"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		PoolMin:  1,
		PoolMax:  4,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// connectOrSkip opens a pool against the test database, skipping the test
// in short mode or when no database is reachable.
func connectOrSkip(t *testing.T) *Database {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	db, err := NewPostgresPool(ctx, getTestConfig())
	if err != nil {
		t.Skipf("Skipping integration test, database unavailable: %v", err)
	}
	return db
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host: "db", Port: "5433", Name: "cache", User: "app", Password: "secret",
	})

	if !strings.HasPrefix(dsn, "postgres://app:secret@db:5433/cache?") {
		t.Errorf("unexpected DSN prefix: %s", dsn)
	}
	if !strings.Contains(dsn, "application_name=rainyield") {
		t.Errorf("expected application name in DSN: %s", dsn)
	}
}

func TestNilDatabase(t *testing.T) {
	var db *Database

	if err := db.Ping(context.Background()); err == nil {
		t.Error("Expected ping on nil database to fail")
	}
	if db.Stats() != nil {
		t.Error("Expected nil stats for nil database")
	}
	// Close must not panic
	db.Close()
	(&Database{}).Close()
}

func TestNewPostgresPool_InvalidHost(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cfg := getTestConfig()
	cfg.Host = "invalid-host-that-does-not-exist.invalid"

	if _, err := NewPostgresPool(ctx, cfg); err == nil {
		t.Error("Expected error when connecting to invalid host")
	}
}

func TestPing_Success(t *testing.T) {
	db := connectOrSkip(t)
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestStats(t *testing.T) {
	db := connectOrSkip(t)
	defer db.Close()

	stats := db.Stats()
	if stats == nil {
		t.Fatal("Expected stats to be available")
	}
	if stats.MaxConns() != int32(getTestConfig().PoolMax) {
		t.Errorf("Expected MaxConns %d, got %d", getTestConfig().PoolMax, stats.MaxConns())
	}
}

func TestPing_AfterClose(t *testing.T) {
	db := connectOrSkip(t)
	db.Close()

	if err := db.Ping(context.Background()); err == nil {
		t.Error("Expected ping to fail after pool is closed")
	}
}
