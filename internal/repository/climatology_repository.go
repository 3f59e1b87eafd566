package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/rainyield/internal/database"
	"github.com/stwalsh4118/rainyield/internal/models"
)

// ClimatologyRepository defines the data access operations for cached climatology lookups.
type ClimatologyRepository interface {
	// EnsureSchema creates the cache table if it does not exist.
	EnsureSchema(ctx context.Context) error

	// Get returns the unexpired record for key.
	// Returns nil, nil if there is no such record (not an error).
	Get(ctx context.Context, key string) (*models.ClimatologyRecord, error)

	// Put inserts or replaces the record with the same key.
	Put(ctx context.Context, record models.ClimatologyRecord) error

	// PurgeExpired deletes records that expired before the given time and
	// returns how many were removed.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// climatologyRepository is the Postgres implementation of ClimatologyRepository.
type climatologyRepository struct {
	db *database.Database
}

// NewClimatologyRepository creates a new instance of ClimatologyRepository.
func NewClimatologyRepository(db *database.Database) ClimatologyRepository {
	return &climatologyRepository{
		db: db,
	}
}

const createClimatologyCacheTable = `
	CREATE TABLE IF NOT EXISTS climatology_cache (
		cache_key     TEXT PRIMARY KEY,
		parameter     TEXT NOT NULL,
		latitude      DOUBLE PRECISION NOT NULL,
		longitude     DOUBLE PRECISION NOT NULL,
		monthly_rates JSONB NOT NULL,
		fetched_at    TIMESTAMPTZ NOT NULL,
		expires_at    TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_climatology_cache_expires_at
		ON climatology_cache (expires_at);
`

func (r *climatologyRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, createClimatologyCacheTable); err != nil {
		return fmt.Errorf("failed to create climatology_cache table: %w", err)
	}
	return nil
}

// Get looks up an unexpired cache entry by key.
func (r *climatologyRepository) Get(ctx context.Context, key string) (*models.ClimatologyRecord, error) {
	query := `
		SELECT
			cache_key,
			parameter,
			latitude,
			longitude,
			monthly_rates,
			fetched_at,
			expires_at
		FROM climatology_cache
		WHERE cache_key = $1 AND expires_at > NOW()
	`

	var record models.ClimatologyRecord
	var ratesJSON []byte

	err := r.db.Pool.QueryRow(ctx, query, key).Scan(
		&record.Key,
		&record.Parameter,
		&record.Lat,
		&record.Lng,
		&ratesJSON,
		&record.FetchedAt,
		&record.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query climatology cache (key=%s): %w", key, err)
	}

	if err := json.Unmarshal(ratesJSON, &record.Rates); err != nil {
		return nil, fmt.Errorf("failed to parse cached monthly rates (key=%s): %w", key, err)
	}

	return &record, nil
}

// Put upserts a cache entry.
func (r *climatologyRepository) Put(ctx context.Context, record models.ClimatologyRecord) error {
	ratesJSON, err := json.Marshal(record.Rates)
	if err != nil {
		return fmt.Errorf("failed to encode monthly rates (key=%s): %w", record.Key, err)
	}

	query := `
		INSERT INTO climatology_cache (
			cache_key, parameter, latitude, longitude, monthly_rates, fetched_at, expires_at
		) VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		ON CONFLICT (cache_key) DO UPDATE SET
			parameter     = EXCLUDED.parameter,
			latitude      = EXCLUDED.latitude,
			longitude     = EXCLUDED.longitude,
			monthly_rates = EXCLUDED.monthly_rates,
			fetched_at    = EXCLUDED.fetched_at,
			expires_at    = EXCLUDED.expires_at
	`

	_, err = r.db.Pool.Exec(ctx, query,
		record.Key,
		record.Parameter,
		record.Lat,
		record.Lng,
		string(ratesJSON),
		record.FetchedAt,
		record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store climatology cache entry (key=%s): %w", record.Key, err)
	}
	return nil
}

// PurgeExpired removes entries whose expiry is before the given time.
func (r *climatologyRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM climatology_cache WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired climatology cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
