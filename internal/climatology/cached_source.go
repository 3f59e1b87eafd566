package climatology

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/stwalsh4118/rainyield/internal/logger"
	"github.com/stwalsh4118/rainyield/internal/models"
	"github.com/stwalsh4118/rainyield/internal/repository"
)

// CachedSource serves lookups from the climatology cache and falls through to
// the next source on a miss. Only successful lookups are stored. Cache errors
// are logged and never fail a lookup.
type CachedSource struct {
	repo      repository.ClimatologyRepository
	next      Source
	log       *logger.Logger
	now       func() time.Time
	parameter string
	ttl       time.Duration
}

// NewCachedSource wraps next with a cache backed by repo.
func NewCachedSource(repo repository.ClimatologyRepository, next Source, parameter string, ttl time.Duration, log *logger.Logger) *CachedSource {
	return &CachedSource{
		repo:      repo,
		next:      next,
		log:       log.Component("climatology_cache"),
		now:       time.Now,
		parameter: parameter,
		ttl:       ttl,
	}
}

// CacheKey returns the cache key for point. Coordinates are rounded to two
// decimal places (about 1 km), well inside the resolution of the source grid.
func CacheKey(parameter string, point models.GeoPoint) string {
	return fmt.Sprintf("%s:%.2f:%.2f", parameter, roundCoord(point.Lat), roundCoord(point.Lng))
}

func roundCoord(v float64) float64 {
	// +0 folds -0 into 0 so keys never carry "-0.00"
	return math.Round(v*100)/100 + 0
}

// MonthlyRates implements Source.
func (s *CachedSource) MonthlyRates(ctx context.Context, point models.GeoPoint) Result {
	key := CacheKey(s.parameter, point)

	record, err := s.repo.Get(ctx, key)
	if err != nil {
		s.log.Warn("Climatology cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	} else if record != nil && len(record.Rates) > 0 {
		s.log.Debug("Climatology cache hit", map[string]interface{}{"key": key})
		return Result{Rates: record.Rates, Cached: true}
	}

	result := s.next.MonthlyRates(ctx, point)
	if !result.OK() {
		return result
	}

	fetchedAt := s.now().UTC()
	err = s.repo.Put(ctx, models.ClimatologyRecord{
		Key:       key,
		Parameter: s.parameter,
		Lat:       roundCoord(point.Lat),
		Lng:       roundCoord(point.Lng),
		Rates:     result.Rates,
		FetchedAt: fetchedAt,
		ExpiresAt: fetchedAt.Add(s.ttl),
	})
	if err != nil {
		s.log.Warn("Climatology cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	return result
}
