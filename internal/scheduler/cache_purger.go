// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stwalsh4118/rainyield/internal/logger"
	"github.com/stwalsh4118/rainyield/internal/repository"
)

// purgeTimeout bounds a single purge run.
const purgeTimeout = 2 * time.Minute

// CachePurger periodically deletes expired climatology cache rows.
type CachePurger struct {
	repo     repository.ClimatologyRepository
	log      *logger.Logger
	cron     *cron.Cron
	schedule string
	now      func() time.Time
	running  int32
}

// NewCachePurger creates a purger running on the given cron schedule
// (standard five-field syntax or descriptors such as "@hourly").
func NewCachePurger(repo repository.ClimatologyRepository, schedule string, log *logger.Logger) *CachePurger {
	log = log.Component("cache_purger")
	return &CachePurger{
		repo:     repo,
		log:      log,
		cron:     cron.New(cron.WithLogger(cronLogger{log: log})),
		schedule: schedule,
		now:      time.Now,
	}
}

// Start registers the purge job and starts the scheduler.
func (p *CachePurger) Start() error {
	if _, err := p.cron.AddFunc(p.schedule, func() {
		if _, err := p.RunOnce(context.Background()); err != nil {
			p.log.Error("Cache purge failed", err, nil)
		}
	}); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", p.schedule, err)
	}

	p.cron.Start()
	p.log.Info("Cache purger started", map[string]interface{}{
		"schedule": p.schedule,
	})
	return nil
}

// Stop stops the scheduler and waits for a running purge to finish or ctx to end.
func (p *CachePurger) Stop(ctx context.Context) {
	done := p.cron.Stop()
	select {
	case <-done.Done():
		p.log.Info("Cache purger stopped", nil)
	case <-ctx.Done():
		p.log.Warn("Cache purger did not stop in time", nil)
	}
}

// RunOnce deletes every expired row. A run that starts while another is
// still in progress is skipped and reports zero rows.
func (p *CachePurger) RunOnce(ctx context.Context) (int64, error) {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		p.log.Warn("Previous purge still running, skipping this run", nil)
		return 0, nil
	}
	defer atomic.StoreInt32(&p.running, 0)

	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	start := time.Now()
	removed, err := p.repo.PurgeExpired(ctx, p.now())
	if err != nil {
		return 0, err
	}

	p.log.Info("Expired cache entries purged", map[string]interface{}{
		"removed":     removed,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return removed, nil
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keyValueFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, err, keyValueFields(keysAndValues))
}

func keyValueFields(keysAndValues []interface{}) map[string]interface{} {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
