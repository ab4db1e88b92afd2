// Package quota rate-guards discovery ingestion against provider limits.
package quota

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Default limits, matching the free tiers of the upstream discovery sources.
const (
	DefaultPerMinute = 60
	DefaultPerDay    = 5000
)

// ActivityCounter estimates recent discovery activity. The seed store
// provides it by counting recently created seed rows.
type ActivityCounter interface {
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}

// Guard approximates provider-quota enforcement by counting recent seed
// activity. It fails open: a counting error logs a warning and allows the
// operation, since blocking ingestion on a broken counter is worse than
// briefly exceeding an estimate.
type Guard struct {
	counter   ActivityCounter
	perMinute int
	perDay    int
	failOpen  bool
	now       func() time.Time
}

// NewGuard wires a quota guard. Non-positive limits fall back to defaults.
func NewGuard(counter ActivityCounter, perMinute, perDay int, failOpen bool) *Guard {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if perDay <= 0 {
		perDay = DefaultPerDay
	}
	return &Guard{
		counter:   counter,
		perMinute: perMinute,
		perDay:    perDay,
		failOpen:  failOpen,
		now:       time.Now,
	}
}

// Allow reports whether an ingestion of n new seeds fits within the
// per-minute and per-day estimates.
func (g *Guard) Allow(ctx context.Context, n int) bool {
	now := g.now().UTC()

	lastMinute, err := g.counter.CountCreatedSince(ctx, now.Add(-time.Minute))
	if err != nil {
		return g.failedCount(err)
	}
	if lastMinute+n > g.perMinute {
		zap.L().Warn("quota: per-minute limit reached",
			zap.Int("recent", lastMinute),
			zap.Int("requested", n),
			zap.Int("limit", g.perMinute))
		return false
	}

	// Per-day counts against the UTC calendar day, not a rolling window.
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	lastDay, err := g.counter.CountCreatedSince(ctx, startOfDay)
	if err != nil {
		return g.failedCount(err)
	}
	if lastDay+n > g.perDay {
		zap.L().Warn("quota: per-day limit reached",
			zap.Int("recent", lastDay),
			zap.Int("requested", n),
			zap.Int("limit", g.perDay))
		return false
	}

	return true
}

func (g *Guard) failedCount(err error) bool {
	if g.failOpen {
		zap.L().Warn("quota: activity count failed, allowing", zap.Error(err))
		return true
	}
	zap.L().Warn("quota: activity count failed, denying", zap.Error(err))
	return false
}
