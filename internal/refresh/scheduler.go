// Package refresh re-enqueues schools whose data has gone stale.
package refresh

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/crawl"
	"github.com/e-roy/find-a-flight-school-sub001/internal/school"
)

// DefaultStalenessDays is how old a school's newest snapshot may be before a
// refresh pass re-enqueues it.
const DefaultStalenessDays = 180

// Scheduler finds stale schools and enqueues crawl work for them.
type Scheduler struct {
	schools school.Store
	stale   Store
	queue   crawl.QueueStore

	staleness time.Duration
	now       func() time.Time
}

// NewScheduler wires a refresh scheduler. stalenessDays <= 0 falls back to
// the default.
func NewScheduler(schools school.Store, stale Store, queue crawl.QueueStore, stalenessDays int) *Scheduler {
	if stalenessDays <= 0 {
		stalenessDays = DefaultStalenessDays
	}
	return &Scheduler{
		schools:   schools,
		stale:     stale,
		queue:     queue,
		staleness: time.Duration(stalenessDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// ItemError records one school that could not be enqueued.
type ItemError struct {
	SchoolID string `json:"school_id"`
	Err      string `json:"error"`
}

// Result summarizes one refresh pass.
type Result struct {
	Stale    int         `json:"stale"`
	Enqueued int         `json:"enqueued"`
	Skipped  int         `json:"skipped"`
	Errors   []ItemError `json:"errors,omitempty"`
}

// Run enqueues crawl work for up to limit stale schools. Schools that already
// have a pending entry are counted as skipped; enqueue is idempotent so a
// concurrent enqueue is also just a skip.
func (s *Scheduler) Run(ctx context.Context, limit int) (*Result, error) {
	cutoff := s.now().UTC().Add(-s.staleness)

	ids, err := s.stale.StaleSchoolIDs(ctx, cutoff, limit)
	if err != nil {
		return nil, eris.Wrap(err, "refresh: list stale schools")
	}

	res := &Result{Stale: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "refresh: pass interrupted")
		}

		sc, err := s.schools.GetByID(ctx, id)
		if err != nil {
			res.Errors = append(res.Errors, ItemError{SchoolID: id, Err: err.Error()})
			continue
		}
		if sc == nil || sc.Tombstoned() || sc.Domain == "" {
			res.Skipped++
			continue
		}

		_, created, err := s.queue.Enqueue(ctx, sc.ID, sc.Domain, s.now().UTC())
		if err != nil {
			res.Errors = append(res.Errors, ItemError{SchoolID: id, Err: err.Error()})
			continue
		}
		if created {
			res.Enqueued++
		} else {
			res.Skipped++
		}
	}

	zap.L().Info("refresh pass finished",
		zap.Int("stale", res.Stale),
		zap.Int("enqueued", res.Enqueued),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}
