package seed

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/internal/resolve"
)

// Promoter receives seeds that resolved at or above the confidence threshold
// and materializes (or updates) the canonical school record.
type Promoter interface {
	PromoteSeed(ctx context.Context, sd model.SeedCandidate, domain string, confidence float64) error
}

// Batch runs one resolution pass over the unresolved seed backlog.
type Batch struct {
	store    Store
	resolver *resolve.Resolver
	promote  Promoter
	now      func() time.Time
}

// NewBatch creates a batch resolver. promote may be nil when callers only
// want the seed-side write-back.
func NewBatch(store Store, resolver *resolve.Resolver, promote Promoter) *Batch {
	return &Batch{
		store:    store,
		resolver: resolver,
		promote:  promote,
		now:      time.Now,
	}
}

// ItemError records a per-seed failure inside an otherwise successful pass.
type ItemError struct {
	SeedID int64  `json:"seed_id"`
	Name   string `json:"name"`
	Err    string `json:"error"`
}

// Result summarizes one resolution pass.
type Result struct {
	Processed int         `json:"processed"`
	Resolved  int         `json:"resolved"`
	Missed    int         `json:"missed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// Run resolves up to limit seeds in FIFO order. A seed that errors is recorded
// and skipped; its last_seen_at still advances so it falls to the back of the
// queue. The pass itself only fails when the backlog cannot be read.
func (b *Batch) Run(ctx context.Context, limit int) (*Result, error) {
	seeds, err := b.store.ListUnresolved(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "seed: load backlog")
	}

	res := &Result{}
	for _, sd := range seeds {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "seed: pass interrupted")
		}
		if sd.Confidence != nil && *sd.Confidence >= model.ResolvedThreshold {
			continue
		}
		res.Processed++
		if err := b.resolveOne(ctx, sd, res); err != nil {
			res.Errors = append(res.Errors, ItemError{SeedID: sd.ID, Name: sd.Name, Err: err.Error()})
		}
	}

	zap.L().Info("seed resolution pass finished",
		zap.Int("processed", res.Processed),
		zap.Int("resolved", res.Resolved),
		zap.Int("missed", res.Missed),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func (b *Batch) resolveOne(ctx context.Context, sd model.SeedCandidate, res *Result) error {
	now := b.now().UTC()

	out, err := b.resolver.ResolveDomain(ctx, resolve.Identity{
		Name:    sd.Name,
		City:    sd.City,
		State:   sd.State,
		Country: sd.Country,
		Phone:   sd.Phone,
	})
	if err != nil {
		// Failed attempts still advance last_seen_at so the seed is not
		// retried ahead of the rest of the backlog.
		if terr := b.store.TouchLastSeen(ctx, sd.ID, now); terr != nil {
			zap.L().Warn("seed touch after resolver failure",
				zap.Int64("seed_id", sd.ID), zap.Error(terr))
		}
		return eris.Wrapf(err, "seed: resolve %q", sd.Name)
	}

	upd := ResolutionUpdate{
		Website:    out.Domain,
		Method:     out.Method,
		Confidence: &out.Confidence,
		Evidence:   out.Evidence,
		LastSeenAt: now,
	}
	if err := b.store.UpdateResolution(ctx, sd.ID, upd); err != nil {
		return err
	}

	if out.Domain == "" {
		res.Missed++
		return nil
	}
	res.Resolved++

	if b.promote != nil && out.Confidence >= model.ResolvedThreshold {
		if err := b.promote.PromoteSeed(ctx, sd, out.Domain, out.Confidence); err != nil {
			return eris.Wrapf(err, "seed: promote %q", sd.Name)
		}
	}
	return nil
}
