package dedupe

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
)

// FactCounter measures a school's approved fact richness for canonical
// election.
type FactCounter interface {
	CountApproved(ctx context.Context, schoolID string) (int, error)
}

// Engine runs one deduplication pass: generate candidate pairs, score them,
// cluster the matches, and merge each cluster into its richest member.
type Engine struct {
	store Store
	facts FactCounter

	mergeThreshold float64
	candidateFloor float64
}

// NewEngine wires a dedupe engine. Pairs scoring at or above mergeThreshold
// merge automatically; pairs between candidateFloor and the threshold queue
// for review.
func NewEngine(store Store, facts FactCounter, mergeThreshold, candidateFloor float64) *Engine {
	if mergeThreshold <= 0 {
		mergeThreshold = 0.75
	}
	if candidateFloor <= 0 {
		candidateFloor = 0.4
	}
	return &Engine{
		store:          store,
		facts:          facts,
		mergeThreshold: mergeThreshold,
		candidateFloor: candidateFloor,
	}
}

// ClusterError records one cluster that could not be merged.
type ClusterError struct {
	CanonicalID string `json:"canonical_id"`
	Err         string `json:"error"`
}

// Result summarizes one deduplication pass.
type Result struct {
	PairsScored   int            `json:"pairs_scored"`
	Clusters      int            `json:"clusters"`
	Merged        int            `json:"merged"`
	Promoted      int            `json:"promoted"`
	Errors        []ClusterError `json:"errors,omitempty"`
}

// Run executes one pass. It is idempotent: merged losers are tombstoned and
// never pair again, so a second pass over unchanged data merges nothing.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	pairs, err := e.store.CandidatePairs(ctx, e.candidateFloor)
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: load candidates")
	}

	res := &Result{PairsScored: len(pairs)}
	uf := newUnionFind()
	byID := map[string]model.School{}

	for _, p := range pairs {
		byID[p.A.ID] = p.A
		byID[p.B.ID] = p.B

		score := CombinedScore(p.A, p.B)
		switch {
		case score >= e.mergeThreshold:
			uf.union(p.A.ID, p.B.ID)
		case score >= e.candidateFloor:
			// Collect and continue; a failed review record must not block
			// later merges in the same pass.
			if err := e.store.RecordReview(ctx, p.A.ID, p.B.ID, score); err != nil {
				res.Errors = append(res.Errors, ClusterError{Err: err.Error()})
				continue
			}
			res.Promoted++
		}
	}

	clusters := uf.clusters()
	res.Clusters = len(clusters)

	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "dedupe: pass interrupted")
		}

		canonical, err := e.electCanonical(ctx, cluster, byID)
		if err != nil {
			res.Errors = append(res.Errors, ClusterError{Err: err.Error()})
			continue
		}

		for _, id := range cluster {
			if id == canonical {
				continue
			}
			if err := e.store.Merge(ctx, canonical, id); err != nil {
				res.Errors = append(res.Errors, ClusterError{
					CanonicalID: canonical,
					Err:         err.Error(),
				})
				continue
			}
			res.Merged++
		}
	}

	zap.L().Info("dedupe pass finished",
		zap.Int("pairs_scored", res.PairsScored),
		zap.Int("clusters", res.Clusters),
		zap.Int("merged", res.Merged),
		zap.Int("promoted", res.Promoted),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

// electCanonical picks the cluster member with the most approved facts,
// breaking ties toward the earliest-created record.
func (e *Engine) electCanonical(ctx context.Context, cluster []string, byID map[string]model.School) (string, error) {
	type ranked struct {
		id        string
		factCount int
	}

	members := make([]ranked, 0, len(cluster))
	for _, id := range cluster {
		count, err := e.facts.CountApproved(ctx, id)
		if err != nil {
			return "", eris.Wrapf(err, "dedupe: rank %s", id)
		}
		members = append(members, ranked{id: id, factCount: count})
	}

	sort.Slice(members, func(i, j int) bool {
		if members[i].factCount != members[j].factCount {
			return members[i].factCount > members[j].factCount
		}
		a, b := byID[members[i].id], byID[members[j].id]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return members[i].id < members[j].id
	})

	return members[0].id, nil
}
