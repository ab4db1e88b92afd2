// Package signals imports third-party listing signals (ratings, review
// counts) as GOOGLE-provenance facts.
package signals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/facts"
	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/internal/resolve"
	"github.com/e-roy/find-a-flight-school-sub001/internal/school"
	"github.com/e-roy/find-a-flight-school-sub001/pkg/places"
)

// minNameSim is how similar a place's display name must be to the school's
// canonical name before its signals are attributed to the school.
const minNameSim = 0.85

// Importer pulls Places signals for active schools and appends them as
// GOOGLE-provenance facts.
type Importer struct {
	schools school.Store
	facts   facts.Store
	places  places.Client
	now     func() time.Time
}

// NewImporter wires a signal importer.
func NewImporter(schools school.Store, factStore facts.Store, client places.Client) *Importer {
	return &Importer{
		schools: schools,
		facts:   factStore,
		places:  client,
		now:     time.Now,
	}
}

// ItemError records one school whose signal lookup failed.
type ItemError struct {
	SchoolID string `json:"school_id"`
	Err      string `json:"error"`
}

// Result summarizes one import pass.
type Result struct {
	Schools   int         `json:"schools"`
	Imported  int         `json:"imported"`
	Unmatched int         `json:"unmatched"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// Run looks up every active school and appends rating and review-count facts
// for confident name matches. Lookup failures are per-school; the pass
// continues.
func (i *Importer) Run(ctx context.Context) (*Result, error) {
	schools, err := i.schools.ListActive(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "signals: list schools")
	}

	res := &Result{Schools: len(schools)}
	for _, sc := range schools {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "signals: pass interrupted")
		}

		n, err := i.importOne(ctx, sc)
		if err != nil {
			res.Errors = append(res.Errors, ItemError{SchoolID: sc.ID, Err: err.Error()})
			continue
		}
		if n == 0 {
			res.Unmatched++
		} else {
			res.Imported += n
		}
	}

	zap.L().Info("signal import finished",
		zap.Int("schools", res.Schools),
		zap.Int("imported", res.Imported),
		zap.Int("unmatched", res.Unmatched),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func (i *Importer) importOne(ctx context.Context, sc model.School) (int, error) {
	query := sc.CanonicalName
	if sc.City != "" {
		query = fmt.Sprintf("%s %s %s", sc.CanonicalName, sc.City, sc.State)
	}

	resp, err := i.places.TextSearch(ctx, strings.TrimSpace(query))
	if err != nil {
		return 0, eris.Wrapf(err, "signals: lookup %q", sc.CanonicalName)
	}

	place := bestMatch(sc.CanonicalName, resp.Places)
	if place == nil {
		return 0, nil
	}

	asOf := i.now().UTC()
	newFacts := []model.Fact{
		{
			SchoolID:         sc.ID,
			FactKey:          "rating",
			FactValue:        model.NumberValue(place.Rating),
			Provenance:       model.ProvenanceGoogle,
			ModerationStatus: model.ModerationApproved,
			AsOf:             asOf,
		},
		{
			SchoolID:         sc.ID,
			FactKey:          "review_count",
			FactValue:        model.NumberValue(float64(place.UserRatingCount)),
			Provenance:       model.ProvenanceGoogle,
			ModerationStatus: model.ModerationApproved,
			AsOf:             asOf,
		},
	}

	return i.facts.Append(ctx, newFacts)
}

// bestMatch returns the place whose display name is closest to the canonical
// name, or nil when nothing clears the similarity floor.
func bestMatch(canonicalName string, candidates []places.Place) *places.Place {
	norm := resolve.NormalizeName(canonicalName)

	var best *places.Place
	bestSim := 0.0
	for idx := range candidates {
		sim := nameSimilarity(norm, resolve.NormalizeName(candidates[idx].DisplayName.Text))
		if sim > bestSim {
			bestSim = sim
			best = &candidates[idx]
		}
	}
	if bestSim < minNameSim {
		return nil
	}
	return best
}

// nameSimilarity is token-set overlap: exact normalized equality scores 1,
// otherwise the Jaccard similarity of the word sets.
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	wa := map[string]struct{}{}
	for _, w := range strings.Fields(a) {
		wa[w] = struct{}{}
	}
	wb := map[string]struct{}{}
	for _, w := range strings.Fields(b) {
		wb[w] = struct{}{}
	}

	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	union := len(wa) + len(wb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
