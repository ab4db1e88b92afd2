package resolve

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Confidence weights for signal agreement. A bare name-pattern match lands
// below the resolved threshold of 0.7; corroborating signals push it over.
const (
	weightNamePattern = 0.42
	weightPhoneMatch  = 0.25
	weightLocation    = 0.15
	weightNameOnPage  = 0.15
)

// Identity carries the signals available for resolving a seed. Name is
// required; the rest improve confidence when present.
type Identity struct {
	Name    string
	City    string
	State   string
	Country string
	Phone   string
}

// Result is the outcome of a resolution attempt. Domain is empty when no
// candidate cleared the plausibility floor; Confidence is then near zero.
type Result struct {
	Domain     string
	Confidence float64
	Method     string
	Evidence   map[string]any
}

// ProbeResult is what a Prober learned about a candidate domain.
type ProbeResult struct {
	Live  bool
	Title string
	Body  string
}

// Prober fetches a candidate domain's homepage. Implementations must bound
// the call with a timeout; a dead domain is (Live=false, nil), not an error.
type Prober interface {
	Probe(ctx context.Context, domain string) (*ProbeResult, error)
}

// Resolver derives a best-guess canonical domain from identity signals.
// It is pure over its inputs plus the Prober's lookups; persistence is the
// caller's responsibility.
type Resolver struct {
	prober Prober
	floor  float64
}

// NewResolver creates a Resolver with the given plausibility floor.
func NewResolver(prober Prober, floor float64) *Resolver {
	if floor <= 0 {
		floor = 0.25
	}
	return &Resolver{prober: prober, floor: floor}
}

// ResolveDomain probes candidate domains derived from the identity's name and
// scores each by weighted signal agreement, returning the highest-scoring
// candidate above the plausibility floor. "Not found" is not an error: the
// result has no domain and near-zero confidence. A transport failure on every
// candidate is returned as an error for the caller to isolate per item.
func (r *Resolver) ResolveDomain(ctx context.Context, id Identity) (*Result, error) {
	if strings.TrimSpace(id.Name) == "" {
		return nil, eris.New("resolve: identity requires a name")
	}

	candidates := CandidateDomains(id.Name)
	if len(candidates) == 0 {
		return &Result{Evidence: map[string]any{"candidates_tried": 0}}, nil
	}

	var (
		best      Result
		probed    int
		lastErr   error
		signalLog map[string]any
	)

	for _, domain := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		probe, err := r.prober.Probe(ctx, domain)
		if err != nil {
			lastErr = err
			zap.L().Debug("resolve: probe failed",
				zap.String("domain", domain),
				zap.Error(err),
			)
			continue
		}
		probed++
		if !probe.Live {
			continue
		}

		score, signals := r.scoreCandidate(id, probe)
		if score > best.Confidence {
			best = Result{Domain: domain, Confidence: score, Method: "name_pattern"}
			signalLog = signals
		}
	}

	if probed == 0 && lastErr != nil {
		return nil, eris.Wrap(lastErr, "resolve: all candidate probes failed")
	}

	evidence := map[string]any{
		"candidates_tried": len(candidates),
		"candidates_live":  probed,
	}
	if best.Confidence < r.floor {
		return &Result{Evidence: evidence}, nil
	}

	for k, v := range signalLog {
		evidence[k] = v
	}
	best.Evidence = evidence
	return &best, nil
}

// scoreCandidate combines partial signal matches into a confidence in [0,1].
func (r *Resolver) scoreCandidate(id Identity, probe *ProbeResult) (float64, map[string]any) {
	score := weightNamePattern
	signals := map[string]any{"name_pattern": true}

	page := strings.ToUpper(probe.Title + " " + probe.Body)

	if id.Phone != "" && pageContainsPhone(probe.Body, id.Phone, regionFor(id.Country)) {
		score += weightPhoneMatch
		signals["phone_match"] = true
	}

	if locationOnPage(page, id.City, id.State) {
		score += weightLocation
		signals["location_match"] = true
	}

	if nameOnPage(page, id.Name) {
		score += weightNameOnPage
		signals["name_on_page"] = true
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, signals
}

func locationOnPage(page, city, state string) bool {
	if city != "" && strings.Contains(page, strings.ToUpper(city)) {
		return true
	}
	return state != "" && strings.Contains(page, strings.ToUpper(state))
}

func nameOnPage(page, name string) bool {
	norm := NormalizeName(name)
	if norm == "" {
		return false
	}
	return strings.Contains(page, norm)
}
