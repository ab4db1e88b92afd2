// Package dedupe finds and merges duplicate school records.
package dedupe

import (
	"strings"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/internal/resolve"
)

// Combined score weights. Name similarity dominates; contact agreement
// corroborates.
const (
	weightNameSim  = 0.5
	weightPhone    = 0.3
	weightLocation = 0.2
)

// CombinedScore scores how likely two active school records describe the same
// school, in [0,1]. Both records sharing a non-empty domain would have been
// the same row, so domain is not a signal here.
func CombinedScore(a, b model.School) float64 {
	score := weightNameSim * trigramSimilarity(
		resolve.NormalizeName(a.CanonicalName),
		resolve.NormalizeName(b.CanonicalName),
	)

	if a.Phone != "" && b.Phone != "" && samePhone(a.Phone, b.Phone) {
		score += weightPhone
	}

	if a.City != "" && strings.EqualFold(a.City, b.City) &&
		strings.EqualFold(a.State, b.State) {
		score += weightLocation
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// trigramSimilarity mirrors pg_trgm: the Jaccard similarity of the two
// strings' padded trigram sets.
func trigramSimilarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}

	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

// trigrams extracts the padded trigram set the way pg_trgm does: two leading
// spaces, one trailing, per word.
func trigrams(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, word := range strings.Fields(strings.ToLower(s)) {
		padded := "  " + word + " "
		for i := 0; i+3 <= len(padded); i++ {
			out[padded[i:i+3]] = struct{}{}
		}
	}
	return out
}

// samePhone compares national significant numbers, so "+1 (386) 555-0199"
// and "386-555-0199" agree. Unparseable numbers fall back to trailing-digit
// comparison.
func samePhone(a, b string) bool {
	na, nb := resolve.NormalizePhone(a, "US"), resolve.NormalizePhone(b, "US")
	if na != "" && nb != "" {
		return na == nb
	}
	da, db := lastDigits(a, 10), lastDigits(b, 10)
	return da != "" && da == db
}

// lastDigits keeps the trailing n digits of unparseable numbers.
func lastDigits(s string, n int) string {
	var digits []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) > n {
		digits = digits[len(digits)-n:]
	}
	return string(digits)
}

// unionFind clusters school ids by transitive pair membership.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[string]string{}}
}

func (u *unionFind) find(x string) string {
	root, ok := u.parent[x]
	if !ok {
		u.parent[x] = x
		return x
	}
	if root == x {
		return x
	}
	top := u.find(root)
	u.parent[x] = top
	return top
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

// clusters groups every id seen by union into its connected component.
// Singletons are omitted.
func (u *unionFind) clusters() [][]string {
	byRoot := map[string][]string{}
	for x := range u.parent {
		root := u.find(x)
		byRoot[root] = append(byRoot[root], x)
	}

	var out [][]string
	for _, members := range byRoot {
		if len(members) > 1 {
			out = append(out, members)
		}
	}
	return out
}
