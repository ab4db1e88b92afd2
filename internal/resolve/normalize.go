// Package resolve implements heuristic domain resolution for seed candidates.
package resolve

import (
	"regexp"
	"strings"
)

// legalSuffixes lists common legal entity suffixes stripped during name
// normalization.
var legalSuffixes = []string{
	" LLC", " L.L.C.", " L.L.C",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" LTD", " LTD.", " LIMITED",
	" LP", " L.P.", " L.P",
	" LLP", " L.L.P.", " L.L.P",
	" CO", " CO.",
	" PLC", " P.L.C.",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeName standardizes a school name for domain derivation and
// matching: trims, uppercases, strips legal suffixes, replaces punctuation,
// and collapses runs of spaces.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", "AND",
		"-", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// commonTLDs are tried when deriving candidate domains from a name.
var commonTLDs = []string{".com", ".net", ".org", ".aero"}

// CandidateDomains derives candidate domains from a school name: the
// concatenated and hyphenated slug of the normalized name across common TLDs.
// Order matters; earlier candidates are more likely and probed first.
func CandidateDomains(name string) []string {
	norm := NormalizeName(name)
	if norm == "" {
		return nil
	}

	words := strings.Fields(strings.ToLower(norm))
	concat := strings.Join(words, "")
	hyphen := strings.Join(words, "-")

	seen := make(map[string]bool)
	var out []string
	add := func(slug string) {
		if slug == "" {
			return
		}
		for _, tld := range commonTLDs {
			d := slug + tld
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}

	add(concat)
	if hyphen != concat {
		add(hyphen)
	}
	return out
}
