package resolve

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizePhone parses a phone number and returns its national significant
// digits, or "" if the number cannot be parsed or is invalid.
func NormalizePhone(raw, region string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	p, err := libphonenumber.Parse(raw, region)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return ""
	}
	return libphonenumber.GetNationalSignificantNumber(p)
}

// pageContainsPhone reports whether the page body contains the seed's phone
// number, comparing digit runs so formatting differences don't matter.
func pageContainsPhone(body, phone, region string) bool {
	want := NormalizePhone(phone, region)
	if want == "" {
		// Unparseable numbers fall back to a raw digit comparison.
		want = onlyDigits(phone)
		if len(want) < 7 {
			return false
		}
	}
	return strings.Contains(onlyDigits(body), want)
}

// regionFor maps a seed's country to a libphonenumber region, defaulting to US.
func regionFor(country string) string {
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "", "US", "USA", "UNITED STATES":
		return "US"
	case "CA", "CANADA":
		return "CA"
	default:
		c := strings.ToUpper(strings.TrimSpace(country))
		if len(c) == 2 {
			return c
		}
		return "US"
	}
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
