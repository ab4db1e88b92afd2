// Package trust derives a school's display trust tier from its signal scores.
package trust

// Tier is the coarse trust band shown to consumers.
type Tier string

// Trust tiers, best first.
const (
	TierGold   Tier = "GOLD"
	TierSilver Tier = "SILVER"
	TierBronze Tier = "BRONZE"
)

// Tier thresholds. A tier requires both scores to clear its floor.
const (
	goldVelocityFloor      = 0.80
	goldReliabilityFloor   = 0.85
	silverVelocityFloor    = 0.60
	silverReliabilityFloor = 0.70
)

// Score computes the tier from the school's velocity and reliability signals.
// A missing signal scores as zero, so schools with incomplete signal data
// land in BRONZE rather than erroring.
func Score(velocity, reliability *float64) Tier {
	v := deref(velocity)
	r := deref(reliability)

	switch {
	case v >= goldVelocityFloor && r >= goldReliabilityFloor:
		return TierGold
	case v >= silverVelocityFloor && r >= silverReliabilityFloor:
		return TierSilver
	default:
		return TierBronze
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
