package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestScore(t *testing.T) {
	cases := []struct {
		name        string
		velocity    *float64
		reliability *float64
		want        Tier
	}{
		{"gold at floors", f(0.80), f(0.85), TierGold},
		{"gold above floors", f(0.95), f(0.99), TierGold},
		{"silver at floors", f(0.60), f(0.70), TierSilver},
		{"gold velocity but silver reliability", f(0.90), f(0.75), TierSilver},
		{"silver velocity but gold reliability", f(0.65), f(0.99), TierSilver},
		{"just under silver velocity", f(0.59), f(0.95), TierBronze},
		{"just under silver reliability", f(0.95), f(0.69), TierBronze},
		{"both nil", nil, nil, TierBronze},
		{"nil reliability with gold velocity", f(0.95), nil, TierBronze},
		{"nil velocity with gold reliability", nil, f(0.95), TierBronze},
		{"zeros", f(0), f(0), TierBronze},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(tc.velocity, tc.reliability))
		})
	}
}
