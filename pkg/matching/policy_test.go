package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Decide(t *testing.T) {
	p := DefaultPolicy()
	c := &Candidate{}

	tests := []struct {
		name      string
		candidate *Candidate
		overall   float64
		nameScore float64
		matched   bool
		ambiguous bool
		reason    string
	}{
		{"no candidate", nil, 0, 0, false, false, ReasonNoCandidate},
		{"inclusive boundaries", c, 85, 80, true, false, ReasonAccepted},
		{"clear match", c, 100, 100, true, false, ReasonAccepted},
		{"weak name short-circuits", c, 100, 79.9999, false, true, ReasonNameFloor},
		{"weak name far from floor", c, 100, 50, false, false, ReasonNameFloor},
		{"overall just under floor", c, 84.99, 95, false, true, ReasonOverallFloor},
		{"overall far under floor", c, 60, 95, false, false, ReasonOverallFloor},
		{"both gates fail", c, 60, 60, false, false, ReasonNameFloor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(tt.candidate, tt.overall, tt.nameScore)
			assert.Equal(t, tt.matched, d.Matched)
			assert.Equal(t, tt.ambiguous, d.Ambiguous)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}
