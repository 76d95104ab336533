package matching

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	engine, err := NewEngine(logger, cfg)
	require.NoError(t, err)
	return engine
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	tests := map[string]func(*Config){
		"unknown weighting":  func(c *Config) { c.Weighting = "three-field" },
		"unknown scorer":     func(c *Config) { c.NameScorer = "soundex" },
		"floor out of range": func(c *Config) { c.OverallFloor = 120 },
		"no candidates":      func(c *Config) { c.MaxCandidates = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			_, err := NewEngine(logger, cfg)
			assert.Error(t, err)
		})
	}
}

func TestEngine_Normalize(t *testing.T) {
	engine := newTestEngine(t, func(c *Config) { c.FoldAccents = true })
	got := engine.Normalize(models.Fields{Name: " Société  Générale S.A. ", Country: "FRANCE"})
	assert.Equal(t, "societe generale sa", got.Name)
	assert.Equal(t, "france", got.Country)
}

func TestEngine_Evaluate(t *testing.T) {
	for _, weighting := range []Weighting{WeightingFiveField, WeightingNamePlusBonus} {
		t.Run(string(weighting), func(t *testing.T) {
			engine := newTestEngine(t, func(c *Config) { c.Weighting = weighting })
			registry := []models.Organization{{ID: "org-1", Fields: abcPharma}}

			t.Run("empty registry", func(t *testing.T) {
				eval, err := engine.Evaluate(context.Background(), abcPharmaShort, nil)
				require.NoError(t, err)
				assert.Nil(t, eval.Candidate)
				assert.False(t, eval.Decision.Matched)
				assert.Equal(t, ReasonNoCandidate, eval.Decision.Reason)
			})

			t.Run("suffix variant matches", func(t *testing.T) {
				eval, err := engine.Evaluate(context.Background(), abcPharmaShort, registry)
				require.NoError(t, err)
				require.NotNil(t, eval.Candidate)
				assert.Equal(t, "org-1", eval.Candidate.Organization.ID)
				assert.GreaterOrEqual(t, eval.Score.Name, 80.0)
				assert.GreaterOrEqual(t, eval.Score.Overall, 85.0)
				assert.True(t, eval.Decision.Matched)
			})

			t.Run("different organization is rejected on name", func(t *testing.T) {
				eval, err := engine.Evaluate(context.Background(), xyzBiotech, registry)
				require.NoError(t, err)
				assert.False(t, eval.Decision.Matched)
				assert.Equal(t, ReasonNameFloor, eval.Decision.Reason)
			})
		})
	}
}

func TestEngine_GenericNameDoesNotMatchElsewhere(t *testing.T) {
	engine := newTestEngine(t, nil)
	existing := models.Fields{Name: "global pharma", Address: "1 rue de paris", Locality: "lyon", PostalCode: "69001", Country: "france"}
	incoming := models.Fields{Name: "global pharma", Address: "77 industrial pkwy", Locality: "austin", Region: "tx", PostalCode: "73301", Country: "usa"}

	score, decision := engine.Compare(incoming, existing)
	assert.Equal(t, 100.0, score.Name)
	assert.False(t, decision.Matched)
	assert.Equal(t, ReasonOverallFloor, decision.Reason)
}

func TestEngine_Candidates(t *testing.T) {
	engine := newTestEngine(t, func(c *Config) { c.MaxCandidates = 2 })
	registry := []models.Organization{
		{ID: "org-1", Fields: xyzBiotech},
		{ID: "org-2", Fields: abcPharma},
		{ID: "org-3", Fields: models.Fields{Name: "abc pharmaceuticals"}},
	}

	found := engine.Candidates(abcPharmaShort, registry, 0)
	require.Len(t, found, 2)
	assert.Equal(t, "org-2", found[0].Organization.ID)
	assert.True(t, found[0].Decision.Matched)
	assert.Equal(t, "org-3", found[1].Organization.ID)
	assert.False(t, found[1].Decision.Matched)
}
