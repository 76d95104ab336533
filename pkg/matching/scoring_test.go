package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

var (
	abcPharma = models.Fields{
		Name:       "abc pharma inc",
		Address:    "123 main st",
		Locality:   "new york",
		Region:     "ny",
		PostalCode: "10001",
		Country:    "usa",
	}
	abcPharmaShort = models.Fields{
		Name:       "abc pharma",
		Address:    "123 main st",
		Locality:   "new york",
		Region:     "ny",
		PostalCode: "10001",
		Country:    "usa",
	}
	xyzBiotech = models.Fields{
		Name:       "xyz biotech",
		Address:    "456 elm st",
		Locality:   "san francisco",
		PostalCode: "94107",
		Country:    "usa",
	}
)

func newScorer(t *testing.T, weighting Weighting) *WeightedScorer {
	t.Helper()
	s, err := NewWeightedScorer(weighting, nil, DefaultBonus(), PartialRatio, Ratio)
	require.NoError(t, err)
	return s
}

func TestWeightedScorer_FiveField(t *testing.T) {
	s := newScorer(t, WeightingFiveField)

	t.Run("suffix-only difference scores 100", func(t *testing.T) {
		score := s.Score(abcPharmaShort, abcPharma)
		assert.Equal(t, 100.0, score.Overall)
		assert.Equal(t, 100.0, score.Name)
		assert.Len(t, score.Fields, len(models.CanonicalFields))
	})

	t.Run("missing region contributes zero", func(t *testing.T) {
		noRegion := abcPharma
		noRegion.Region = ""
		score := s.Score(noRegion, abcPharma)
		assert.Equal(t, 92.5, score.Overall)
		for _, fs := range score.Fields {
			if fs.Field == models.FieldRegion {
				assert.True(t, fs.Missing)
				assert.Zero(t, fs.Contribution)
			}
		}
	})

	t.Run("empty on both sides is still missing", func(t *testing.T) {
		a, b := abcPharma, abcPharma
		a.Region, b.Region = "", ""
		assert.Equal(t, 92.5, s.Score(a, b).Overall)
	})

	t.Run("different organization", func(t *testing.T) {
		score := s.Score(xyzBiotech, abcPharma)
		assert.Less(t, score.Overall, 85.0)
		assert.Less(t, score.Name, 80.0)
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, s.Score(xyzBiotech, abcPharma).Overall, s.Score(abcPharma, xyzBiotech).Overall)
	})

	t.Run("custom weights", func(t *testing.T) {
		custom, err := NewWeightedScorer(WeightingFiveField, map[models.Field]float64{models.FieldName: 1}, DefaultBonus(), PartialRatio, Ratio)
		require.NoError(t, err)
		assert.Equal(t, 100.0, custom.Score(abcPharmaShort, abcPharma).Overall)
	})
}

func TestWeightedScorer_NamePlusBonus(t *testing.T) {
	s := newScorer(t, WeightingNamePlusBonus)

	t.Run("full match", func(t *testing.T) {
		score := s.Score(abcPharmaShort, abcPharma)
		assert.Equal(t, 100.0, score.Overall)
	})

	t.Run("bonus only for equal non-empty values", func(t *testing.T) {
		a, b := abcPharma, abcPharma
		a.PostalCode, b.PostalCode = "", ""
		a.Locality = "brooklyn"
		// 60 name + 20 country
		assert.Equal(t, 80.0, s.Score(a, b).Overall)
	})

	t.Run("region and address are ignored", func(t *testing.T) {
		a := abcPharma
		a.Region = "ca"
		a.Address = "somewhere else"
		assert.Equal(t, 100.0, s.Score(a, abcPharma).Overall)
	})

	t.Run("missing name contributes zero", func(t *testing.T) {
		a := abcPharma
		a.Name = ""
		assert.Equal(t, 40.0, s.Score(a, abcPharma).Overall)
	})
}

func TestNewWeightedScorer_Errors(t *testing.T) {
	_, err := NewWeightedScorer("three-field", nil, DefaultBonus(), Ratio, Ratio)
	assert.Error(t, err)

	_, err = NewWeightedScorer(WeightingFiveField, nil, DefaultBonus(), nil, Ratio)
	assert.Error(t, err)
}
