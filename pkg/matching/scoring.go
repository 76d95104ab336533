package matching

import (
	"fmt"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Weighting selects how per-field similarities combine into the overall score.
type Weighting string

const (
	// WeightingFiveField is a weighted sum over all six fields.
	WeightingFiveField Weighting = "five-field"
	// WeightingNamePlusBonus is 0.6 x name plus fixed points for equal country, locality and postcode.
	WeightingNamePlusBonus Weighting = "name-plus-bonus"
)

// DefaultFieldWeights are the five-field weights. They sum to 1.
var DefaultFieldWeights = map[models.Field]float64{
	models.FieldName:       0.4,
	models.FieldAddress:    0.3,
	models.FieldLocality:   0.075,
	models.FieldRegion:     0.075,
	models.FieldPostalCode: 0.075,
	models.FieldCountry:    0.075,
}

// Bonus configures the name-plus-bonus weighting.
type Bonus struct {
	NameWeight float64 `json:"name_weight"`
	Country    float64 `json:"country"`
	Locality   float64 `json:"locality"`
	PostalCode float64 `json:"postal_code"`
}

// DefaultBonus returns the standard name-plus-bonus points.
func DefaultBonus() Bonus {
	return Bonus{NameWeight: 0.6, Country: 20, Locality: 10, PostalCode: 10}
}

// FieldScore is one field's part of an overall score.
type FieldScore struct {
	Field        models.Field `json:"field"`
	Similarity   float64      `json:"similarity"`
	Weight       float64      `json:"weight"`
	Contribution float64      `json:"contribution"`
	// Missing is set when the field is empty on either side; it contributes nothing.
	Missing bool `json:"missing,omitempty"`
}

// Score is the weighted comparison of two field sets.
type Score struct {
	Overall float64      `json:"overall_score"`
	Name    float64      `json:"name_score"`
	Fields  []FieldScore `json:"fields"`
}

// WeightedScorer combines per-field similarities into one overall score.
type WeightedScorer struct {
	weighting Weighting
	weights   map[models.Field]float64
	bonus     Bonus
	name      SimilarityFunc
	field     SimilarityFunc
}

// NewWeightedScorer creates a scorer. nameSim scores the name field, fieldSim
// every other field. A nil weights map uses DefaultFieldWeights.
func NewWeightedScorer(weighting Weighting, weights map[models.Field]float64, bonus Bonus, nameSim, fieldSim SimilarityFunc) (*WeightedScorer, error) {
	switch weighting {
	case WeightingFiveField, WeightingNamePlusBonus:
	default:
		return nil, fmt.Errorf("unknown weighting %q", weighting)
	}
	if nameSim == nil || fieldSim == nil {
		return nil, fmt.Errorf("similarity functions are required")
	}
	if weights == nil {
		weights = DefaultFieldWeights
	}
	return &WeightedScorer{
		weighting: weighting,
		weights:   weights,
		bonus:     bonus,
		name:      nameSim,
		field:     fieldSim,
	}, nil
}

// Weighting returns the configured weighting scheme.
func (w *WeightedScorer) Weighting() Weighting {
	return w.weighting
}

// NameScore scores two normalized names.
func (w *WeightedScorer) NameScore(a, b string) float64 {
	return w.name(a, b)
}

// Score compares two normalized field sets. Fields empty on either side
// contribute zero but stay in the denominator.
func (w *WeightedScorer) Score(candidate, existing models.Fields) Score {
	if w.weighting == WeightingNamePlusBonus {
		return w.scoreNamePlusBonus(candidate, existing)
	}
	return w.scoreFiveField(candidate, existing)
}

func (w *WeightedScorer) scoreFiveField(candidate, existing models.Fields) Score {
	score := Score{Fields: make([]FieldScore, 0, len(models.CanonicalFields))}
	total := 0.0
	for _, field := range models.CanonicalFields {
		a, b := candidate.Get(field), existing.Get(field)
		fs := FieldScore{Field: field, Weight: w.weights[field]}
		if a == "" || b == "" {
			fs.Missing = true
		} else {
			fs.Similarity = w.similarity(field, a, b)
			fs.Contribution = fs.Weight * fs.Similarity
		}
		if field == models.FieldName {
			score.Name = w.name(a, b)
		}
		total += fs.Contribution
		score.Fields = append(score.Fields, fs)
	}
	score.Overall = clamp(round(total))
	return score
}

func (w *WeightedScorer) scoreNamePlusBonus(candidate, existing models.Fields) Score {
	score := Score{Fields: make([]FieldScore, 0, 4)}
	score.Name = w.name(candidate.Name, existing.Name)

	nameScore := FieldScore{Field: models.FieldName, Weight: w.bonus.NameWeight}
	if candidate.Name == "" || existing.Name == "" {
		nameScore.Missing = true
	} else {
		nameScore.Similarity = score.Name
		nameScore.Contribution = w.bonus.NameWeight * score.Name
	}
	total := nameScore.Contribution
	score.Fields = append(score.Fields, nameScore)

	for _, b := range []struct {
		field  models.Field
		points float64
	}{
		{models.FieldCountry, w.bonus.Country},
		{models.FieldLocality, w.bonus.Locality},
		{models.FieldPostalCode, w.bonus.PostalCode},
	} {
		x, y := candidate.Get(b.field), existing.Get(b.field)
		fs := FieldScore{Field: b.field, Weight: b.points}
		switch {
		case x == "" || y == "":
			fs.Missing = true
		case x == y:
			fs.Similarity = 100
			fs.Contribution = b.points
		}
		total += fs.Contribution
		score.Fields = append(score.Fields, fs)
	}
	score.Overall = clamp(round(total))
	return score
}

func (w *WeightedScorer) similarity(field models.Field, a, b string) float64 {
	if field == models.FieldName {
		return w.name(a, b)
	}
	return w.field(a, b)
}

func clamp(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 100:
		return 100
	}
	return x
}
