package matching

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Config contains configuration for the match engine
type Config struct {
	Weighting         Weighting                `json:"weighting" validate:"required,oneof=five-field name-plus-bonus"`
	NameScorer        string                   `json:"name_scorer" validate:"required,oneof=ratio partial_ratio token_sort_ratio jaro_winkler"`
	FieldScorer       string                   `json:"field_scorer" validate:"required,oneof=ratio partial_ratio token_sort_ratio jaro_winkler"`
	FieldWeights      map[models.Field]float64 `json:"field_weights,omitempty"`
	Bonus             Bonus                    `json:"bonus"`
	NameFloor         float64                  `json:"name_floor" validate:"gte=0,lte=100"`
	OverallFloor      float64                  `json:"overall_floor" validate:"gte=0,lte=100"`
	AmbiguityBand     float64                  `json:"ambiguity_band" validate:"gte=0,lte=100"`
	FoldAccents       bool                     `json:"fold_accents"`
	SearchWorkers     int                      `json:"search_workers" validate:"gte=0"`
	ParallelThreshold int                      `json:"parallel_threshold" validate:"gte=0"`
	MaxCandidates     int                      `json:"max_candidates" validate:"gte=1"`
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	policy := DefaultPolicy()
	return Config{
		Weighting:         WeightingFiveField,
		NameScorer:        ScorerPartialRatio,
		FieldScorer:       ScorerRatio,
		Bonus:             DefaultBonus(),
		NameFloor:         policy.NameFloor,
		OverallFloor:      policy.OverallFloor,
		AmbiguityBand:     policy.AmbiguityBand,
		SearchWorkers:     1,
		ParallelThreshold: 2000,
		MaxCandidates:     10,
	}
}

// Evaluation is the engine's verdict for one record against a registry snapshot.
type Evaluation struct {
	Fields    models.Fields `json:"fields"`
	Candidate *Candidate    `json:"candidate,omitempty"`
	Score     Score         `json:"score"`
	Decision  Decision      `json:"decision"`
}

// Engine normalizes, searches, scores and decides. It holds no registry state
// and is safe for concurrent use.
type Engine struct {
	logger    ectologger.Logger
	config    Config
	normalize normalizers.Normalizer
	scorer    *WeightedScorer
	searcher  *Searcher
	policy    Policy
}

// NewEngine validates the config and creates a match engine
func NewEngine(logger ectologger.Logger, config Config) (*Engine, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid matching config: %w", err)
	}

	nameSim, err := ScorerByName(config.NameScorer)
	if err != nil {
		return nil, err
	}
	fieldSim, err := ScorerByName(config.FieldScorer)
	if err != nil {
		return nil, err
	}
	scorer, err := NewWeightedScorer(config.Weighting, config.FieldWeights, config.Bonus, nameSim, fieldSim)
	if err != nil {
		return nil, err
	}

	normalize := normalizers.Normalizer(normalizers.Normalize)
	if config.FoldAccents {
		normalize = normalizers.Chain(normalizers.FoldAccents, normalizers.Normalize)
	}

	return &Engine{
		logger:    logger,
		config:    config,
		normalize: normalize,
		scorer:    scorer,
		searcher:  NewSearcher(nameSim, config.SearchWorkers, config.ParallelThreshold),
		policy: Policy{
			NameFloor:     config.NameFloor,
			OverallFloor:  config.OverallFloor,
			AmbiguityBand: config.AmbiguityBand,
		},
	}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Normalize canonicalizes every identification field.
func (e *Engine) Normalize(fields models.Fields) models.Fields {
	return fields.Map(e.normalize)
}

// Evaluate finds the best candidate for already-normalized fields among orgs
// (in insertion order), scores it and applies the policy.
func (e *Engine) Evaluate(ctx context.Context, fields models.Fields, orgs []models.Organization) (*Evaluation, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.Evaluate")
	defer span.End()

	candidate, nameScore, err := e.searcher.Best(ctx, fields.Name, orgs)
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{Fields: fields, Candidate: candidate}
	if candidate == nil {
		eval.Decision = e.policy.Decide(nil, 0, 0)
		return eval, nil
	}

	eval.Score = e.scorer.Score(fields, candidate.Organization.Fields)
	eval.Score.Name = nameScore
	eval.Decision = e.policy.Decide(candidate, eval.Score.Overall, nameScore)

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"candidate_id":  candidate.Organization.ID,
		"name_score":    nameScore,
		"overall_score": eval.Score.Overall,
		"reason":        eval.Decision.Reason,
	}).Debug("Evaluated best candidate")

	return eval, nil
}

// Compare scores two normalized field sets directly and applies the policy.
func (e *Engine) Compare(a, b models.Fields) (Score, Decision) {
	score := e.scorer.Score(a, b)
	other := &Candidate{Organization: models.Organization{Fields: b}, NameScore: score.Name}
	return score, e.policy.Decide(other, score.Overall, score.Name)
}

// ScoredCandidate is a candidate with its full weighted score and decision.
type ScoredCandidate struct {
	Candidate
	Score    Score    `json:"score"`
	Decision Decision `json:"decision"`
}

// Candidates returns up to limit candidates (MaxCandidates when limit <= 0),
// each fully scored. Only the first would be used by Evaluate.
func (e *Engine) Candidates(fields models.Fields, orgs []models.Organization, limit int) []ScoredCandidate {
	if limit <= 0 {
		limit = e.config.MaxCandidates
	}
	found := FindCandidates(fields.Name, orgs, e.scorer.name, limit)
	out := make([]ScoredCandidate, 0, len(found))
	for _, c := range found {
		score := e.scorer.Score(fields, c.Organization.Fields)
		score.Name = c.NameScore
		out = append(out, ScoredCandidate{
			Candidate: c,
			Score:     score,
			Decision:  e.policy.Decide(&c, score.Overall, c.NameScore),
		})
	}
	return out
}
