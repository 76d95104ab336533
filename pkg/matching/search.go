package matching

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Candidate is an existing organization considered for a record.
type Candidate struct {
	Organization models.Organization `json:"organization"`
	// Index is the organization's position in registry insertion order.
	Index     int     `json:"-"`
	NameScore float64 `json:"name_score"`
}

// FindBestCandidate compares name against every organization's name and returns
// the best one with its score. The earliest inserted organization wins ties.
// It returns (nil, 0) for an empty registry.
func FindBestCandidate(name string, orgs []models.Organization, sim SimilarityFunc) (*Candidate, float64) {
	best, score := bestInRange(name, orgs, 0, len(orgs), sim)
	if best < 0 {
		return nil, 0
	}
	return &Candidate{Organization: orgs[best], Index: best, NameScore: score}, score
}

// FindCandidates returns up to limit organizations ordered by name score,
// highest first, ties in insertion order.
func FindCandidates(name string, orgs []models.Organization, sim SimilarityFunc, limit int) []Candidate {
	candidates := make([]Candidate, len(orgs))
	for i, org := range orgs {
		candidates[i] = Candidate{Organization: org, Index: i, NameScore: sim(name, org.Name)}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].NameScore > candidates[j].NameScore
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// Searcher runs the name scan, splitting large registries across workers.
// Results are identical to FindBestCandidate.
type Searcher struct {
	sim               SimilarityFunc
	workers           int
	parallelThreshold int
}

// NewSearcher creates a searcher. workers <= 1 always scans sequentially.
func NewSearcher(sim SimilarityFunc, workers, parallelThreshold int) *Searcher {
	return &Searcher{sim: sim, workers: workers, parallelThreshold: parallelThreshold}
}

// Best returns the best candidate for name. Only a cancelled ctx produces an error.
func (s *Searcher) Best(ctx context.Context, name string, orgs []models.Organization) (*Candidate, float64, error) {
	if s.workers <= 1 || len(orgs) < s.parallelThreshold || len(orgs) < s.workers {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		c, score := FindBestCandidate(name, orgs, s.sim)
		return c, score, nil
	}

	type partial struct {
		index int
		score float64
	}
	chunk := (len(orgs) + s.workers - 1) / s.workers
	results := make([]partial, s.workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < s.workers; w++ {
		start, end := w*chunk, min((w+1)*chunk, len(orgs))
		results[w] = partial{index: -1}
		if start >= end {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			i, score := bestInRange(name, orgs, start, end, s.sim)
			results[w] = partial{index: i, score: score}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	// chunks are in insertion order, so strict > keeps the earliest on ties
	best := partial{index: -1}
	for _, r := range results {
		if r.index < 0 {
			continue
		}
		if best.index < 0 || r.score > best.score {
			best = r
		}
	}
	if best.index < 0 {
		return nil, 0, nil
	}
	return &Candidate{Organization: orgs[best.index], Index: best.index, NameScore: best.score}, best.score, nil
}

func bestInRange(name string, orgs []models.Organization, start, end int, sim SimilarityFunc) (int, float64) {
	best, bestScore := -1, 0.0
	for i := start; i < end; i++ {
		score := sim(name, orgs[i].Name)
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}
