// Package merging proposes merges between organizations that were created
// separately but score as the same entity. It never rewrites the registry.
package merging

import (
	"context"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Comparer scores two normalized field sets and applies the match policy.
type Comparer interface {
	Compare(a, b models.Fields) (matching.Score, matching.Decision)
}

// Pair is an accepted pairwise match.
type Pair struct {
	LeftID       string  `json:"left_id"`
	RightID      string  `json:"right_id"`
	NameScore    float64 `json:"name_score"`
	OverallScore float64 `json:"overall_score"`
}

// Cluster is a group of organizations proposed to be one entity. CanonicalID
// is the earliest inserted member.
type Cluster struct {
	CanonicalID string   `json:"canonical_id"`
	MemberIDs   []string `json:"member_ids"`
	Pairs       []Pair   `json:"pairs"`
}

// Report is the reconciliation proposal for a registry snapshot.
type Report struct {
	Organizations int       `json:"organizations"`
	Comparisons   int       `json:"comparisons"`
	Clusters      []Cluster `json:"clusters"`
}

// Reconciler clusters organizations with union-find over accepted pairs.
type Reconciler struct {
	comparer Comparer
	logger   ectologger.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(comparer Comparer, logger ectologger.Logger) *Reconciler {
	return &Reconciler{comparer: comparer, logger: logger}
}

// Reconcile compares every pair of orgs (given in insertion order) and returns
// clusters with more than one member, ordered by their canonical member.
func (r *Reconciler) Reconcile(ctx context.Context, orgs []models.Organization) (*Report, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Reconciler.Reconcile")
	defer span.End()

	uf := newUnionFind(len(orgs))
	report := &Report{Organizations: len(orgs)}
	var pairs []struct {
		i, j int
		pair Pair
	}

	for i := 0; i < len(orgs); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(orgs); j++ {
			report.Comparisons++
			score, decision := r.comparer.Compare(orgs[j].Fields, orgs[i].Fields)
			if !decision.Matched {
				continue
			}
			uf.union(i, j)
			pairs = append(pairs, struct {
				i, j int
				pair Pair
			}{i, j, Pair{
				LeftID:       orgs[i].ID,
				RightID:      orgs[j].ID,
				NameScore:    score.Name,
				OverallScore: score.Overall,
			}})
		}
	}

	byRoot := map[int]*Cluster{}
	for i := range orgs {
		root := uf.find(i)
		c, ok := byRoot[root]
		if !ok {
			// root is always the smallest index, so the first member seen is canonical
			c = &Cluster{CanonicalID: orgs[i].ID}
			byRoot[root] = c
		}
		c.MemberIDs = append(c.MemberIDs, orgs[i].ID)
	}
	for _, p := range pairs {
		c := byRoot[uf.find(p.i)]
		c.Pairs = append(c.Pairs, p.pair)
	}

	roots := make([]int, 0, len(byRoot))
	for root, c := range byRoot {
		if len(c.MemberIDs) > 1 {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)
	for _, root := range roots {
		report.Clusters = append(report.Clusters, *byRoot[root])
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"organizations": report.Organizations,
		"comparisons":   report.Comparisons,
		"clusters":      len(report.Clusters),
	}).Info("Reconciliation complete")

	return report, nil
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union keeps the smaller index as root.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
