package merging

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
)

func newReconciler(t *testing.T) *Reconciler {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	engine, err := matching.NewEngine(logger, matching.DefaultConfig())
	require.NoError(t, err)
	return NewReconciler(engine, logger)
}

func org(id, name string) models.Organization {
	return models.Organization{ID: id, Fields: models.Fields{
		Name:       name,
		Address:    "1 harbor way",
		Locality:   "cork",
		PostalCode: "t12",
		Country:    "ireland",
	}}
}

func TestReconciler_Reconcile(t *testing.T) {
	orgs := []models.Organization{
		org("a", "omega biologics"),
		org("b", "kappa devices"),
		org("c", "omega biologics ltd"),
		org("d", "omega biologics limited"),
		org("e", "unrelated foods"),
	}

	report, err := newReconciler(t).Reconcile(context.Background(), orgs)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Organizations)
	assert.Equal(t, 10, report.Comparisons)
	require.Len(t, report.Clusters, 1)

	cluster := report.Clusters[0]
	assert.Equal(t, "a", cluster.CanonicalID)
	assert.Equal(t, []string{"a", "c", "d"}, cluster.MemberIDs)
	assert.NotEmpty(t, cluster.Pairs)
	for _, p := range cluster.Pairs {
		assert.GreaterOrEqual(t, p.NameScore, 80.0)
		assert.GreaterOrEqual(t, p.OverallScore, 85.0)
	}
}

func TestReconciler_Transitive(t *testing.T) {
	// b links a and c even if a and c alone would not match
	orgs := []models.Organization{
		org("a", "abc"),
		org("b", "abc labs"),
		org("c", "labs"),
	}
	report, err := newReconciler(t).Reconcile(context.Background(), orgs)
	require.NoError(t, err)
	require.Len(t, report.Clusters, 1)
	assert.Equal(t, []string{"a", "b", "c"}, report.Clusters[0].MemberIDs)
}

func TestReconciler_Empty(t *testing.T) {
	report, err := newReconciler(t).Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Clusters)
	assert.Zero(t, report.Comparisons)
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(4)
	uf.union(3, 1)
	uf.union(2, 3)
	assert.Equal(t, 1, uf.find(2))
	assert.Equal(t, 0, uf.find(0))
}
