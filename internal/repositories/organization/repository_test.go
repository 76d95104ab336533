package organization_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/organization"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/registry"
)

func getTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func getTestRepository(t *testing.T) *organization.Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping repository test in short mode")
	}

	db, err := database.Open(context.Background(), database.Config{Driver: database.DriverSQLite, DSN: ":memory:"}, getTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrationService(getTestLogger(), nil).Migrate(db))

	return organization.NewRepository(db, getTestLogger())
}

func TestRepository_InsertAndList(t *testing.T) {
	repo := getTestRepository(t)
	ctx := context.Background()
	ref := "ORG-1"
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &models.Organization{
		ID:        "org-b",
		Fields:    models.Fields{Name: "abc pharma inc", Country: "usa"},
		CreatedAt: createdAt,
	}
	second := &models.Organization{
		ID:             "org-a",
		Fields:         models.Fields{Name: "gamma labs"},
		ExternalOrgRef: &ref,
		CreatedAt:      createdAt,
	}
	require.NoError(t, repo.InsertOrganization(ctx, first))
	require.NoError(t, repo.InsertOrganization(ctx, second))

	orgs, err := repo.ListOrganizations(ctx)
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, "org-b", orgs[0].ID, "insertion order, not id order")
	assert.Equal(t, "abc pharma inc", orgs[0].Name)
	assert.Nil(t, orgs[0].ExternalOrgRef)
	require.NotNil(t, orgs[1].ExternalOrgRef)
	assert.Equal(t, "ORG-1", *orgs[1].ExternalOrgRef)
	assert.True(t, createdAt.Equal(orgs[0].CreatedAt))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRepository_GetAndUpdateRefs(t *testing.T) {
	repo := getTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertOrganization(ctx, &models.Organization{ID: "org-1", CreatedAt: time.Now().UTC()}))
	require.NoError(t, repo.UpdateExternalRefs(ctx, "org-1", models.ExternalRefs{LocationRef: "LOC-9"}))

	org, err := repo.Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExternalRefs{LocationRef: "LOC-9"}, org.Refs())

	_, err = repo.Get(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	err = repo.UpdateExternalRefs(ctx, "missing", models.ExternalRefs{OrgRef: "x"})
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestRepository_BacksRegistry(t *testing.T) {
	repo := getTestRepository(t)
	ctx := context.Background()

	reg := registry.New(registry.WithStore(repo))
	first, err := reg.Insert(ctx, models.Fields{Name: "abc pharma"}, models.ExternalRefs{})
	require.NoError(t, err)
	second, err := reg.Insert(ctx, models.Fields{Name: "xyz biotech"}, models.ExternalRefs{OrgRef: "ORG-2"})
	require.NoError(t, err)
	_, err = reg.AttachExternalRefs(ctx, first, models.ExternalRefs{OrgRef: "ORG-1"})
	require.NoError(t, err)

	loaded, err := registry.Load(ctx, repo)
	require.NoError(t, err)
	orgs := loaded.All()
	require.Len(t, orgs, 2)
	assert.Equal(t, first, orgs[0].ID)
	assert.Equal(t, second, orgs[1].ID)
	assert.Equal(t, "ORG-1", orgs[0].Refs().OrgRef)
	assert.Equal(t, "ORG-2", orgs[1].Refs().OrgRef)
}
