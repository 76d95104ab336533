package organization

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const table = "organizations"

var columns = []string{
	"organization_id", "seq", "company_name", "address", "locality", "region",
	"postal_code", "country", "external_org_ref", "external_location_ref", "created_at",
}

// Repository persists the organization registry. It implements registry.Store.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new organization repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// InsertOrganization appends an organization row. Insertion order is kept by seq.
func (r *Repository) InsertOrganization(ctx context.Context, org *models.Organization) error {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.InsertOrganization")
	defer span.End()

	sb := database.NewInsertBuilder(r.db.Flavor())
	sb.InsertInto(table)
	sb.Cols("organization_id", "company_name", "address", "locality", "region", "postal_code", "country", "external_org_ref", "external_location_ref", "created_at")
	sb.Values(org.ID, org.Name, org.Address, org.Locality, org.Region, org.PostalCode, org.Country, org.ExternalOrgRef, org.ExternalLocationRef, org.CreatedAt)

	query, args := sb.Build()
	if _, err := database.QueryerFromContext(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"organization_id": org.ID}).Error("Failed to insert organization")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert organization")
	}
	return nil
}

// UpdateExternalRefs overwrites both reference columns; empty values are stored as NULL.
func (r *Repository) UpdateExternalRefs(ctx context.Context, id string, refs models.ExternalRefs) error {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.UpdateExternalRefs")
	defer span.End()

	sb := database.NewUpdateBuilder(r.db.Flavor())
	sb.Update(table)
	sb.Set(
		sb.Assign("external_org_ref", nullable(refs.OrgRef)),
		sb.Assign("external_location_ref", nullable(refs.LocationRef)),
	)
	sb.Where(sb.Equal("organization_id", id))

	query, args := sb.Build()
	result, err := database.QueryerFromContext(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"organization_id": id}).Error("Failed to update external refs")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update external refs")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("organization %s not found", id))
	}
	return nil
}

// ListOrganizations returns every organization in insertion order.
func (r *Repository) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.ListOrganizations")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select(columns...)
	sb.From(table)
	sb.OrderBy("seq").Asc()

	query, args := sb.Build()
	var orgs []models.Organization
	if err := database.QueryerFromContext(ctx, r.db).SelectContext(ctx, &orgs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list organizations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list organizations")
	}
	return orgs, nil
}

// Get retrieves an organization by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Organization, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("organization_id", id))

	query, args := sb.Build()
	var org models.Organization
	if err := database.QueryerFromContext(ctx, r.db).GetContext(ctx, &org, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("organization %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get organization")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get organization")
	}
	return &org, nil
}

// Count returns the number of stored organizations.
func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.Count")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select("COUNT(*)")
	sb.From(table)

	query, args := sb.Build()
	var count int
	if err := database.QueryerFromContext(ctx, r.db).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count organizations")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count organizations")
	}
	return count, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
