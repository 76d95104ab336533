package recordlink

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const table = "record_links"

var columns = []string{
	"source", "record_id", "organization_id", "matched", "overall_score", "name_score",
	"ambiguous", "fingerprint", "company_name", "address", "locality", "region",
	"postal_code", "country", "linked_at",
}

// Repository stores the record-to-organization links produced by resolution.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new record link repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create stores a single link.
func (r *Repository) Create(ctx context.Context, link *models.LinkedRecord) error {
	return r.CreateBatch(ctx, []models.LinkedRecord{*link})
}

// CreateBatch stores links in one statement, preserving their order.
func (r *Repository) CreateBatch(ctx context.Context, links []models.LinkedRecord) error {
	ctx, span := tracing.StartSpan(ctx, "recordlink.Repository.CreateBatch")
	defer span.End()

	if len(links) == 0 {
		return nil
	}

	sb := database.NewInsertBuilder(r.db.Flavor())
	sb.InsertInto(table)
	sb.Cols(columns...)
	for _, l := range links {
		sb.Values(l.Source, l.RecordID, l.OrganizationID, l.Matched, l.OverallScore, l.NameScore,
			l.Ambiguous, l.Fingerprint, l.Name, l.Address, l.Locality, l.Region,
			l.PostalCode, l.Country, l.LinkedAt)
	}

	query, args := sb.Build()
	if _, err := database.QueryerFromContext(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(links)}).Error("Failed to create record links")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create record links")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(links)}).Debug("Created record links batch")
	return nil
}

// ListByOrganization returns the links resolved to organizationID in insertion order.
func (r *Repository) ListByOrganization(ctx context.Context, organizationID string) ([]models.LinkedRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "recordlink.Repository.ListByOrganization")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("organization_id", organizationID))
	sb.OrderBy("seq").Asc()

	return r.list(ctx, sb.Build)
}

// List returns every link in insertion order.
func (r *Repository) List(ctx context.Context) ([]models.LinkedRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "recordlink.Repository.List")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select(columns...)
	sb.From(table)
	sb.OrderBy("seq").Asc()

	return r.list(ctx, sb.Build)
}

func (r *Repository) list(ctx context.Context, build func() (string, []any)) ([]models.LinkedRecord, error) {
	query, args := build()
	var links []models.LinkedRecord
	if err := database.QueryerFromContext(ctx, r.db).SelectContext(ctx, &links, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list record links")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list record links")
	}
	return links, nil
}
