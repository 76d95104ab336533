package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	upsertOrganizationsCypher = `
		UNWIND $batch AS props
		MERGE (o:Organization {id: props.id})
		SET o += props
	`
	linkRecordsCypher = `
		UNWIND $batch AS link
		MERGE (o:Organization {id: link.organization_id})
		MERGE (r:SourceRecord {source: link.source, record_id: link.record_id})
		SET r.company_name = link.company_name, r.country = link.country
		MERGE (r)-[rel:RESOLVES_TO]->(o)
		SET rel.matched = link.matched,
			rel.overall_score = link.overall_score,
			rel.name_score = link.name_score,
			rel.ambiguous = link.ambiguous,
			rel.linked_at = link.linked_at
	`
)

// Writer runs a write transaction.
type Writer interface {
	ExecuteWrite(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error)
}

// OrganizationService writes organizations and RESOLVES_TO edges.
type OrganizationService struct {
	client Writer
	logger ectologger.Logger
}

// NewOrganizationService creates a new organization graph service
func NewOrganizationService(client Writer, logger ectologger.Logger) *OrganizationService {
	return &OrganizationService{
		client: client,
		logger: logger,
	}
}

// UpsertOrganizations merges organization nodes by id.
func (s *OrganizationService) UpsertOrganizations(ctx context.Context, orgs []models.Organization) error {
	ctx, span := tracing.StartSpan(ctx, "graph.OrganizationService.UpsertOrganizations")
	defer span.End()

	if len(orgs) == 0 {
		return nil
	}

	batch := make([]map[string]any, len(orgs))
	for i := range orgs {
		batch[i] = organizationProps(orgs[i])
	}
	return s.write(ctx, upsertOrganizationsCypher, batch, "organizations")
}

// LinkRecords merges source record nodes and their edge to the organization.
func (s *OrganizationService) LinkRecords(ctx context.Context, links []models.LinkedRecord) error {
	ctx, span := tracing.StartSpan(ctx, "graph.OrganizationService.LinkRecords")
	defer span.End()

	if len(links) == 0 {
		return nil
	}

	batch := make([]map[string]any, len(links))
	for i := range links {
		batch[i] = linkProps(links[i])
	}
	return s.write(ctx, linkRecordsCypher, batch, "record links")
}

func (s *OrganizationService) write(ctx context.Context, cypher string, batch []map[string]any, what string) error {
	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(batch),
	})

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"batch": batch})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		log.WithError(err).Errorf("Failed to write %s to graph", what)
		return fmt.Errorf("failed to write %s to graph: %w", what, err)
	}

	log.Debugf("Wrote %s to graph", what)
	return nil
}

func organizationProps(org models.Organization) map[string]any {
	refs := org.Refs()
	return map[string]any{
		"id":                    org.ID,
		"company_name":          org.Name,
		"address":               org.Address,
		"locality":              org.Locality,
		"region":                org.Region,
		"postal_code":           org.PostalCode,
		"country":               org.Country,
		"external_org_ref":      refs.OrgRef,
		"external_location_ref": refs.LocationRef,
		"created_at":            org.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func linkProps(link models.LinkedRecord) map[string]any {
	return map[string]any{
		"organization_id": link.OrganizationID,
		"source":          string(link.Source),
		"record_id":       link.RecordID,
		"company_name":    link.Name,
		"country":         link.Country,
		"matched":         link.Matched,
		"overall_score":   link.OverallScore,
		"name_score":      link.NameScore,
		"ambiguous":       link.Ambiguous,
		"linked_at":       link.LinkedAt.UTC().Format(time.RFC3339),
	}
}
