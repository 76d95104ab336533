// Package resolution drives records through the matching engine and keeps the
// registry up to date, one record at a time in arrival order.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/registry"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ErrNilBatch is returned when a batch is missing entirely. An empty batch is fine.
var ErrNilBatch = errors.New("record batch is nil")

// Resolver resolves records against a caller-owned registry. Each resolve
// holds the resolver's lock from candidate search to registry write, so a
// registry must only be mutated through one Resolver.
type Resolver struct {
	engine *matching.Engine
	logger ectologger.Logger
	mu     sync.Mutex
	now    func() time.Time
}

// NewResolver creates a new resolver
func NewResolver(engine *matching.Engine, logger ectologger.Logger) *Resolver {
	return &Resolver{
		engine: engine,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Engine returns the matching engine used by the resolver
func (r *Resolver) Engine() *matching.Engine {
	return r.engine
}

// Resolve links one record to an existing organization or inserts a new one.
func (r *Resolver) Resolve(ctx context.Context, record models.IncomingRecord, reg *registry.Registry) (models.MatchResult, error) {
	linked, err := r.resolve(ctx, record, reg)
	if err != nil {
		return models.MatchResult{}, err
	}
	return linked.result, nil
}

// ResolveBatch resolves records in order. A cancelled ctx stops before the
// next record and returns what was linked so far together with ctx's error.
func (r *Resolver) ResolveBatch(ctx context.Context, records []models.IncomingRecord, reg *registry.Registry) ([]models.LinkedRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.ResolveBatch")
	defer span.End()

	if records == nil {
		return nil, ErrNilBatch
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}

	out := make([]models.LinkedRecord, 0, len(records))
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			r.logger.WithContext(ctx).WithFields(map[string]any{
				"resolved":  i,
				"remaining": len(records) - i,
			}).Warn("Batch stopped before completion")
			return out, err
		}

		linked, err := r.resolve(ctx, record, reg)
		if err != nil {
			return out, fmt.Errorf("failed to resolve record %d (%s): %w", i, record.RecordID, err)
		}
		out = append(out, linked.LinkedRecord)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"records":       len(records),
		"organizations": reg.Len(),
	}).Info("Resolved batch")
	return out, nil
}

type linkedResult struct {
	models.LinkedRecord
	result models.MatchResult
}

func (r *Resolver) resolve(ctx context.Context, record models.IncomingRecord, reg *registry.Registry) (linkedResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.Resolve")
	defer span.End()

	if reg == nil {
		return linkedResult{}, fmt.Errorf("registry is required")
	}

	start := time.Now()
	source := string(record.Source)

	raw, refs, err := record.Project()
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues(source, metrics.OutcomeFailed).Inc()
		return linkedResult{}, err
	}
	fields := r.engine.Normalize(raw)

	r.mu.Lock()
	defer r.mu.Unlock()

	eval, err := r.engine.Evaluate(ctx, fields, reg.All())
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues(source, metrics.OutcomeFailed).Inc()
		return linkedResult{}, err
	}

	result := models.MatchResult{
		OverallScore: eval.Score.Overall,
		NameScore:    eval.Score.Name,
		Matched:      eval.Decision.Matched,
		Ambiguous:    eval.Decision.Ambiguous,
	}
	if eval.Candidate != nil {
		result.CandidateID = eval.Candidate.Organization.ID
		metrics.CandidateNameScore.Observe(eval.Score.Name)
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"source":        source,
		"record_id":     record.RecordID,
		"candidate_id":  result.CandidateID,
		"name_score":    result.NameScore,
		"overall_score": result.OverallScore,
		"reason":        eval.Decision.Reason,
	})

	if eval.Decision.Ambiguous {
		metrics.AmbiguousMatchesTotal.WithLabelValues(source, eval.Decision.Reason).Inc()
		log.Warn("Ambiguous match decision")
	}

	if eval.Decision.Matched {
		result.OrganizationID = eval.Candidate.Organization.ID
		if !refs.IsEmpty() {
			if _, err := reg.AttachExternalRefs(ctx, result.OrganizationID, refs); err != nil {
				// the link stands; conflicting master data is reported, not applied
				log.WithError(err).Warn("Did not attach external references")
			}
		}
		metrics.ResolutionsTotal.WithLabelValues(source, metrics.OutcomeMatched).Inc()
		log.Debug("Linked record to existing organization")
	} else {
		id, err := reg.Insert(ctx, fields, refs)
		if err != nil {
			metrics.ResolutionsTotal.WithLabelValues(source, metrics.OutcomeFailed).Inc()
			return linkedResult{}, err
		}
		result.OrganizationID = id
		metrics.ResolutionsTotal.WithLabelValues(source, metrics.OutcomeCreated).Inc()
		metrics.RegistrySize.Set(float64(reg.Len()))
		log.WithField("organization_id", id).Debug("Created organization")
	}
	metrics.ResolveDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	recordID := record.RecordID
	if recordID == "" {
		recordID = fingerprint.ForRecord(record.Source, fields)
	}

	return linkedResult{
		LinkedRecord: models.LinkedRecord{
			Source:         record.Source,
			RecordID:       recordID,
			OrganizationID: result.OrganizationID,
			Matched:        result.Matched,
			OverallScore:   result.OverallScore,
			NameScore:      result.NameScore,
			Ambiguous:      result.Ambiguous,
			Fingerprint:    fingerprint.ForFields(fields),
			Fields:         fields,
			LinkedAt:       r.now(),
		},
		result: result,
	}, nil
}
