// Package pipeline runs resolution over a batch of records and fans the
// linked output to downstream sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/registry"
	"github.com/Ramsey-B/fern/pkg/resolution"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Batch is what a sink receives after one Process call.
type Batch struct {
	Links []models.LinkedRecord
	// Created holds organizations inserted by this batch, in insertion order.
	Created []models.Organization
	// Organizations holds every organization the links point at, in first-link order.
	Organizations []models.Organization
}

// Sink accepts resolution output. A failing sink never undoes registry writes.
type Sink interface {
	Name() string
	Write(ctx context.Context, batch Batch) error
}

// SinkError reports a sink that failed to accept a batch.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string { return fmt.Sprintf("sink %s: %v", e.Sink, e.Err) }

func (e *SinkError) Unwrap() error { return e.Err }

// OnlySinkErrors reports whether err is made up entirely of sink failures,
// meaning every record was resolved.
func OnlySinkErrors(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*SinkError); ok {
		return true
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return false
	}
	for _, e := range joined.Unwrap() {
		if !OnlySinkErrors(e) {
			return false
		}
	}
	return len(joined.Unwrap()) > 0
}

type Pipeline struct {
	resolver *resolution.Resolver
	registry *registry.Registry
	sinks    []Sink
	logger   ectologger.Logger
}

func New(resolver *resolution.Resolver, reg *registry.Registry, logger ectologger.Logger, sinks ...Sink) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		registry: reg,
		sinks:    sinks,
		logger:   logger,
	}
}

// Registry returns the registry the pipeline resolves against.
func (p *Pipeline) Registry() *registry.Registry {
	return p.registry
}

// Resolver returns the pipeline's resolver.
func (p *Pipeline) Resolver() *resolution.Resolver {
	return p.resolver
}

// Process resolves records in order and delivers the links to every sink.
// Links resolved before a resolution error are still delivered; the
// returned error joins the resolution error with any sink errors.
func (p *Pipeline) Process(ctx context.Context, records []models.IncomingRecord) ([]models.LinkedRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.Process")
	defer span.End()

	links, resolveErr := p.resolver.ResolveBatch(ctx, records, p.registry)
	if len(links) == 0 {
		return links, resolveErr
	}

	// sinks run on a context that survives cancellation of the batch
	sinkErr := p.deliver(context.WithoutCancel(ctx), p.batch(links))
	return links, errors.Join(resolveErr, sinkErr)
}

// Handle processes a single record; it is the Kafka consumer's handler.
func (p *Pipeline) Handle(ctx context.Context, record models.IncomingRecord) error {
	_, err := p.Process(ctx, []models.IncomingRecord{record})
	return err
}

func (p *Pipeline) batch(links []models.LinkedRecord) Batch {
	b := Batch{Links: links}
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		if seen[link.OrganizationID] {
			continue
		}
		seen[link.OrganizationID] = true

		org, ok := p.registry.Lookup(link.OrganizationID)
		if !ok {
			continue
		}
		b.Organizations = append(b.Organizations, org)
		if !link.Matched {
			b.Created = append(b.Created, org)
		}
	}
	return b
}

func (p *Pipeline) deliver(ctx context.Context, batch Batch) error {
	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Write(ctx, batch); err != nil {
			metrics.SinkErrorsTotal.WithLabelValues(sink.Name()).Add(float64(len(batch.Links)))
			p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"sink":  sink.Name(),
				"links": len(batch.Links),
			}).Error("Sink failed to accept batch")
			errs = append(errs, &SinkError{Sink: sink.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}
