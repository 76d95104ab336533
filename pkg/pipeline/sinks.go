package pipeline

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/fern/pkg/models"
)

// LinkStore persists linked records.
type LinkStore interface {
	CreateBatch(ctx context.Context, links []models.LinkedRecord) error
}

// LinkStoreSink writes links to the record_links table.
type LinkStoreSink struct {
	Store LinkStore
}

func (s LinkStoreSink) Name() string { return "record_links" }

func (s LinkStoreSink) Write(ctx context.Context, batch Batch) error {
	return s.Store.CreateBatch(ctx, batch.Links)
}

// EventEmitter publishes lifecycle events.
type EventEmitter interface {
	EmitOrganizationCreated(ctx context.Context, orgs []models.Organization) error
	EmitRecordLinked(ctx context.Context, links []models.LinkedRecord) error
}

// EventSink emits organization.created before record.linked.
type EventSink struct {
	Emitter EventEmitter
}

func (s EventSink) Name() string { return "events" }

func (s EventSink) Write(ctx context.Context, batch Batch) error {
	if len(batch.Created) > 0 {
		if err := s.Emitter.EmitOrganizationCreated(ctx, batch.Created); err != nil {
			return fmt.Errorf("organization.created: %w", err)
		}
	}
	if err := s.Emitter.EmitRecordLinked(ctx, batch.Links); err != nil {
		return fmt.Errorf("record.linked: %w", err)
	}
	return nil
}

// GraphWriter mirrors organizations and links into a graph.
type GraphWriter interface {
	UpsertOrganizations(ctx context.Context, orgs []models.Organization) error
	LinkRecords(ctx context.Context, links []models.LinkedRecord) error
}

// GraphSink upserts every touched organization, then the record edges.
type GraphSink struct {
	Graph GraphWriter
}

func (s GraphSink) Name() string { return "graph" }

func (s GraphSink) Write(ctx context.Context, batch Batch) error {
	if err := s.Graph.UpsertOrganizations(ctx, batch.Organizations); err != nil {
		return err
	}
	return s.Graph.LinkRecords(ctx, batch.Links)
}

// FuncSink adapts a function into a Sink.
type FuncSink struct {
	SinkName string
	Fn       func(ctx context.Context, batch Batch) error
}

func (s FuncSink) Name() string { return s.SinkName }

func (s FuncSink) Write(ctx context.Context, batch Batch) error { return s.Fn(ctx, batch) }
