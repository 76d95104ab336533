// Package events publishes organization lifecycle and record link events.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Event types
const (
	OrganizationCreated = "organization.created"
	RecordLinked        = "record.linked"
)

// Publisher sends a batch of events.
type Publisher interface {
	PublishEvents(ctx context.Context, events []*kafka.Event) error
}

// Emitter turns resolution output into events.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitOrganizationCreated emits one event per new organization.
func (e *Emitter) EmitOrganizationCreated(ctx context.Context, orgs []models.Organization) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitOrganizationCreated")
	defer span.End()

	events := make([]*kafka.Event, 0, len(orgs))
	for i := range orgs {
		data, err := json.Marshal(orgs[i])
		if err != nil {
			return err
		}
		events = append(events, &kafka.Event{
			EventType:      OrganizationCreated,
			OrganizationID: orgs[i].ID,
			Data:           data,
			Timestamp:      orgs[i].CreatedAt,
		})
	}

	if err := e.publisher.PublishEvents(ctx, events); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit organization.created events")
		return err
	}
	return nil
}

// EmitRecordLinked emits one event per linked record.
func (e *Emitter) EmitRecordLinked(ctx context.Context, links []models.LinkedRecord) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRecordLinked")
	defer span.End()

	events := make([]*kafka.Event, 0, len(links))
	for i := range links {
		data, err := json.Marshal(links[i])
		if err != nil {
			return err
		}
		events = append(events, &kafka.Event{
			EventType:      RecordLinked,
			OrganizationID: links[i].OrganizationID,
			Data:           data,
			Timestamp:      links[i].LinkedAt,
		})
	}

	if err := e.publisher.PublishEvents(ctx, events); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit record.linked events")
		return err
	}
	return nil
}
