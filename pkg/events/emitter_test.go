package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

type recordingPublisher struct {
	events []*kafka.Event
	err    error
}

func (p *recordingPublisher) PublishEvents(_ context.Context, events []*kafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func newTestEmitter(p Publisher) *Emitter {
	return NewEmitter(p, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestEmitter_OrganizationCreated(t *testing.T) {
	p := &recordingPublisher{}
	createdAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	err := newTestEmitter(p).EmitOrganizationCreated(context.Background(), []models.Organization{
		{ID: "org-1", Fields: models.Fields{Name: "abc pharma"}, CreatedAt: createdAt},
	})
	require.NoError(t, err)
	require.Len(t, p.events, 1)

	event := p.events[0]
	assert.Equal(t, OrganizationCreated, event.EventType)
	assert.Equal(t, "org-1", event.OrganizationID)
	assert.Equal(t, createdAt, event.Timestamp)

	var org models.Organization
	require.NoError(t, json.Unmarshal(event.Data, &org))
	assert.Equal(t, "abc pharma", org.Name)
}

func TestEmitter_RecordLinked(t *testing.T) {
	p := &recordingPublisher{}
	links := []models.LinkedRecord{
		{Source: models.SourceWarningLetter, RecordID: "wl-1", OrganizationID: "org-1"},
		{Source: models.SourceComplianceReport, RecordID: "ncr-1", OrganizationID: "org-1", Matched: true},
	}

	require.NoError(t, newTestEmitter(p).EmitRecordLinked(context.Background(), links))
	require.Len(t, p.events, 2)
	assert.Equal(t, RecordLinked, p.events[1].EventType)

	var link models.LinkedRecord
	require.NoError(t, json.Unmarshal(p.events[1].Data, &link))
	assert.Equal(t, "ncr-1", link.RecordID)
	assert.True(t, link.Matched)

	p.err = errors.New("broker down")
	assert.Error(t, newTestEmitter(p).EmitRecordLinked(context.Background(), links))
}
