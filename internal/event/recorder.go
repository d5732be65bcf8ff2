// Package event defines the ledger's domain events and records them.
package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/matthewbaird/lawoffice/internal/activity"
	"github.com/matthewbaird/lawoffice/internal/types"
)

// ErrNoAffectedEntities is returned for an event that would leave no trace
// in any entity's activity feed.
var ErrNoAffectedEntities = errors.New("event has no affected entities")

// Recorder persists the events produced by one committed ledger operation.
type Recorder interface {
	Record(ctx context.Context, evts ...DomainEvent) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// ActivityRecorder indexes each event once per affected entity (the client,
// the process or service, the payment) and hands the event to its publishers
// once the entries are stored.
type ActivityRecorder struct {
	store      activity.Store
	publishers []Publisher
}

// NewActivityRecorder creates a recorder backed by store. Publishers receive
// events in the order they were recorded.
func NewActivityRecorder(store activity.Store, publishers ...Publisher) *ActivityRecorder {
	return &ActivityRecorder{store: store, publishers: publishers}
}

// Record writes the entries for all evts in a single store call, so an
// expense payment and its successor land together. Nothing is published
// when the write fails.
func (r *ActivityRecorder) Record(ctx context.Context, evts ...DomainEvent) error {
	var entries []types.ActivityEntry
	for _, evt := range evts {
		if len(evt.AffectedEntities) == 0 {
			return fmt.Errorf("recording %s: %w", evt.EventType, ErrNoAffectedEntities)
		}
		entries = append(entries, fanOut(evt)...)
	}
	if len(entries) == 0 {
		return nil
	}
	if err := r.store.WriteEntries(ctx, entries); err != nil {
		return err
	}
	for _, evt := range evts {
		for _, p := range r.publishers {
			p.Publish(ctx, evt)
		}
	}
	return nil
}

func fanOut(evt DomainEvent) []types.ActivityEntry {
	out := make([]types.ActivityEntry, len(evt.AffectedEntities))
	for i, ref := range evt.AffectedEntities {
		out[i] = types.ActivityEntry{
			EventID:           evt.ID,
			EventType:         evt.EventType,
			OccurredAt:        evt.OccurredAt,
			IndexedEntityType: ref.EntityType,
			IndexedEntityID:   ref.EntityID,
			EntityRole:        ref.Role,
			SourceRefs:        evt.AffectedEntities,
			Summary:           evt.Summary,
			Category:          evt.Category,
			Weight:            evt.Weight,
			Polarity:          evt.Polarity,
			Payload:           evt.Payload,
		}
	}
	return out
}
