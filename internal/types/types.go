// Package types holds value types shared by the event, activity and stream
// packages.
package types

import (
	"encoding/json"
	"time"
)

// Entity type names used in SourceRef and activity queries.
const (
	EntityClient        = "client"
	EntityProcess       = "process"
	EntityService       = "service"
	EntityPayment       = "payment"
	EntityOfficeExpense = "office_expense"
)

// Roles an entity can play in an event.
const (
	RoleSubject = "subject"
	RoleTarget  = "target"
	RoleRelated = "related"
	RoleContext = "context"
)

// SourceRef identifies an entity referenced by a domain event.
type SourceRef struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Role       string `json:"role"`
}

// ActivityEntry is a secondary index entry over the domain event log,
// keyed by a referenced entity. One event produces multiple entries.
type ActivityEntry struct {
	EventID           string          `json:"event_id"`
	EventType         string          `json:"event_type"`
	OccurredAt        time.Time       `json:"occurred_at"`
	IndexedEntityType string          `json:"indexed_entity_type"`
	IndexedEntityID   string          `json:"indexed_entity_id"`
	EntityRole        string          `json:"entity_role"`
	SourceRefs        []SourceRef     `json:"source_refs"`
	Summary           string          `json:"summary"`
	Category          string          `json:"category"` // billing, payment, client, expense
	Weight            string          `json:"weight"`   // critical, major, minor, info
	Polarity          string          `json:"polarity"` // positive, negative, neutral
	Payload           json.RawMessage `json:"payload"`
}
