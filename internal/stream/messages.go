// Package stream pushes committed ledger events to browser clients over
// WebSocket.
package stream

import (
	"encoding/json"
	"slices"

	"github.com/matthewbaird/lawoffice/internal/event"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "subscribe", "ping"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// SubscribeData narrows the events a connection receives. Empty fields
// match everything.
type SubscribeData struct {
	Categories []string `json:"categories,omitempty"`
	EntityType string   `json:"entity_type,omitempty"`
	EntityID   string   `json:"entity_id,omitempty"`
}

func (f SubscribeData) matches(evt event.DomainEvent) bool {
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, evt.Category) {
		return false
	}
	if f.EntityType == "" {
		return true
	}
	for _, ref := range evt.AffectedEntities {
		if ref.EntityType == f.EntityType && (f.EntityID == "" || ref.EntityID == f.EntityID) {
			return true
		}
	}
	return false
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "hello", "event", "subscribed", "pong", "error"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// HelloData is sent once after the upgrade.
type HelloData struct {
	ConnectionID string `json:"connection_id"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
