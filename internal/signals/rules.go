// Package signals rolls an entity's activity entries up into a summary:
// counts per category, dominant polarity, trend, and escalations when
// related events pile up inside a window.
package signals

import "time"

// Rule escalates a pattern of activity. A count rule fires when at least
// Count entries matching EventType, Category and Polarity (each optional)
// fall within WithinDays. A cross-category rule fires when every
// requirement is met inside the window.
type Rule struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	TriggerType string        `json:"trigger_type"` // count, cross_category
	EventType   string        `json:"event_type,omitempty"`
	Category    string        `json:"category,omitempty"`
	Polarity    string        `json:"polarity,omitempty"`
	Count       int           `json:"count,omitempty"`
	Requires    []Requirement `json:"requires,omitempty"`
	WithinDays  int           `json:"within_days"`
	Weight      string        `json:"weight"`
	Action      string        `json:"recommended_action"`
}

// Requirement is one leg of a cross-category rule.
type Requirement struct {
	Category string `json:"category"`
	Polarity string `json:"polarity,omitempty"`
	MinCount int    `json:"min_count"`
}

// Escalation is a rule that fired, with the entries that triggered it.
type Escalation struct {
	Rule             Rule      `json:"rule"`
	TriggeringCount  int       `json:"triggering_count"`
	EarliestOccurred time.Time `json:"earliest_occurred"`
	LatestOccurred   time.Time `json:"latest_occurred"`
}

// DefaultRules watch for the patterns that precede a wrong client balance.
var DefaultRules = []Rule{
	{
		ID:          "balance_repaired_repeatedly",
		Description: "Stored balance had to be repaired more than once",
		TriggerType: "count",
		EventType:   "balance_repaired",
		Count:       2,
		WithinDays:  90,
		Weight:      "critical",
		Action:      "Audit recent payment edits and deletes for this client.",
	},
	{
		ID:          "payments_deleted",
		Description: "Several payments deleted in a short span",
		TriggerType: "count",
		EventType:   "payment_deleted",
		Count:       3,
		WithinDays:  30,
		Weight:      "major",
		Action:      "Run driftcheck for the affected clients.",
	},
	{
		ID:          "charges_up_payments_down",
		Description: "Balance grew while payments were removed",
		TriggerType: "cross_category",
		Requires: []Requirement{
			{Category: "billing", Polarity: "negative", MinCount: 1},
			{Category: "payment", Polarity: "negative", MinCount: 1},
		},
		WithinDays: 30,
		Weight:     "major",
		Action:     "Confirm the client's statement before the next invoice.",
	},
}
