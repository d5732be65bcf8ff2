// Package activity stores the per-entity activity trail built from ledger
// events and answers timeline and search queries over it.
package activity

import "time"

const (
	defaultQueryLimit  = 100
	maxQueryLimit      = 500
	defaultSearchLimit = 20
)

// QueryOptions controls filtering and pagination for entity activity queries.
type QueryOptions struct {
	Since      *time.Time
	Until      *time.Time
	Categories []string // billing, payment, client, expense
	MinWeight  string   // default: "info"
	Limit      int      // default 100, max 500
	Cursor     string   // occurred_at of the last entry of the previous page
}

// SearchOptions controls filtering for activity search.
type SearchOptions struct {
	EntityType string
	Since      *time.Time
	Categories []string
	Limit      int // default 20
}

// DefaultQueryOptions returns QueryOptions covering the last six months.
func DefaultQueryOptions() QueryOptions {
	now := time.Now()
	sixMonthsAgo := now.AddDate(0, -6, 0)
	return QueryOptions{
		Since:     &sixMonthsAgo,
		Until:     &now,
		MinWeight: "info",
		Limit:     defaultQueryLimit,
	}
}

// DefaultSearchOptions returns SearchOptions with sensible defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{Limit: defaultSearchLimit}
}

func (o QueryOptions) limit() int {
	if o.Limit <= 0 || o.Limit > maxQueryLimit {
		return defaultQueryLimit
	}
	return o.Limit
}

func (o SearchOptions) limit() int {
	if o.Limit <= 0 {
		return defaultSearchLimit
	}
	return o.Limit
}

func (o QueryOptions) cursor() (time.Time, bool) {
	if o.Cursor == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, o.Cursor)
	return t, err == nil
}
