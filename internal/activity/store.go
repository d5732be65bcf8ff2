package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/matthewbaird/lawoffice/internal/types"
)

// Store is the interface for reading and writing activity entries.
// Entries live in their own table next to the ledger tables and are never
// read by ledger operations.
type Store interface {
	// WriteEntries writes one or more activity entries (one event → many entries).
	WriteEntries(ctx context.Context, entries []types.ActivityEntry) error

	// QueryByEntity returns activity entries for a specific entity.
	QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) (entries []types.ActivityEntry, nextCursor string, totalCount int, err error)

	// Search performs a substring search across activity summaries.
	Search(ctx context.Context, query string, opts SearchOptions) (entries []types.ActivityEntry, totalCount int, err error)
}

// occurredLayout is fixed-width so stored timestamps sort as text.
const occurredLayout = "2006-01-02T15:04:05.000000000Z"

// SQLStore implements Store on the SQLite database.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// CreateTable creates the activity_entries table and its indexes.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS activity_entries (
			event_id            TEXT NOT NULL,
			event_type          TEXT NOT NULL,
			occurred_at         TEXT NOT NULL,
			indexed_entity_type TEXT NOT NULL,
			indexed_entity_id   TEXT NOT NULL,
			entity_role         TEXT NOT NULL,
			source_refs         TEXT NOT NULL DEFAULT '[]',
			summary             TEXT NOT NULL,
			category            TEXT NOT NULL,
			weight              TEXT NOT NULL,
			polarity            TEXT NOT NULL,
			payload             TEXT,
			PRIMARY KEY (indexed_entity_type, indexed_entity_id, occurred_at, event_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_entity_category_time
			ON activity_entries (indexed_entity_type, indexed_entity_id, category, occurred_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_time
			ON activity_entries (occurred_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating activity table: %w", err)
		}
	}
	return nil
}

// WriteEntries inserts activity entries. Re-writing an entry is a no-op.
func (s *SQLStore) WriteEntries(ctx context.Context, entries []types.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`INSERT OR IGNORE INTO activity_entries (
		event_id, event_type, occurred_at, indexed_entity_type, indexed_entity_id,
		entity_role, source_refs, summary, category, weight, polarity, payload
	) VALUES `)

	args := make([]any, 0, len(entries)*12)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")

		refs := e.SourceRefs
		if refs == nil {
			refs = []types.SourceRef{}
		}
		refsJSON, err := json.Marshal(refs)
		if err != nil {
			return fmt.Errorf("encoding source refs: %w", err)
		}
		var payload any
		if len(e.Payload) > 0 {
			payload = string(e.Payload)
		}
		args = append(args,
			e.EventID, e.EventType, formatOccurred(e.OccurredAt), e.IndexedEntityType, e.IndexedEntityID,
			e.EntityRole, string(refsJSON), e.Summary, e.Category, e.Weight, e.Polarity, payload,
		)
	}

	if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("writing activity entries: %w", err)
	}
	return nil
}

// QueryByEntity returns activity entries for a specific entity with filtering and pagination.
func (s *SQLStore) QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) ([]types.ActivityEntry, string, int, error) {
	limit := opts.limit()

	w := where{}
	w.add("indexed_entity_type = ?", entityType)
	w.add("indexed_entity_id = ?", entityID)
	if opts.Since != nil {
		w.add("occurred_at >= ?", formatOccurred(*opts.Since))
	}
	if opts.Until != nil {
		w.add("occurred_at <= ?", formatOccurred(*opts.Until))
	}
	w.in("category", opts.Categories)
	if opts.MinWeight != "" && opts.MinWeight != "info" {
		w.in("weight", weightsAtLeast(opts.MinWeight))
	}

	// The total ignores the cursor so every page reports the same count.
	var totalCount int
	countQuery := "SELECT COUNT(*) FROM activity_entries WHERE " + w.String()
	if err := s.db.QueryRowContext(ctx, countQuery, w.args...).Scan(&totalCount); err != nil {
		return nil, "", 0, fmt.Errorf("counting activity entries: %w", err)
	}

	if cursorTime, ok := opts.cursor(); ok {
		w.add("occurred_at < ?", formatOccurred(cursorTime))
	}

	query := selectEntries + w.String() + " ORDER BY occurred_at DESC, event_id LIMIT ?"
	args := append(w.args, limit+1) // fetch one extra for cursor

	entries, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, "", 0, err
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = entries[len(entries)-1].OccurredAt.Format(time.RFC3339Nano)
	}
	return entries, nextCursor, totalCount, nil
}

// Search performs a case-insensitive substring search across activity summaries.
func (s *SQLStore) Search(ctx context.Context, query string, opts SearchOptions) ([]types.ActivityEntry, int, error) {
	w := where{}
	w.add(`summary LIKE '%' || ? || '%' ESCAPE '\'`, escapeLike(query))
	if opts.EntityType != "" {
		w.add("indexed_entity_type = ?", opts.EntityType)
	}
	if opts.Since != nil {
		w.add("occurred_at >= ?", formatOccurred(*opts.Since))
	}
	w.in("category", opts.Categories)

	var totalCount int
	countQuery := "SELECT COUNT(*) FROM activity_entries WHERE " + w.String()
	if err := s.db.QueryRowContext(ctx, countQuery, w.args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("counting activity search: %w", err)
	}

	sqlQuery := selectEntries + w.String() + " ORDER BY occurred_at DESC, event_id LIMIT ?"
	entries, err := s.query(ctx, sqlQuery, append(w.args, opts.limit())...)
	if err != nil {
		return nil, 0, err
	}
	return entries, totalCount, nil
}

const selectEntries = `SELECT event_id, event_type, occurred_at, indexed_entity_type, indexed_entity_id,
	entity_role, source_refs, summary, category, weight, polarity, payload
FROM activity_entries
WHERE `

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]types.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity entries: %w", err)
	}
	defer rows.Close()

	var entries []types.ActivityEntry
	for rows.Next() {
		var (
			e        types.ActivityEntry
			occurred string
			refsJSON string
			payload  sql.NullString
		)
		err := rows.Scan(
			&e.EventID, &e.EventType, &occurred, &e.IndexedEntityType, &e.IndexedEntityID,
			&e.EntityRole, &refsJSON, &e.Summary, &e.Category, &e.Weight, &e.Polarity, &payload,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		if e.OccurredAt, err = time.Parse(occurredLayout, occurred); err != nil {
			return nil, fmt.Errorf("parsing occurred_at %q: %w", occurred, err)
		}
		if refsJSON != "" {
			_ = json.Unmarshal([]byte(refsJSON), &e.SourceRefs)
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading activity entries: %w", err)
	}
	return entries, nil
}

// where accumulates AND-ed conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, arg)
}

func (w *where) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	w.conds = append(w.conds, fmt.Sprintf("%s IN (%s)", column, marks))
	for _, v := range values {
		w.args = append(w.args, v)
	}
}

func (w *where) String() string { return strings.Join(w.conds, " AND ") }

func formatOccurred(t time.Time) string { return t.UTC().Format(occurredLayout) }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
