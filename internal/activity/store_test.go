package activity

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/lawoffice/internal/store/storetest"
	"github.com/matthewbaird/lawoffice/internal/types"
)

var base = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func testEntry(entityType, entityID, category, weight, summary string, daysAgo int) types.ActivityEntry {
	return types.ActivityEntry{
		EventID:           "evt-" + entityID + "-" + summary,
		EventType:         "test_event",
		OccurredAt:        time.Now().UTC().AddDate(0, 0, -daysAgo),
		IndexedEntityType: entityType,
		IndexedEntityID:   entityID,
		EntityRole:        types.RoleSubject,
		SourceRefs:        []types.SourceRef{{EntityType: entityType, EntityID: entityID, Role: types.RoleSubject}},
		Summary:           summary,
		Category:          category,
		Weight:            weight,
		Polarity:          "neutral",
	}
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sql", func(t *testing.T) {
		s := NewSQLStore(storetest.Open(t))
		require.NoError(t, s.CreateTable(context.Background()))
		fn(t, s)
	})
}

func write(t *testing.T, s Store, entries ...types.ActivityEntry) {
	t.Helper()
	require.NoError(t, s.WriteEntries(context.Background(), entries))
}

func TestStore_WriteAndQuery(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		e := testEntry("client", "1", "billing", "minor", "Process P-1 created", 10)
		e.Payload = json.RawMessage(`{"process_id":7}`)
		write(t, s,
			e,
			testEntry("client", "1", "payment", "info", "Payment recorded", 5),
			testEntry("client", "2", "billing", "minor", "Process P-2 created", 10),
		)

		results, cursor, total, err := s.QueryByEntity(ctx, "client", "1", DefaultQueryOptions())
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Empty(t, cursor)
		require.Len(t, results, 2)
		assert.Equal(t, "Payment recorded", results[0].Summary, "newest first")
		assert.JSONEq(t, `{"process_id":7}`, string(results[1].Payload))
		require.Len(t, results[1].SourceRefs, 1)
		assert.Equal(t, "client", results[1].SourceRefs[0].EntityType)
	})
}

func TestStore_WriteIsIdempotent(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		e := testEntry("client", "1", "billing", "minor", "Once", 1)
		write(t, s, e)
		write(t, s, e)

		_, _, total, err := s.QueryByEntity(context.Background(), "client", "1", DefaultQueryOptions())
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})
}

func TestStore_QueryByEntity_Filters(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		write(t, s,
			testEntry("process", "7", "billing", "info", "Recent info", 5),
			testEntry("process", "7", "billing", "major", "Recent major", 4),
			testEntry("process", "7", "payment", "critical", "Recent critical", 3),
			testEntry("process", "7", "billing", "major", "Old major", 400),
		)

		opts := DefaultQueryOptions()
		opts.Categories = []string{"billing"}
		results, _, total, err := s.QueryByEntity(ctx, "process", "7", opts)
		require.NoError(t, err)
		assert.Equal(t, 2, total, "six-month window drops the old entry")
		assert.Len(t, results, 2)

		opts = DefaultQueryOptions()
		opts.MinWeight = "major"
		results, _, total, err = s.QueryByEntity(ctx, "process", "7", opts)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		for _, r := range results {
			assert.NotEqual(t, "info", r.Weight)
		}

		opts = QueryOptions{}
		_, _, total, err = s.QueryByEntity(ctx, "process", "7", opts)
		require.NoError(t, err)
		assert.Equal(t, 4, total, "no window means everything")
	})
}

func TestStore_QueryByEntity_Pagination(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 1; i <= 5; i++ {
			write(t, s, testEntry("client", "9", "payment", "info", "Payment "+string(rune('A'+i-1)), i))
		}

		opts := DefaultQueryOptions()
		opts.Limit = 2
		page1, cursor, total, err := s.QueryByEntity(ctx, "client", "9", opts)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, page1, 2)
		require.NotEmpty(t, cursor)
		assert.Equal(t, "Payment A", page1[0].Summary)

		opts.Cursor = cursor
		page2, cursor, total, err := s.QueryByEntity(ctx, "client", "9", opts)
		require.NoError(t, err)
		assert.Equal(t, 5, total, "total ignores the cursor")
		require.Len(t, page2, 2)
		assert.Equal(t, "Payment C", page2[0].Summary)

		opts.Cursor = cursor
		page3, cursor, _, err := s.QueryByEntity(ctx, "client", "9", opts)
		require.NoError(t, err)
		require.Len(t, page3, 1)
		assert.Equal(t, "Payment E", page3[0].Summary)
		assert.Empty(t, cursor)
	})
}

func TestStore_Search(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		write(t, s,
			testEntry("client", "1", "expense", "info", "Recurring expense Aluguel paid", 5),
			testEntry("office_expense", "3", "expense", "info", "Recurring expense Aluguel paid", 5),
			testEntry("client", "2", "payment", "info", "Payment of 100% settled", 3),
		)

		results, total, err := s.Search(ctx, "ALUGUEL", DefaultSearchOptions())
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, results, 2)

		opts := DefaultSearchOptions()
		opts.EntityType = "office_expense"
		results, total, err = s.Search(ctx, "aluguel", opts)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, results, 1)
		assert.Equal(t, "office_expense", results[0].IndexedEntityType)

		results, total, err = s.Search(ctx, "100%", DefaultSearchOptions())
		require.NoError(t, err)
		assert.Equal(t, 1, total, "percent is literal")
		assert.Len(t, results, 1)

		results, total, err = s.Search(ctx, "zzzznotfound", DefaultSearchOptions())
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, results)
	})
}

func TestStore_EmptyStore(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		results, cursor, total, err := s.QueryByEntity(context.Background(), "client", "nobody", DefaultQueryOptions())
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, results)
		assert.Empty(t, cursor)
	})
}

func TestSQLStore_TimestampRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewSQLStore(storetest.Open(t))
	require.NoError(t, s.CreateTable(ctx))
	require.NoError(t, s.CreateTable(ctx), "CreateTable is idempotent")

	e := testEntry("client", "1", "client", "info", "Client created", 0)
	e.OccurredAt = base.Add(123456789 * time.Nanosecond)
	write(t, s, e)

	results, _, _, err := s.QueryByEntity(ctx, "client", "1", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, e.OccurredAt.Equal(results[0].OccurredAt))
}

func TestWeights(t *testing.T) {
	assert.True(t, IsAtLeastWeight("critical", "major"))
	assert.True(t, IsAtLeastWeight("major", "major"))
	assert.False(t, IsAtLeastWeight("minor", "major"))
	assert.False(t, IsAtLeastWeight("bogus", "info"))
	assert.ElementsMatch(t, []string{"critical", "major"}, weightsAtLeast("major"))
}
