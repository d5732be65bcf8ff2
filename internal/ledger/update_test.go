package ledger

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDB captures statements and reports one affected row.
type recordingDB struct {
	DB
	queries []string
	args    [][]any
}

type oneRow struct{}

func (oneRow) LastInsertId() (int64, error) { return 0, nil }
func (oneRow) RowsAffected() (int64, error) { return 1, nil }

func (r *recordingDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	r.queries = append(r.queries, query)
	r.args = append(r.args, args)
	return oneRow{}, nil
}

func TestChangeSet_OnlyWritesSetColumns(t *testing.T) {
	rec := &recordingDB{}
	cs := newChangeSet("office_expenses")
	cs.set("status", "Pago")
	cs.setString("description", nil)
	cs.setMoney("amount", nil)

	require.NoError(t, cs.apply(context.Background(), rec, 7, t0, "office expense"))
	require.Len(t, rec.queries, 1)

	q := rec.queries[0]
	assert.Contains(t, q, "status")
	assert.Contains(t, q, "updated_at")
	assert.Contains(t, q, "deleted_at")
	assert.NotContains(t, q, "description")
	assert.NotContains(t, q, "amount")
	assert.Equal(t, []any{"Pago", "2024-05-10 12:00:00", int64(7)}, rec.args[0])
}

func TestIncrementBalance_IsSingleStatement(t *testing.T) {
	rec := &recordingDB{}
	require.NoError(t, incrementBalance(context.Background(), rec, 3, dec("-12.5"), t0))
	require.Len(t, rec.queries, 1)
	assert.Contains(t, rec.queries[0], "balance")
	assert.Contains(t, rec.queries[0], "+")
	assert.Contains(t, rec.args[0], -12.5)
}
