package ledger

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/shopspring/decimal"
)

// changeSet is a typed partial update: only columns that were set end up in
// the SET clause, and every value travels as a bound parameter.
type changeSet struct {
	table string
	cols  []string
	vals  []any
}

func newChangeSet(table string) *changeSet {
	return &changeSet{table: table}
}

func (c *changeSet) set(col string, v any) {
	c.cols = append(c.cols, col)
	c.vals = append(c.vals, v)
}

func (c *changeSet) setString(col string, v *string) {
	if v != nil {
		c.set(col, *v)
	}
}

func (c *changeSet) setMoney(col string, v *decimal.Decimal) {
	if v != nil {
		c.set(col, v.InexactFloat64())
	}
}

func (c *changeSet) empty() bool { return len(c.cols) == 0 }

// apply writes the change set to the live row id, stamping updated_at.
// It returns ErrNotFound when no live row matched.
func (c *changeSet) apply(ctx context.Context, db DB, id int64, now time.Time, entity string) error {
	b := entsql.Dialect(dialect.SQLite).Update(c.table)
	for i, col := range c.cols {
		b.Set(col, c.vals[i])
	}
	b.Set("updated_at", formatTimestamp(now))
	b.Where(entsql.And(entsql.EQ("id", id), entsql.IsNull("deleted_at")))

	query, args := b.Query()
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

// softDelete stamps deleted_at on a live row.
func softDelete(ctx context.Context, db DB, table, entity string, id int64, now time.Time) error {
	ts := formatTimestamp(now)
	query, args := entsql.Dialect(dialect.SQLite).
		Update(table).
		Set("deleted_at", ts).
		Set("updated_at", ts).
		Where(entsql.And(entsql.EQ("id", id), entsql.IsNull("deleted_at"))).
		Query()
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", entity, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

// incrementBalance runs balance = balance + delta as one statement, so
// concurrent writers can never lose an update.
func incrementBalance(ctx context.Context, db DB, clientID int64, delta decimal.Decimal, now time.Time) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Update("clients").
		Add("balance", delta.InexactFloat64()).
		Set("updated_at", formatTimestamp(now)).
		Where(entsql.EQ("id", clientID)).
		Query()
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("adjusting balance of client %d: %w", clientID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("client", clientID)
	}
	return nil
}
