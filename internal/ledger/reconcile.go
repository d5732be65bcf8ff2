package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/shopspring/decimal"
)

// BalanceReport compares the stored balance column with the balance
// recomputed from live em_conta charges and their realized payments.
type BalanceReport struct {
	ClientID int64           `json:"client_id"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
	Drift    decimal.Decimal `json:"drift"`
}

// InSync reports whether stored and computed agree to the cent.
func (r BalanceReport) InSync() bool { return r.Drift.IsZero() }

// computedBalance sums value_charged minus realized payments over the
// client's live em_conta processes and services.
const computedBalanceQuery = `
	SELECT c.value_charged,
	       COALESCE((SELECT SUM(p.value_paid) FROM payments p
	                 WHERE p.%[2]s = c.id AND p.status = ?), 0)
	FROM %[1]s c
	WHERE c.client_id = ? AND c.deleted_at IS NULL AND c.payment_method = ?`

func computedBalance(ctx context.Context, db DB, clientID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, kind := range []ChargeKind{KindProcess, KindService} {
		query := fmt.Sprintf(computedBalanceQuery, kind.table(), kind.paymentColumn())
		rows, err := db.QueryContext(ctx, query, string(Pago), clientID, string(EmConta))
		if err != nil {
			return total, fmt.Errorf("recomputing %s balance of client %d: %w", kind, clientID, err)
		}
		for rows.Next() {
			var value, paid decimal.Decimal
			if err := rows.Scan(&value, &paid); err != nil {
				rows.Close()
				return total, err
			}
			total = total.Add(value.Sub(paid))
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// RecomputeBalance reports stored against computed balance for a client.
func (l *Ledger) RecomputeBalance(ctx context.Context, db DB, clientID int64) (BalanceReport, error) {
	r := BalanceReport{ClientID: clientID}
	err := db.QueryRowContext(ctx, `SELECT balance FROM clients WHERE id = ?`, clientID).Scan(&r.Stored)
	if errors.Is(err, sql.ErrNoRows) {
		return r, notFound("client", clientID)
	}
	if err != nil {
		return r, fmt.Errorf("loading balance of client %d: %w", clientID, err)
	}
	if r.Computed, err = computedBalance(ctx, db, clientID); err != nil {
		return r, err
	}
	// Both sides round-trip through REAL columns; compare at cent precision.
	r.Drift = r.Stored.Sub(r.Computed).Round(2)
	return r, nil
}

// RepairBalance overwrites the stored balance with the computed one and
// returns the report from before the repair.
func (l *Ledger) RepairBalance(ctx context.Context, db DB, clientID int64) (BalanceReport, error) {
	r, err := l.RecomputeBalance(ctx, db, clientID)
	if err != nil {
		return r, err
	}
	if r.InSync() {
		return r, nil
	}
	query, args := entsql.Dialect(dialect.SQLite).
		Update("clients").
		Set("balance", r.Computed.InexactFloat64()).
		Set("updated_at", formatTimestamp(l.now())).
		Where(entsql.EQ("id", clientID)).
		Query()
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return r, fmt.Errorf("repairing balance of client %d: %w", clientID, err)
	}
	l.log.WithField("funcName", "RepairBalance").
		WithField("client_id", clientID).
		WithField("drift", r.Drift.String()).
		Info("client balance repaired")
	return r, nil
}

// ClientIDs lists every live client, for batch reconciliation.
func (l *Ledger) ClientIDs(ctx context.Context, db DB) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM clients WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
