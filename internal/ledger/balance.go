package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PaidAmount sums the realized (Pago) payments linked to a charge.
func (l *Ledger) PaidAmount(ctx context.Context, db DB, ref ChargeRef) (decimal.Decimal, error) {
	var paid decimal.Decimal
	query := fmt.Sprintf(
		`SELECT COALESCE(SUM(value_paid), 0) FROM payments WHERE %s = ? AND status = ?`,
		ref.Kind.paymentColumn())
	if err := db.QueryRowContext(ctx, query, ref.ID, string(Pago)).Scan(&paid); err != nil {
		return decimal.Zero, fmt.Errorf("summing payments of %s %d: %w", ref.Kind, ref.ID, err)
	}
	return paid, nil
}

// chargeState reads the balance-relevant fields of a live charge.
func chargeState(ctx context.Context, db DB, ref ChargeRef) (ChargeState, error) {
	var st ChargeState
	var method string
	query := fmt.Sprintf(
		`SELECT client_id, value_charged, payment_method FROM %s WHERE id = ? AND deleted_at IS NULL`,
		ref.Kind.table())
	err := db.QueryRowContext(ctx, query, ref.ID).Scan(&st.ClientID, &st.ValueCharged, &method)
	if errors.Is(err, sql.ErrNoRows) {
		return st, notFound(string(ref.Kind), ref.ID)
	}
	if err != nil {
		return st, fmt.Errorf("loading %s %d: %w", ref.Kind, ref.ID, err)
	}
	st.PaymentMethod = PaymentMethod(method)
	return st, nil
}

func (l *Ledger) touch(ctx context.Context, db DB, adj *Adjustment, clientID int64, delta decimal.Decimal) error {
	if err := incrementBalance(ctx, db, clientID, delta, l.now()); err != nil {
		return err
	}
	adj.add(clientID, delta)
	return nil
}

func deleteChargePayments(ctx context.Context, db DB, ref ChargeRef) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM payments WHERE %s = ?`, ref.Kind.paymentColumn())
	res, err := db.ExecContext(ctx, query, ref.ID)
	if err != nil {
		return 0, fmt.Errorf("deleting payments of %s %d: %w", ref.Kind, ref.ID, err)
	}
	return res.RowsAffected()
}

// AdjustOnUpdate moves client balances to reflect a charge going from old to
// next. old must have been read in the same transaction as the update.
//
// With the client unchanged:
//   - em_conta to em_conta adds next.value - old.value
//   - other to em_conta adds next.value
//   - em_conta to other subtracts old.value - paid and drops the schedule
//   - other to other does nothing
//
// When the client changes, the old client loses old.value - paid if the old
// method was em_conta and the new client gains next.value if the new method
// is em_conta.
func (l *Ledger) AdjustOnUpdate(ctx context.Context, db DB, ref ChargeRef, old, next ChargeState) (Adjustment, error) {
	var adj Adjustment
	oldOn, newOn := old.PaymentMethod.OnAccount(), next.PaymentMethod.OnAccount()
	if !oldOn && !newOn {
		return adj, nil
	}

	var paid decimal.Decimal
	if oldOn {
		var err error
		if paid, err = l.PaidAmount(ctx, db, ref); err != nil {
			return adj, err
		}
	}

	if old.ClientID != next.ClientID {
		if oldOn {
			if err := l.touch(ctx, db, &adj, old.ClientID, old.ValueCharged.Sub(paid).Neg()); err != nil {
				return adj, err
			}
		}
		if newOn {
			if err := l.touch(ctx, db, &adj, next.ClientID, next.ValueCharged); err != nil {
				return adj, err
			}
		}
	} else {
		switch {
		case oldOn && newOn:
			if delta := next.ValueCharged.Sub(old.ValueCharged); !delta.IsZero() {
				if err := l.touch(ctx, db, &adj, next.ClientID, delta); err != nil {
					return adj, err
				}
			}
		case newOn:
			if err := l.touch(ctx, db, &adj, next.ClientID, next.ValueCharged); err != nil {
				return adj, err
			}
		case oldOn:
			if err := l.touch(ctx, db, &adj, next.ClientID, old.ValueCharged.Sub(paid).Neg()); err != nil {
				return adj, err
			}
		}
	}

	if oldOn && !newOn {
		n, err := deleteChargePayments(ctx, db, ref)
		if err != nil {
			return adj, err
		}
		adj.PaymentsDeleted = n
	}

	l.logAdjustment("AdjustOnUpdate", ref, adj)
	return adj, nil
}

// AdjustOnDelete removes a live charge's unpaid remainder from its client's
// balance when it was billed em_conta. Payments are left in place.
func (l *Ledger) AdjustOnDelete(ctx context.Context, db DB, ref ChargeRef) (Adjustment, error) {
	var adj Adjustment
	st, err := chargeState(ctx, db, ref)
	if err != nil {
		return adj, err
	}
	if !st.PaymentMethod.OnAccount() {
		return adj, nil
	}
	paid, err := l.PaidAmount(ctx, db, ref)
	if err != nil {
		return adj, err
	}
	if err := l.touch(ctx, db, &adj, st.ClientID, st.ValueCharged.Sub(paid).Neg()); err != nil {
		return adj, err
	}
	l.logAdjustment("AdjustOnDelete", ref, adj)
	return adj, nil
}

// settle moves the balance of the charge's client by the change in realized
// amount of one of its payments. Charges that are not em_conta, or that are
// gone, are left alone.
func (l *Ledger) settle(ctx context.Context, db DB, ref ChargeRef, before, after decimal.Decimal) (Adjustment, error) {
	var adj Adjustment
	delta := after.Sub(before)
	if delta.IsZero() {
		return adj, nil
	}
	st, err := chargeState(ctx, db, ref)
	if errors.Is(err, ErrNotFound) {
		return adj, nil
	}
	if err != nil {
		return adj, err
	}
	if !st.PaymentMethod.OnAccount() {
		return adj, nil
	}
	if err := l.touch(ctx, db, &adj, st.ClientID, delta.Neg()); err != nil {
		return adj, err
	}
	l.logAdjustment("settle", ref, adj)
	return adj, nil
}

func (l *Ledger) logAdjustment(op string, ref ChargeRef, adj Adjustment) {
	if len(adj.Changes) == 0 && adj.PaymentsDeleted == 0 {
		return
	}
	l.log.WithFields(logrus.Fields{
		"funcName":         op,
		"charge_kind":      ref.Kind,
		"charge_id":        ref.ID,
		"changes":          adj.Changes,
		"payments_deleted": adj.PaymentsDeleted,
	}).Debug("balance adjusted")
}
