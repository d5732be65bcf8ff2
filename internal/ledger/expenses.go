package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NewExpense is the input to CreateExpense.
type NewExpense struct {
	Description string
	Amount      decimal.Decimal
	DueDate     *Date
	IsRecurrent bool
}

func (in NewExpense) Validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return invalid("description is required")
	}
	if !in.Amount.IsPositive() {
		return invalid("amount must be greater than zero")
	}
	if in.DueDate == nil {
		return invalid("due_date is required")
	}
	return nil
}

// ExpenseUpdate carries the fields a caller wants to change.
type ExpenseUpdate struct {
	Status      *SettlementStatus
	Description *string
	Amount      *decimal.Decimal
	DueDate     *Date
	IsRecurrent *bool
}

// ExpenseResult is an updated expense and the successor it spawned, if any.
type ExpenseResult struct {
	Expense   OfficeExpense
	Successor *OfficeExpense
}

const expenseColumns = `id, description, amount, due_date, status, is_recurrent, created_at, updated_at`

func scanExpense(row interface{ Scan(...any) error }) (OfficeExpense, error) {
	var e OfficeExpense
	var due, status, created, updated string
	err := row.Scan(&e.ID, &e.Description, &e.Amount, &due, &status, &e.IsRecurrent, &created, &updated)
	if err != nil {
		return e, err
	}
	e.Status = SettlementStatus(status)
	if e.DueDate, err = ParseDate(due); err != nil {
		return e, err
	}
	if e.CreatedAt, err = ParseTimestamp(created); err != nil {
		return e, err
	}
	if e.UpdatedAt, err = ParseTimestamp(updated); err != nil {
		return e, err
	}
	return e, nil
}

func (l *Ledger) insertExpense(ctx context.Context, db DB, desc string, amount decimal.Decimal, due Date, status SettlementStatus, recurrent bool) (int64, error) {
	ts := formatTimestamp(l.now())
	r, err := db.ExecContext(ctx, `
		INSERT INTO office_expenses (description, amount, due_date, status, is_recurrent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		desc, amount.InexactFloat64(), due.String(), string(status), recurrent, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("inserting office expense: %w", err)
	}
	return r.LastInsertId()
}

// CreateExpense inserts a pending office expense.
func (l *Ledger) CreateExpense(ctx context.Context, db DB, in NewExpense) (OfficeExpense, error) {
	if err := in.Validate(); err != nil {
		return OfficeExpense{}, err
	}
	id, err := l.insertExpense(ctx, db, in.Description, in.Amount, *in.DueDate, Pendente, in.IsRecurrent)
	if err != nil {
		return OfficeExpense{}, err
	}
	return l.GetExpense(ctx, db, id)
}

// GetExpense loads a live office expense.
func (l *Ledger) GetExpense(ctx context.Context, db DB, id int64) (OfficeExpense, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM office_expenses WHERE id = ? AND deleted_at IS NULL`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, notFound("office expense", id)
	}
	if err != nil {
		return e, fmt.Errorf("loading office expense %d: %w", id, err)
	}
	return e, nil
}

// UpdateExpense applies a partial update. When a recurrent expense moves
// from unpaid to Pago, the next month's occurrence is inserted in the same
// transaction. An expense that was already Pago spawns nothing.
func (l *Ledger) UpdateExpense(ctx context.Context, db DB, id int64, upd ExpenseUpdate) (ExpenseResult, error) {
	var res ExpenseResult
	if upd.Status != nil && !upd.Status.Valid() {
		return res, invalid("unknown status %q", *upd.Status)
	}
	if upd.Amount != nil && !upd.Amount.IsPositive() {
		return res, invalid("amount must be greater than zero")
	}
	if upd.Description != nil && strings.TrimSpace(*upd.Description) == "" {
		return res, invalid("description cannot be empty")
	}

	cs := newChangeSet("office_expenses")
	if upd.Status != nil {
		cs.set("status", string(*upd.Status))
	}
	cs.setString("description", upd.Description)
	cs.setMoney("amount", upd.Amount)
	if upd.DueDate != nil {
		cs.set("due_date", upd.DueDate.String())
	}
	if upd.IsRecurrent != nil {
		cs.set("is_recurrent", *upd.IsRecurrent)
	}
	if cs.empty() {
		return res, invalid("no fields to update")
	}

	old, err := l.GetExpense(ctx, db, id)
	if err != nil {
		return res, err
	}
	if err := cs.apply(ctx, db, id, l.now(), "office expense"); err != nil {
		return res, err
	}

	nowPaid := upd.Status != nil && *upd.Status == Pago && old.Status != Pago
	recurrent := old.IsRecurrent
	if upd.IsRecurrent != nil {
		recurrent = *upd.IsRecurrent
	}
	if nowPaid && recurrent {
		desc, amount := old.Description, old.Amount
		if upd.Description != nil {
			desc = *upd.Description
		}
		if upd.Amount != nil {
			amount = *upd.Amount
		}
		nextID, err := l.insertExpense(ctx, db, desc, amount, old.DueDate.AddMonths(1), Pendente, true)
		if err != nil {
			return res, err
		}
		next, err := l.GetExpense(ctx, db, nextID)
		if err != nil {
			return res, err
		}
		res.Successor = &next
		l.log.WithField("funcName", "UpdateExpense").
			WithField("expense_id", id).
			WithField("successor_id", nextID).
			Debug("recurring expense rolled forward")
	}

	if res.Expense, err = l.GetExpense(ctx, db, id); err != nil {
		return res, err
	}
	return res, nil
}

// DeleteExpense soft deletes an office expense.
func (l *Ledger) DeleteExpense(ctx context.Context, db DB, id int64) error {
	return softDelete(ctx, db, "office_expenses", "office expense", id, l.now())
}
