package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NewPayment is a payment recorded directly, outside a generated schedule.
// Exactly one of ProcessID or ServiceID may be set; ClientID alone records
// a payment against the client with no charge.
type NewPayment struct {
	ProcessID   *int64
	ServiceID   *int64
	ClientID    *int64
	ValuePaid   decimal.Decimal
	PaymentDate *time.Time
	DueDate     *Date
	Status      SettlementStatus
}

// Validate checks linkage and amount.
func (in NewPayment) Validate() error {
	if in.ProcessID == nil && in.ServiceID == nil && in.ClientID == nil {
		return invalid("process_id, service_id or client_id is required")
	}
	if in.ProcessID != nil && in.ServiceID != nil {
		return invalid("process_id and service_id are mutually exclusive")
	}
	if in.ValuePaid.IsNegative() {
		return invalid("value_paid cannot be negative")
	}
	if in.Status != "" && !in.Status.Valid() {
		return invalid("unknown status %q", in.Status)
	}
	return nil
}

func (in NewPayment) charge() (ChargeRef, bool) {
	return Payment{ProcessID: in.ProcessID, ServiceID: in.ServiceID}.charge()
}

// PaymentUpdate overwrites the mutable fields of a payment. An empty Status
// means Pago.
type PaymentUpdate struct {
	ValuePaid   decimal.Decimal
	PaymentDate *time.Time
	Status      SettlementStatus
}

func (u PaymentUpdate) Validate() error {
	if u.ValuePaid.IsNegative() {
		return invalid("value_paid cannot be negative")
	}
	if u.Status != "" && !u.Status.Valid() {
		return invalid("unknown status %q", u.Status)
	}
	return nil
}

// PaymentResult is what a payment mutation did.
type PaymentResult struct {
	Payment    Payment
	Created    bool
	Adjustment Adjustment
}

const paymentColumns = `id, process_id, service_id, client_id, value_paid, status,
	payment_date, due_date, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (Payment, error) {
	var p Payment
	var status, created, updated string
	var paidAt, due sql.NullString
	err := row.Scan(&p.ID, &p.ProcessID, &p.ServiceID, &p.ClientID, &p.ValuePaid, &status,
		&paidAt, &due, &created, &updated)
	if err != nil {
		return p, err
	}
	p.Status = SettlementStatus(status)
	if p.PaymentDate, err = scanTimestamp(paidAt); err != nil {
		return p, err
	}
	if p.DueDate, err = scanDate(due); err != nil {
		return p, err
	}
	if p.CreatedAt, err = ParseTimestamp(created); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = ParseTimestamp(updated); err != nil {
		return p, err
	}
	return p, nil
}

// GetPayment loads one payment.
func (l *Ledger) GetPayment(ctx context.Context, db DB, id int64) (Payment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, notFound("payment", id)
	}
	if err != nil {
		return p, fmt.Errorf("loading payment %d: %w", id, err)
	}
	return p, nil
}

// ListPayments returns the payments of a charge, most recent first.
func (l *Ledger) ListPayments(ctx context.Context, db DB, ref ChargeRef) ([]Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE %s = ?
		ORDER BY COALESCE(payment_date, due_date) DESC, id DESC`, paymentColumns, ref.Kind.paymentColumn())
	rows, err := db.QueryContext(ctx, query, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("listing payments of %s %d: %w", ref.Kind, ref.ID, err)
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// CreatePayment inserts a payment. A realized payment against an em_conta
// charge lowers the client's balance.
func (l *Ledger) CreatePayment(ctx context.Context, db DB, in NewPayment) (PaymentResult, error) {
	var res PaymentResult
	if err := in.Validate(); err != nil {
		return res, err
	}
	if ref, ok := in.charge(); ok {
		if _, err := chargeState(ctx, db, ref); err != nil {
			return res, err
		}
	}
	if in.ClientID != nil {
		if err := requireLiveClient(ctx, db, *in.ClientID); err != nil {
			return res, err
		}
	}

	now := l.now()
	if in.Status == "" {
		in.Status = Pago
	}
	if in.PaymentDate == nil && in.Status == Pago {
		in.PaymentDate = &now
	}

	ts := formatTimestamp(now)
	r, err := db.ExecContext(ctx, `
		INSERT INTO payments (process_id, service_id, client_id, value_paid, status, payment_date, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ProcessID, in.ServiceID, in.ClientID, in.ValuePaid.InexactFloat64(), string(in.Status),
		nullTimestamp(in.PaymentDate), nullDate(in.DueDate), ts, ts)
	if err != nil {
		return res, fmt.Errorf("inserting payment: %w", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return res, err
	}
	if res.Payment, err = l.GetPayment(ctx, db, id); err != nil {
		return res, err
	}
	res.Created = true

	if ref, ok := res.Payment.charge(); ok {
		if res.Adjustment, err = l.settle(ctx, db, ref, decimal.Zero, res.Payment.realized()); err != nil {
			return res, err
		}
	}
	return res, nil
}

// checkEditWindow refuses edits to payments older than the window.
func (l *Ledger) checkEditWindow(p Payment) error {
	if age := l.now().Sub(p.CreatedAt); age > l.editWindow {
		return fmt.Errorf("%w (payment %d created %s ago)", ErrEditWindowClosed, p.ID, age.Truncate(time.Minute))
	}
	return nil
}

// UpdatePayment overwrites value, date and status of a payment created
// within the edit window.
func (l *Ledger) UpdatePayment(ctx context.Context, db DB, id int64, upd PaymentUpdate) (PaymentResult, error) {
	if err := upd.Validate(); err != nil {
		return PaymentResult{}, err
	}
	stored, err := l.GetPayment(ctx, db, id)
	if err != nil {
		return PaymentResult{}, err
	}
	if err := l.checkEditWindow(stored); err != nil {
		return PaymentResult{}, err
	}
	return l.amend(ctx, db, stored, upd)
}

// SavePayment creates a payment, or with id updates it in place. Both paths
// require a process, service or client link; an update never inserts and
// keeps the stored linkage. Pending installments can always be settled;
// only rows already Pago are held to the edit window.
func (l *Ledger) SavePayment(ctx context.Context, db DB, id *int64, in NewPayment) (PaymentResult, error) {
	if err := in.Validate(); err != nil {
		return PaymentResult{}, err
	}
	if id == nil {
		return l.CreatePayment(ctx, db, in)
	}

	upd := PaymentUpdate{
		ValuePaid:   in.ValuePaid,
		PaymentDate: in.PaymentDate,
		Status:      in.Status,
	}
	stored, err := l.GetPayment(ctx, db, *id)
	if err != nil {
		return PaymentResult{}, err
	}
	if stored.Status == Pago {
		if err := l.checkEditWindow(stored); err != nil {
			return PaymentResult{}, err
		}
	}
	return l.amend(ctx, db, stored, upd)
}

func (l *Ledger) amend(ctx context.Context, db DB, stored Payment, upd PaymentUpdate) (PaymentResult, error) {
	res := PaymentResult{}
	now := l.now()
	if upd.Status == "" {
		upd.Status = Pago
	}
	if upd.PaymentDate == nil {
		upd.PaymentDate = stored.PaymentDate
		if upd.PaymentDate == nil && upd.Status == Pago {
			upd.PaymentDate = &now
		}
	}

	_, err := db.ExecContext(ctx, `
		UPDATE payments SET value_paid = ?, payment_date = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		upd.ValuePaid.InexactFloat64(), nullTimestamp(upd.PaymentDate), string(upd.Status),
		formatTimestamp(now), stored.ID)
	if err != nil {
		return res, fmt.Errorf("updating payment %d: %w", stored.ID, err)
	}
	if res.Payment, err = l.GetPayment(ctx, db, stored.ID); err != nil {
		return res, err
	}
	if ref, ok := stored.charge(); ok {
		if res.Adjustment, err = l.settle(ctx, db, ref, stored.realized(), res.Payment.realized()); err != nil {
			return res, err
		}
	}
	return res, nil
}

// DeletePayment hard-deletes a payment. The client balance is not touched;
// RecomputeBalance reports the resulting drift for em_conta charges.
// It reports whether a row was removed.
func (l *Ledger) DeletePayment(ctx context.Context, db DB, id int64) (bool, error) {
	r, err := db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting payment %d: %w", id, err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
