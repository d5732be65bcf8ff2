package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentPlan describes how an em_conta charge is paid off.
type InstallmentPlan struct {
	Count        int              `json:"count"`
	DownPayment  *decimal.Decimal `json:"down_payment,omitempty"`
	FirstDueDate *Date            `json:"first_due_date,omitempty"`
}

func (p InstallmentPlan) down() decimal.Decimal {
	if p.DownPayment == nil {
		return decimal.Zero
	}
	return *p.DownPayment
}

// ScheduledPayment is one row the generator will insert.
type ScheduledPayment struct {
	ValuePaid   decimal.Decimal
	Status      SettlementStatus
	PaymentDate *time.Time
	DueDate     *Date
}

// Schedule is the full set of rows for one plan.
type Schedule struct {
	Payments    []ScheduledPayment
	Installment decimal.Decimal
}

// BuildSchedule computes the payment rows for total under plan.
// Installments are remaining/count at 16 fractional digits with no
// redistribution of the remainder.
func BuildSchedule(total decimal.Decimal, plan InstallmentPlan, now time.Time) (Schedule, error) {
	var s Schedule
	if plan.Count < 1 {
		return s, invalid("installment count must be at least 1")
	}
	down := plan.down()
	if down.IsNegative() {
		return s, invalid("down payment cannot be negative")
	}
	if down.GreaterThan(total) {
		return s, invalid("down payment %s exceeds value charged %s", down, total)
	}

	first := NewDate(now)
	if plan.FirstDueDate != nil {
		first = *plan.FirstDueDate
	}

	if down.IsPositive() {
		paidAt := now
		s.Payments = append(s.Payments, ScheduledPayment{
			ValuePaid:   down,
			Status:      Pago,
			PaymentDate: &paidAt,
		})
	}

	s.Installment = total.Sub(down).DivRound(decimal.NewFromInt(int64(plan.Count)), 16)
	for i := 0; i < plan.Count; i++ {
		due := first.AddMonths(i)
		s.Payments = append(s.Payments, ScheduledPayment{
			ValuePaid: s.Installment,
			Status:    Pendente,
			DueDate:   &due,
		})
	}
	return s, nil
}

// Details renders the em_conta summary stored on services,
// "<total>+<count>x<installment>".
func (s Schedule) Details(total decimal.Decimal) string {
	pending := 0
	for _, p := range s.Payments {
		if p.Status == Pendente {
			pending++
		}
	}
	return fmt.Sprintf("%s+%dx%s", total, pending, s.Installment)
}

// GenerateSchedule inserts the plan's rows for ref. clientID is written on
// each row when non-nil. The client balance is not touched here; the
// create operation books the charge exactly once.
func (l *Ledger) GenerateSchedule(ctx context.Context, db DB, ref ChargeRef, clientID *int64, total decimal.Decimal, plan InstallmentPlan) (Schedule, []int64, error) {
	now := l.now()
	s, err := BuildSchedule(total, plan, now)
	if err != nil {
		return s, nil, err
	}

	query := fmt.Sprintf(
		`INSERT INTO payments (%s, client_id, value_paid, status, payment_date, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, ref.Kind.paymentColumn())
	ts := formatTimestamp(now)

	ids := make([]int64, 0, len(s.Payments))
	for i, p := range s.Payments {
		var cid any
		if clientID != nil {
			cid = *clientID
		}
		res, err := db.ExecContext(ctx, query,
			ref.ID, cid, p.ValuePaid.InexactFloat64(), string(p.Status),
			nullTimestamp(p.PaymentDate), nullDate(p.DueDate), ts, ts)
		if err != nil {
			return s, nil, fmt.Errorf("inserting payment %d of %d for %s %d: %w", i+1, len(s.Payments), ref.Kind, ref.ID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return s, nil, err
		}
		ids = append(ids, id)
	}
	return s, ids, nil
}
