package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NewService is the input to CreateService.
type NewService struct {
	ClientID      int64
	Description   string
	ValueCharged  decimal.Decimal
	PaymentMethod PaymentMethod
	Installments  *InstallmentPlan
}

// ServiceUpdate carries the fields a caller wants to change.
type ServiceUpdate struct {
	Description   *string
	ValueCharged  *decimal.Decimal
	PaymentMethod *PaymentMethod
	Status        *ChargeStatus
}

func (u ServiceUpdate) empty() bool {
	return u.Description == nil && u.ValueCharged == nil && u.PaymentMethod == nil && u.Status == nil
}

// ChargeSummary totals the payments of one charge.
type ChargeSummary struct {
	ValueCharged decimal.Decimal `json:"value_charged"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalPending decimal.Decimal `json:"total_pending"`
	Balance      decimal.Decimal `json:"balance"`
}

// ServiceDetail is a service with its client, payments and totals.
type ServiceDetail struct {
	Service
	ClientName     string        `json:"client_name"`
	ClientDocument string        `json:"client_document"`
	Payments       []Payment     `json:"payments"`
	Summary        ChargeSummary `json:"summary"`
}

const serviceColumns = `id, client_id, description, value_charged, payment_method, status,
	em_conta_details, created_at, updated_at`

func scanService(row interface{ Scan(...any) error }) (Service, error) {
	var s Service
	var method, status, created, updated string
	err := row.Scan(&s.ID, &s.ClientID, &s.Description, &s.ValueCharged, &method, &status,
		&s.EmContaDetails, &created, &updated)
	if err != nil {
		return s, err
	}
	s.PaymentMethod = PaymentMethod(method)
	s.Status = ChargeStatus(status)
	if s.CreatedAt, err = ParseTimestamp(created); err != nil {
		return s, err
	}
	if s.UpdatedAt, err = ParseTimestamp(updated); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks a NewService without touching storage.
func (in NewService) Validate() error {
	if in.ClientID <= 0 {
		return invalid("client_id is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return invalid("description is required")
	}
	return validateCharge(in.ValueCharged, in.PaymentMethod, in.Installments)
}

// CreateService inserts a service. An em_conta service with a plan gets its
// schedule, with the client linked on every row, and an em_conta_details
// summary.
func (l *Ledger) CreateService(ctx context.Context, db DB, in NewService) (Service, ChargeResult, error) {
	var res ChargeResult
	if err := in.Validate(); err != nil {
		return Service{}, res, err
	}
	if err := requireLiveClient(ctx, db, in.ClientID); err != nil {
		return Service{}, res, err
	}

	ts := formatTimestamp(l.now())
	r, err := db.ExecContext(ctx, `
		INSERT INTO services (client_id, description, value_charged, payment_method, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.ClientID, in.Description, in.ValueCharged.InexactFloat64(), string(in.PaymentMethod),
		string(StatusAtivo), ts, ts)
	if err != nil {
		return Service{}, res, conflictOr(err, "service already exists", "inserting service")
	}
	id, err := r.LastInsertId()
	if err != nil {
		return Service{}, res, err
	}

	var plan *InstallmentPlan
	if in.PaymentMethod.OnAccount() && in.Installments != nil {
		plan = in.Installments
		clientID := in.ClientID
		s, ids, err := l.GenerateSchedule(ctx, db, ServiceRef(id), &clientID, in.ValueCharged, *plan)
		if err != nil {
			return Service{}, res, err
		}
		res.Schedule, res.PaymentIDs = &s, ids

		if _, err := db.ExecContext(ctx, `UPDATE services SET em_conta_details = ? WHERE id = ?`,
			s.Details(in.ValueCharged), id); err != nil {
			return Service{}, res, fmt.Errorf("writing em_conta details of service %d: %w", id, err)
		}
	}

	if res.Adjustment, err = l.bookNewCharge(ctx, db, in.ClientID, in.ValueCharged, in.PaymentMethod, plan); err != nil {
		return Service{}, res, err
	}

	s, err := l.getService(ctx, db, id)
	return s, res, err
}

func (l *Ledger) getService(ctx context.Context, db DB, id int64) (Service, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = ? AND deleted_at IS NULL`, id)
	s, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s, notFound("service", id)
	}
	if err != nil {
		return s, fmt.Errorf("loading service %d: %w", id, err)
	}
	return s, nil
}

// GetService returns a live service with payments and a payment summary.
func (l *Ledger) GetService(ctx context.Context, db DB, id int64) (ServiceDetail, error) {
	var d ServiceDetail
	s, err := l.getService(ctx, db, id)
	if err != nil {
		return d, err
	}
	d.Service = s
	err = db.QueryRowContext(ctx, `SELECT name, document FROM clients WHERE id = ?`, s.ClientID).
		Scan(&d.ClientName, &d.ClientDocument)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("loading client of service %d: %w", id, err)
	}
	if d.Payments, err = l.ListPayments(ctx, db, ServiceRef(id)); err != nil {
		return d, err
	}
	d.Summary = summarize(s.ValueCharged, d.Payments)
	return d, nil
}

func summarize(value decimal.Decimal, payments []Payment) ChargeSummary {
	sum := ChargeSummary{ValueCharged: value, TotalPaid: decimal.Zero, TotalPending: decimal.Zero}
	for _, p := range payments {
		switch p.Status {
		case Pago:
			sum.TotalPaid = sum.TotalPaid.Add(p.ValuePaid)
		case Pendente:
			sum.TotalPending = sum.TotalPending.Add(p.ValuePaid)
		}
	}
	sum.Balance = value.Sub(sum.TotalPaid)
	return sum
}

// UpdateService applies a partial update. Value changes flow through the
// balance engine; a payment method change is refused.
func (l *Ledger) UpdateService(ctx context.Context, db DB, id int64, upd ServiceUpdate) (Service, Adjustment, error) {
	var adj Adjustment
	if upd.empty() {
		return Service{}, adj, invalid("at least one field to update is required")
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return Service{}, adj, invalid("unknown status %q", *upd.Status)
	}
	if upd.ValueCharged != nil && upd.ValueCharged.IsNegative() {
		return Service{}, adj, invalid("value_charged cannot be negative")
	}
	if upd.Description != nil && strings.TrimSpace(*upd.Description) == "" {
		return Service{}, adj, invalid("description cannot be empty")
	}

	old, err := l.getService(ctx, db, id)
	if err != nil {
		return Service{}, adj, err
	}
	if upd.PaymentMethod != nil && *upd.PaymentMethod != old.PaymentMethod {
		return Service{}, adj, ErrPaymentMethodLocked
	}

	cs := newChangeSet("services")
	cs.setString("description", upd.Description)
	cs.setMoney("value_charged", upd.ValueCharged)
	if upd.Status != nil {
		cs.set("status", string(*upd.Status))
	}
	if cs.empty() {
		return old, adj, nil
	}
	if err := cs.apply(ctx, db, id, l.now(), "service"); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Service{}, adj, err
		}
		return Service{}, adj, fmt.Errorf("updating service %d: %w", id, err)
	}

	next, err := l.getService(ctx, db, id)
	if err != nil {
		return Service{}, adj, err
	}
	if adj, err = l.AdjustOnUpdate(ctx, db, ServiceRef(id), old.state(), next.state()); err != nil {
		return Service{}, adj, err
	}
	return next, adj, nil
}

// DeleteService reverses the service's em_conta contribution and soft
// deletes it.
func (l *Ledger) DeleteService(ctx context.Context, db DB, id int64) (Adjustment, error) {
	adj, err := l.AdjustOnDelete(ctx, db, ServiceRef(id))
	if err != nil {
		return adj, err
	}
	if err := softDelete(ctx, db, "services", "service", id, l.now()); err != nil {
		return adj, err
	}
	return adj, nil
}
