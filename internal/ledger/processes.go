package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NewProcess is the input to CreateProcess.
type NewProcess struct {
	ClientID      int64
	ProcessNumber string
	Tribunal      *string
	Target        *string
	Description   *string
	Status        ChargeStatus
	ValueCharged  decimal.Decimal
	PaymentMethod PaymentMethod
	Installments  *InstallmentPlan
}

// ProcessUpdate carries the fields a caller wants to change. Nil means
// "leave as is".
type ProcessUpdate struct {
	ClientID      *int64
	ProcessNumber *string
	Tribunal      *string
	Target        *string
	Description   *string
	Status        *ChargeStatus
	ValueCharged  *decimal.Decimal
	PaymentMethod *PaymentMethod
}

// ChargeResult is returned by create and update on processes and services.
type ChargeResult struct {
	Schedule   *Schedule
	PaymentIDs []int64
	Adjustment Adjustment
}

// ProcessDetail is a process with its client and payments.
type ProcessDetail struct {
	Process
	ClientName     string    `json:"client_name"`
	ClientDocument string    `json:"client_document"`
	Payments       []Payment `json:"payments"`
}

const processColumns = `id, client_id, process_number, tribunal, target, description, status,
	value_charged, payment_method, created_at, updated_at`

func scanProcess(row interface{ Scan(...any) error }) (Process, error) {
	var p Process
	var status, method, created, updated string
	err := row.Scan(&p.ID, &p.ClientID, &p.ProcessNumber, &p.Tribunal, &p.Target, &p.Description,
		&status, &p.ValueCharged, &method, &created, &updated)
	if err != nil {
		return p, err
	}
	p.Status = ChargeStatus(status)
	p.PaymentMethod = PaymentMethod(method)
	if p.CreatedAt, err = ParseTimestamp(created); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = ParseTimestamp(updated); err != nil {
		return p, err
	}
	return p, nil
}

func validateCharge(value decimal.Decimal, method PaymentMethod, plan *InstallmentPlan) error {
	if value.IsNegative() {
		return invalid("value_charged cannot be negative")
	}
	if !method.Valid() {
		return invalid("unknown payment_method %q", method)
	}
	if plan != nil && method.OnAccount() {
		if plan.Count < 1 {
			return invalid("installment count must be at least 1")
		}
		if d := plan.down(); d.IsNegative() || d.GreaterThan(value) {
			return invalid("down payment must be between 0 and value_charged")
		}
	}
	return nil
}

// Validate checks a NewProcess without touching storage.
func (in NewProcess) Validate() error {
	if in.ClientID <= 0 {
		return invalid("client_id is required")
	}
	if strings.TrimSpace(in.ProcessNumber) == "" {
		return invalid("process_number is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return invalid("unknown status %q", in.Status)
	}
	return validateCharge(in.ValueCharged, in.PaymentMethod, in.Installments)
}

func requireLiveClient(ctx context.Context, db DB, id int64) error {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM clients WHERE id = ? AND deleted_at IS NULL`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("client", id)
	}
	if err != nil {
		return fmt.Errorf("loading client %d: %w", id, err)
	}
	return nil
}

// bookNewCharge puts the unpaid remainder of a freshly created em_conta
// charge on the client's balance. This is the only place a new charge
// reaches the balance.
func (l *Ledger) bookNewCharge(ctx context.Context, db DB, clientID int64, value decimal.Decimal, method PaymentMethod, plan *InstallmentPlan) (Adjustment, error) {
	var adj Adjustment
	if !method.OnAccount() {
		return adj, nil
	}
	owed := value
	if plan != nil {
		owed = owed.Sub(plan.down())
	}
	if err := l.touch(ctx, db, &adj, clientID, owed); err != nil {
		return adj, err
	}
	return adj, nil
}

// CreateProcess inserts a process, materializes its installment schedule
// when billed em_conta with a plan, and books the unpaid remainder.
func (l *Ledger) CreateProcess(ctx context.Context, db DB, in NewProcess) (Process, ChargeResult, error) {
	var res ChargeResult
	if err := in.Validate(); err != nil {
		return Process{}, res, err
	}
	if err := requireLiveClient(ctx, db, in.ClientID); err != nil {
		return Process{}, res, err
	}
	if in.Status == "" {
		in.Status = StatusAtivo
	}

	ts := formatTimestamp(l.now())
	r, err := db.ExecContext(ctx, `
		INSERT INTO processes (client_id, process_number, tribunal, target, description, status,
			value_charged, payment_method, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ClientID, in.ProcessNumber, in.Tribunal, in.Target, in.Description, string(in.Status),
		in.ValueCharged.InexactFloat64(), string(in.PaymentMethod), ts, ts)
	if err != nil {
		return Process{}, res, conflictOr(err, "process with this number already exists", "inserting process")
	}
	id, err := r.LastInsertId()
	if err != nil {
		return Process{}, res, err
	}

	var plan *InstallmentPlan
	if in.PaymentMethod.OnAccount() && in.Installments != nil {
		plan = in.Installments
		s, ids, err := l.GenerateSchedule(ctx, db, ProcessRef(id), nil, in.ValueCharged, *plan)
		if err != nil {
			return Process{}, res, err
		}
		res.Schedule, res.PaymentIDs = &s, ids
	}

	if res.Adjustment, err = l.bookNewCharge(ctx, db, in.ClientID, in.ValueCharged, in.PaymentMethod, plan); err != nil {
		return Process{}, res, err
	}

	p, err := l.getProcess(ctx, db, id)
	return p, res, err
}

func (l *Ledger) getProcess(ctx context.Context, db DB, id int64) (Process, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+processColumns+` FROM processes WHERE id = ? AND deleted_at IS NULL`, id)
	p, err := scanProcess(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, notFound("process", id)
	}
	if err != nil {
		return p, fmt.Errorf("loading process %d: %w", id, err)
	}
	return p, nil
}

// GetProcess returns a live process with its client and payments.
func (l *Ledger) GetProcess(ctx context.Context, db DB, id int64) (ProcessDetail, error) {
	var d ProcessDetail
	p, err := l.getProcess(ctx, db, id)
	if err != nil {
		return d, err
	}
	d.Process = p
	err = db.QueryRowContext(ctx, `SELECT name, document FROM clients WHERE id = ?`, p.ClientID).
		Scan(&d.ClientName, &d.ClientDocument)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("loading client of process %d: %w", id, err)
	}
	if d.Payments, err = l.ListPayments(ctx, db, ProcessRef(id)); err != nil {
		return d, err
	}
	return d, nil
}

// UpdateProcess applies a partial update and runs the balance engine on
// the before and after states. Changing the payment method is refused.
func (l *Ledger) UpdateProcess(ctx context.Context, db DB, id int64, upd ProcessUpdate) (Process, Adjustment, error) {
	var adj Adjustment
	if upd.Status != nil && !upd.Status.Valid() {
		return Process{}, adj, invalid("unknown status %q", *upd.Status)
	}
	if upd.ValueCharged != nil && upd.ValueCharged.IsNegative() {
		return Process{}, adj, invalid("value_charged cannot be negative")
	}
	if upd.ProcessNumber != nil && strings.TrimSpace(*upd.ProcessNumber) == "" {
		return Process{}, adj, invalid("process_number cannot be empty")
	}

	old, err := l.getProcess(ctx, db, id)
	if err != nil {
		return Process{}, adj, err
	}
	if upd.PaymentMethod != nil && *upd.PaymentMethod != old.PaymentMethod {
		return Process{}, adj, ErrPaymentMethodLocked
	}
	if upd.ClientID != nil && *upd.ClientID != old.ClientID {
		if err := requireLiveClient(ctx, db, *upd.ClientID); err != nil {
			return Process{}, adj, err
		}
	}

	cs := newChangeSet("processes")
	if upd.ClientID != nil {
		cs.set("client_id", *upd.ClientID)
	}
	cs.setString("process_number", upd.ProcessNumber)
	cs.setString("tribunal", upd.Tribunal)
	cs.setString("target", upd.Target)
	cs.setString("description", upd.Description)
	if upd.Status != nil {
		cs.set("status", string(*upd.Status))
	}
	cs.setMoney("value_charged", upd.ValueCharged)
	if cs.empty() {
		return old, adj, nil
	}
	if err := cs.apply(ctx, db, id, l.now(), "process"); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Process{}, adj, err
		}
		return Process{}, adj, conflictOr(err, "process with this number already exists", "updating process")
	}

	next, err := l.getProcess(ctx, db, id)
	if err != nil {
		return Process{}, adj, err
	}
	if adj, err = l.AdjustOnUpdate(ctx, db, ProcessRef(id), old.state(), next.state()); err != nil {
		return Process{}, adj, err
	}
	return next, adj, nil
}

// DeleteProcess reverses the process's em_conta contribution and soft
// deletes it. Its payments stay in place.
func (l *Ledger) DeleteProcess(ctx context.Context, db DB, id int64) (Adjustment, error) {
	adj, err := l.AdjustOnDelete(ctx, db, ProcessRef(id))
	if err != nil {
		return adj, err
	}
	if err := softDelete(ctx, db, "processes", "process", id, l.now()); err != nil {
		return adj, err
	}
	return adj, nil
}
