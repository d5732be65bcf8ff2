package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ClientInput holds client fields. Balance is deliberately absent.
type ClientInput struct {
	Name            string
	Document        string
	Contact         *string
	Address         *string
	IsRecurrent     bool
	RecurrenceValue *decimal.Decimal
	RecurrenceDay   *int
}

func (in ClientInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Document) == "" {
		return invalid("name and document are required")
	}
	if in.RecurrenceDay != nil && (*in.RecurrenceDay < 1 || *in.RecurrenceDay > 31) {
		return invalid("recurrence_day must be between 1 and 31")
	}
	if in.RecurrenceValue != nil && in.RecurrenceValue.IsNegative() {
		return invalid("recurrence_value cannot be negative")
	}
	return nil
}

// FinancialSummary totals a client's live charges.
type FinancialSummary struct {
	TotalCharged    decimal.Decimal `json:"total_charged"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	ComputedBalance decimal.Decimal `json:"computed_balance"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
}

// ClientDetail is a client with its live charges and totals.
type ClientDetail struct {
	Client
	Processes []Process        `json:"processes"`
	Services  []Service        `json:"services"`
	Summary   FinancialSummary `json:"summary"`
}

const clientColumns = `id, name, document, contact, address, is_recurrent, recurrence_value,
	recurrence_day, balance, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (Client, error) {
	var c Client
	var created, updated string
	var recValue decimal.NullDecimal
	var recDay sql.NullInt64
	err := row.Scan(&c.ID, &c.Name, &c.Document, &c.Contact, &c.Address, &c.IsRecurrent,
		&recValue, &recDay, &c.Balance, &created, &updated)
	if err != nil {
		return c, err
	}
	if recValue.Valid {
		c.RecurrenceValue = &recValue.Decimal
	}
	if recDay.Valid {
		d := int(recDay.Int64)
		c.RecurrenceDay = &d
	}
	if c.CreatedAt, err = ParseTimestamp(created); err != nil {
		return c, err
	}
	if c.UpdatedAt, err = ParseTimestamp(updated); err != nil {
		return c, err
	}
	return c, nil
}

func nullMoney(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.InexactFloat64()
}

// CreateClient inserts a client with a zero balance.
func (l *Ledger) CreateClient(ctx context.Context, db DB, in ClientInput) (Client, error) {
	if err := in.Validate(); err != nil {
		return Client{}, err
	}
	ts := formatTimestamp(l.now())
	r, err := db.ExecContext(ctx, `
		INSERT INTO clients (name, document, contact, address, is_recurrent, recurrence_value, recurrence_day, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Name, in.Document, in.Contact, in.Address, in.IsRecurrent,
		nullMoney(in.RecurrenceValue), in.RecurrenceDay, ts, ts)
	if err != nil {
		return Client{}, conflictOr(err, "client with this document already exists", "inserting client")
	}
	id, err := r.LastInsertId()
	if err != nil {
		return Client{}, err
	}
	return l.GetClientRecord(ctx, db, id)
}

// GetClientRecord loads a live client without its charges.
func (l *Ledger) GetClientRecord(ctx context.Context, db DB, id int64) (Client, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ? AND deleted_at IS NULL`, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, notFound("client", id)
	}
	if err != nil {
		return c, fmt.Errorf("loading client %d: %w", id, err)
	}
	return c, nil
}

// GetClient loads a live client with its processes, services and a
// financial summary.
func (l *Ledger) GetClient(ctx context.Context, db DB, id int64) (ClientDetail, error) {
	var d ClientDetail
	c, err := l.GetClientRecord(ctx, db, id)
	if err != nil {
		return d, err
	}
	d.Client = c

	if d.Processes, err = listLive(ctx, db, `SELECT `+processColumns+` FROM processes
		WHERE client_id = ? AND deleted_at IS NULL ORDER BY created_at DESC, id DESC`, id, scanProcess); err != nil {
		return d, err
	}
	if d.Services, err = listLive(ctx, db, `SELECT `+serviceColumns+` FROM services
		WHERE client_id = ? AND deleted_at IS NULL ORDER BY created_at DESC, id DESC`, id, scanService); err != nil {
		return d, err
	}

	d.Summary.TotalCharged = decimal.Zero
	for _, p := range d.Processes {
		d.Summary.TotalCharged = d.Summary.TotalCharged.Add(p.ValueCharged)
	}
	for _, s := range d.Services {
		d.Summary.TotalCharged = d.Summary.TotalCharged.Add(s.ValueCharged)
	}
	if err := db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.value_paid), 0) FROM payments p
		LEFT JOIN processes pr ON pr.id = p.process_id
		LEFT JOIN services sv ON sv.id = p.service_id
		WHERE p.status = ?
		  AND ((pr.client_id = ? AND pr.deleted_at IS NULL) OR (sv.client_id = ? AND sv.deleted_at IS NULL))`,
		string(Pago), id, id).Scan(&d.Summary.TotalPaid); err != nil {
		return d, fmt.Errorf("summing payments of client %d: %w", id, err)
	}

	report, err := l.RecomputeBalance(ctx, db, id)
	if err != nil {
		return d, err
	}
	d.Summary.ComputedBalance = report.Computed
	d.Summary.StoredBalance = report.Stored
	return d, nil
}

func listLive[T any](ctx context.Context, db DB, query string, id int64, scan func(interface{ Scan(...any) error }) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateClient overwrites the client's descriptive fields. The balance is
// never written here.
func (l *Ledger) UpdateClient(ctx context.Context, db DB, id int64, in ClientInput) (Client, error) {
	if err := in.Validate(); err != nil {
		return Client{}, err
	}
	cs := newChangeSet("clients")
	cs.set("name", in.Name)
	cs.set("document", in.Document)
	cs.set("contact", in.Contact)
	cs.set("address", in.Address)
	cs.set("is_recurrent", in.IsRecurrent)
	cs.set("recurrence_value", nullMoney(in.RecurrenceValue))
	cs.set("recurrence_day", in.RecurrenceDay)
	if err := cs.apply(ctx, db, id, l.now(), "client"); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Client{}, err
		}
		return Client{}, conflictOr(err, "client with this document already exists", "updating client")
	}
	return l.GetClientRecord(ctx, db, id)
}

// ClientDeletion lists the charges removed along with a client and the
// balance moves their reversal made.
type ClientDeletion struct {
	ClientID   int64       `json:"client_id"`
	Charges    []ChargeRef `json:"charges"`
	Adjustment Adjustment  `json:"adjustment"`
}

// DeleteClient soft deletes a client together with its live processes and
// services. Each charge is reversed through AdjustOnDelete before it is
// hidden, so no live charge is left pointing at a deleted client.
func (l *Ledger) DeleteClient(ctx context.Context, db DB, id int64) (ClientDeletion, error) {
	del := ClientDeletion{ClientID: id, Charges: []ChargeRef{}}
	if err := requireLiveClient(ctx, db, id); err != nil {
		return del, err
	}
	for _, kind := range []ChargeKind{KindProcess, KindService} {
		ids, err := listLive(ctx, db, fmt.Sprintf(
			`SELECT id FROM %s WHERE client_id = ? AND deleted_at IS NULL ORDER BY id`, kind.table()),
			id, scanID)
		if err != nil {
			return del, fmt.Errorf("listing %s charges of client %d: %w", kind, id, err)
		}
		for _, chargeID := range ids {
			ref := ChargeRef{Kind: kind, ID: chargeID}
			adj, err := l.AdjustOnDelete(ctx, db, ref)
			if err != nil {
				return del, err
			}
			if err := softDelete(ctx, db, kind.table(), string(kind), chargeID, l.now()); err != nil {
				return del, err
			}
			del.Charges = append(del.Charges, ref)
			del.Adjustment.Changes = append(del.Adjustment.Changes, adj.Changes...)
		}
	}
	if err := softDelete(ctx, db, "clients", "client", id, l.now()); err != nil {
		return del, err
	}
	return del, nil
}

func scanID(row interface{ Scan(...any) error }) (int64, error) {
	var id int64
	err := row.Scan(&id)
	return id, err
}
