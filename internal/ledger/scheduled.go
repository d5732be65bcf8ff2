package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PendingInstallment is a pending installment with the charge and client it
// is owed on.
type PendingInstallment struct {
	PaymentID   int64           `json:"payment_id"`
	ValueDue    decimal.Decimal `json:"value_due"`
	DueDate     *Date           `json:"due_date"`
	Status      string          `json:"payment_status"`
	ChargeKind  ChargeKind      `json:"charge_kind"`
	ChargeID    int64           `json:"charge_id"`
	ChargeLabel string          `json:"charge_label"`
	ClientID    int64           `json:"client_id"`
	ClientName  string          `json:"client_name"`
}

// ScheduleFilter selects pending installments. A zero Month or Year means
// the current one. All ignores the month entirely.
type ScheduleFilter struct {
	Month  int
	Year   int
	All    bool
	Search string
}

func (f ScheduleFilter) Validate() error {
	if f.Month < 0 || f.Month > 12 {
		return invalid("month must be between 1 and 12")
	}
	if f.Year < 0 {
		return invalid("year cannot be negative")
	}
	return nil
}

func (f ScheduleFilter) resolved(now time.Time) ScheduleFilter {
	if f.Month == 0 {
		f.Month = int(now.Month())
	}
	if f.Year == 0 {
		f.Year = now.Year()
	}
	return f
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ScheduledPayments lists pending installments of live processes and
// services, earliest due first, and returns the filter with its month and
// year resolved. Search matches the process number, the service description
// or the client name, case-insensitively.
func (l *Ledger) ScheduledPayments(ctx context.Context, db DB, f ScheduleFilter) ([]PendingInstallment, ScheduleFilter, error) {
	if err := f.Validate(); err != nil {
		return nil, f, err
	}
	f = f.resolved(l.now())

	var (
		conds []string
		args  = []any{string(Pendente), string(Pendente)}
	)
	if !f.All {
		first := time.Date(f.Year, time.Month(f.Month), 1, 0, 0, 0, 0, time.UTC)
		conds = append(conds, "due_date >= ? AND due_date < ?")
		args = append(args, first.Format(dateLayout), first.AddDate(0, 1, 0).Format(dateLayout))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
		conds = append(conds, `(lower(charge_label) LIKE ? ESCAPE '\' OR lower(client_name) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	query := `SELECT payment_id, value_due, due_date, payment_status, charge_kind, charge_id,
		charge_label, client_id, client_name FROM (
			SELECT pa.id AS payment_id, pa.value_paid AS value_due, pa.due_date, pa.status AS payment_status,
				'process' AS charge_kind, p.id AS charge_id, p.process_number AS charge_label,
				c.id AS client_id, c.name AS client_name
			FROM payments pa
			JOIN processes p ON p.id = pa.process_id AND p.deleted_at IS NULL
			JOIN clients c ON c.id = p.client_id AND c.deleted_at IS NULL
			WHERE pa.status = ?
			UNION ALL
			SELECT pa.id, pa.value_paid, pa.due_date, pa.status,
				'service', s.id, s.description, c.id, c.name
			FROM payments pa
			JOIN services s ON s.id = pa.service_id AND s.deleted_at IS NULL
			JOIN clients c ON c.id = s.client_id AND c.deleted_at IS NULL
			WHERE pa.status = ?
		) ` + where + ` ORDER BY due_date IS NULL, due_date, payment_id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, f, fmt.Errorf("listing scheduled payments: %w", err)
	}
	defer rows.Close()

	out := []PendingInstallment{}
	for rows.Next() {
		var (
			sp   PendingInstallment
			kind string
			due  sql.NullString
		)
		if err := rows.Scan(&sp.PaymentID, &sp.ValueDue, &due, &sp.Status, &kind, &sp.ChargeID,
			&sp.ChargeLabel, &sp.ClientID, &sp.ClientName); err != nil {
			return nil, f, fmt.Errorf("scanning scheduled payment: %w", err)
		}
		sp.ChargeKind = ChargeKind(kind)
		if sp.DueDate, err = scanDate(due); err != nil {
			return nil, f, err
		}
		out = append(out, sp)
	}
	return out, f, rows.Err()
}
