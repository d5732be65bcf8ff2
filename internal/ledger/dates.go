package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

// Date is a calendar day with no time of day, stored as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD, the storage timestamp layout or RFC 3339.
func ParseDate(s string) (Date, error) {
	t, err := ParseTimestamp(s)
	if err != nil {
		return Date{}, err
	}
	return NewDate(t), nil
}

// AddMonths moves the date by n calendar months. Day-of-month overflow
// rolls into the next month, so Jan 31 + 1 month is Mar 3 (or Mar 2).
func (d Date) AddMonths(n int) Date {
	return Date{d.Time.AddDate(0, n, 0)}
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseTimestamp accepts RFC 3339, the storage layout or a bare date.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, timestampLayout, "2006-01-02T15:04:05", dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func formatTimestamp(t time.Time) string { return t.UTC().Format(timestampLayout) }

func nullTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTimestamp(*t)
}

func nullDate(d *Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func scanTimestamp(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanDate(ns sql.NullString) (*Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
