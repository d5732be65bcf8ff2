// Package ledger keeps client balances, process and service charges, and
// their payment schedules consistent.
//
// Every exported operation takes a DB handle, normally a *sql.Tx owned by
// the caller, and never opens or commits a transaction of its own. A failed
// operation leaves the caller's transaction to be rolled back as a whole.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func init() {
	// Money goes over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// DB is the statement executor ledger operations run against.
// *sql.Tx and *sql.DB both satisfy it.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// DefaultEditWindow is how long a payment stays editable after creation.
const DefaultEditWindow = 24 * time.Hour

// Ledger applies the billing rules.
type Ledger struct {
	clock      Clock
	editWindow time.Duration
	log        logrus.FieldLogger
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithClock(c Clock) Option { return func(l *Ledger) { l.clock = c } }

func WithEditWindow(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.editWindow = d
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option { return func(l *Ledger) { l.log = log } }

// New returns a Ledger with the system clock and a 24h edit window unless
// overridden.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		clock:      SystemClock,
		editWindow: DefaultEditWindow,
		log:        logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(l)
	}
	l.log = l.log.WithField("module", "ledger")
	return l
}

func (l *Ledger) now() time.Time { return l.clock.Now().UTC() }

// EditWindow returns the configured payment edit window.
func (l *Ledger) EditWindow() time.Duration { return l.editWindow }
