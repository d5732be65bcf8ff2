package ledger

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/lawoffice/internal/store/storetest"
)

var t0 = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setup(t *testing.T) (*Ledger, *sql.DB, *testClock) {
	t.Helper()
	clock := &testClock{now: t0}
	l := New(WithClock(clock), WithLogger(quietLogger()))
	return l, storetest.Open(t), clock
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func datePtr(t *testing.T, s string) *Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return &d
}

func ptr[T any](v T) *T { return &v }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Round(8).Equal(got.Round(8)), "want %s, got %s %v", want, got, msgAndArgs)
}

func mustClient(t *testing.T, l *Ledger, db DB, doc string) Client {
	t.Helper()
	c, err := l.CreateClient(context.Background(), db, ClientInput{Name: "Client " + doc, Document: doc})
	require.NoError(t, err)
	return c
}

func storedBalance(t *testing.T, db DB, clientID int64) decimal.Decimal {
	t.Helper()
	var b decimal.Decimal
	require.NoError(t, db.QueryRowContext(context.Background(),
		`SELECT balance FROM clients WHERE id = ?`, clientID).Scan(&b))
	return b
}

func assertInSync(t *testing.T, l *Ledger, db DB, clientID int64) {
	t.Helper()
	r, err := l.RecomputeBalance(context.Background(), db, clientID)
	require.NoError(t, err)
	assert.Truef(t, r.InSync(), "client %d stored %s computed %s", clientID, r.Stored, r.Computed)
}

func countRows(t *testing.T, db DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}

func emContaProcess(t *testing.T, l *Ledger, db DB, clientID int64, number, value string, plan *InstallmentPlan) Process {
	t.Helper()
	p, _, err := l.CreateProcess(context.Background(), db, NewProcess{
		ClientID:      clientID,
		ProcessNumber: number,
		ValueCharged:  dec(value),
		PaymentMethod: EmConta,
		Installments:  plan,
	})
	require.NoError(t, err)
	return p
}
