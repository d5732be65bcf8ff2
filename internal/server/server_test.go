package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/lawoffice/internal/activity"
	"github.com/matthewbaird/lawoffice/internal/event"
	"github.com/matthewbaird/lawoffice/internal/ledger"
	"github.com/matthewbaird/lawoffice/internal/store/storetest"
	"github.com/matthewbaird/lawoffice/internal/types"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	t      *testing.T
	h      http.Handler
	ledger *ledger.Ledger
	clock  *testClock
	acts   *activity.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	clock := &testClock{now: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	l := ledger.New(ledger.WithClock(clock), ledger.WithLogger(log))
	acts := activity.NewMemoryStore()
	h := Router(Config{
		DB:       storetest.Open(t),
		Ledger:   l,
		Activity: acts,
		Recorder: event.NewActivityRecorder(acts),
		Log:      log,
	})
	return &env{t: t, h: h, ledger: l, clock: clock, acts: acts}
}

type response struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Filters    json.RawMessage `json:"filters"`
}

func (e *env) do(method, path string, body any) (int, response) {
	e.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	var resp response
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

// ok performs a request that must succeed and decodes data into out.
func (e *env) ok(method, path string, body, out any) {
	e.t.Helper()
	code, resp := e.do(method, path, body)
	require.Equal(e.t, http.StatusOK, code, resp.Message)
	require.True(e.t, resp.Success)
	if out != nil {
		require.NoError(e.t, json.Unmarshal(resp.Data, out))
	}
}

func (e *env) dataFields(method, path string, body any) map[string]json.RawMessage {
	e.t.Helper()
	code, resp := e.do(method, path, body)
	require.Equal(e.t, http.StatusOK, code, resp.Message)
	var fields map[string]json.RawMessage
	require.NoError(e.t, json.Unmarshal(resp.Data, &fields))
	return fields
}

func (e *env) client(doc string) ledger.Client {
	e.t.Helper()
	var c ledger.Client
	e.ok(http.MethodPost, "/api/clients", map[string]any{"name": "Client " + doc, "document": doc}, &c)
	return c
}

type createdCharge struct {
	ledger.Process
	PaymentIDs []int64 `json:"payment_ids"`
}

func (e *env) process(clientID int64, number, value, method string, installments map[string]any) createdCharge {
	e.t.Helper()
	body := map[string]any{
		"client_id":      clientID,
		"process_number": number,
		"value_charged":  value,
		"payment_method": method,
	}
	if installments != nil {
		body["installments"] = installments
	}
	var out createdCharge
	e.ok(http.MethodPost, "/api/processes", body, &out)
	return out
}

type balance struct {
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
	Drift    decimal.Decimal `json:"drift"`
	InSync   bool            `json:"in_sync"`
}

func (e *env) balance(clientID int64) balance {
	e.t.Helper()
	var b balance
	e.ok(http.MethodGet, fmt.Sprintf("/api/clients/%d/balance", clientID), nil, &b)
	return b
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got.Round(8)), "want %s, got %s", want, got)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestClients_Lifecycle(t *testing.T) {
	e := newEnv(t)
	c := e.client("123")
	assert.Equal(t, "Client 123", c.Name)
	assertMoney(t, "0", c.Balance)

	// Balance in the body is ignored.
	var updated ledger.Client
	e.ok(http.MethodPut, fmt.Sprintf("/api/clients/%d", c.ID),
		map[string]any{"name": "Renamed", "document": "123", "balance": "999"}, &updated)
	assert.Equal(t, "Renamed", updated.Name)
	assertMoney(t, "0", updated.Balance)

	var detail ledger.ClientDetail
	e.ok(http.MethodGet, fmt.Sprintf("/api/clients/%d", c.ID), nil, &detail)
	assert.Equal(t, "Renamed", detail.Name)
	assert.Empty(t, detail.Processes)

	code, resp := e.do(http.MethodDelete, fmt.Sprintf("/api/clients/%d", c.ID), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Client deleted successfully", resp.Message)

	code, resp = e.do(http.MethodGet, fmt.Sprintf("/api/clients/%d", c.ID), nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestClients_Errors(t *testing.T) {
	e := newEnv(t)
	e.client("123")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"missing name", http.MethodPost, "/api/clients", map[string]any{"document": "9"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed body", http.MethodPost, "/api/clients", "{", http.StatusBadRequest, "INVALID_BODY"},
		{"empty body", http.MethodPost, "/api/clients", nil, http.StatusBadRequest, "INVALID_BODY"},
		{"bad recurrence day", http.MethodPost, "/api/clients", map[string]any{"name": "X", "document": "9", "recurrence_day": 40}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"duplicate document", http.MethodPost, "/api/clients", map[string]any{"name": "Y", "document": "123"}, http.StatusConflict, "CONFLICT"},
		{"bad id", http.MethodGet, "/api/clients/abc", nil, http.StatusBadRequest, "INVALID_ID"},
		{"unknown client", http.MethodPut, "/api/clients/99", map[string]any{"name": "Z", "document": "7"}, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := e.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.False(t, resp.Success)
		})
	}
}

func TestProcesses_InstallmentSchedule(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")
	created := e.process(c.ID, "P-1", "1200", "em_conta", map[string]any{"count": 3, "first_due_date": "2024-01-01"})
	require.Len(t, created.PaymentIDs, 3)

	var detail ledger.ProcessDetail
	e.ok(http.MethodGet, fmt.Sprintf("/api/processes/%d", created.ID), nil, &detail)
	require.Len(t, detail.Payments, 3)
	var dues []string
	for _, p := range detail.Payments {
		assert.Equal(t, ledger.Pendente, p.Status)
		assertMoney(t, "400", p.ValuePaid)
		dues = append(dues, p.DueDate.String())
	}
	assert.ElementsMatch(t, []string{"2024-01-01", "2024-02-01", "2024-03-01"}, dues)

	b := e.balance(c.ID)
	assertMoney(t, "1200", b.Stored)
	assert.True(t, b.InSync)
}

func TestProcesses_DownPayment(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")
	created := e.process(c.ID, "P-1", "1000", "em_conta",
		map[string]any{"count": 2, "down_payment": "200", "first_due_date": "2024-06-15"})
	require.Len(t, created.PaymentIDs, 3)

	b := e.balance(c.ID)
	assertMoney(t, "800", b.Stored)
	assert.True(t, b.InSync)
}

func TestProcesses_UpdateAndDelete(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")
	created := e.process(c.ID, "P-1", "1000", "em_conta", nil)
	path := fmt.Sprintf("/api/processes/%d", created.ID)

	e.ok(http.MethodPut, path, map[string]any{"value_charged": "1500"}, nil)
	assertMoney(t, "1500", e.balance(c.ID).Stored)

	code, resp := e.do(http.MethodPut, path, map[string]any{"payment_method": "pix"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "PAYMENT_METHOD_LOCKED", resp.Code)

	code, resp = e.do(http.MethodPut, path, map[string]any{"status": "Closed"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	code, resp = e.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Process deleted successfully", resp.Message)
	assertMoney(t, "0", e.balance(c.ID).Stored)

	code, _ = e.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestProcesses_DuplicateNumber(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")
	e.process(c.ID, "P-1", "100", "pix", nil)

	code, resp := e.do(http.MethodPost, "/api/processes", map[string]any{
		"client_id": c.ID, "process_number": "P-1", "value_charged": "100", "payment_method": "pix",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", resp.Code)
}

func TestServices_Lifecycle(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")

	var created struct {
		ledger.Service
		PaymentIDs []int64 `json:"payment_ids"`
	}
	e.ok(http.MethodPost, "/api/services", map[string]any{
		"client_id": c.ID, "description": "Contrato", "value_charged": "600",
		"payment_method": "em_conta", "installments": map[string]any{"count": 2, "first_due_date": "2024-07-01"},
	}, &created)
	require.Len(t, created.PaymentIDs, 2)
	require.NotNil(t, created.EmContaDetails)

	path := fmt.Sprintf("/api/services/%d", created.ID)
	var detail ledger.ServiceDetail
	e.ok(http.MethodGet, path, nil, &detail)
	assertMoney(t, "600", detail.Summary.ValueCharged)
	assertMoney(t, "0", detail.Summary.TotalPaid)

	code, resp := e.do(http.MethodPut, path, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	e.ok(http.MethodPut, path, map[string]any{"value_charged": "900"}, nil)
	assertMoney(t, "900", e.balance(c.ID).Stored)

	e.ok(http.MethodDelete, path, nil, nil)
	assertMoney(t, "0", e.balance(c.ID).Stored)
}

type savedPayment struct {
	ledger.Payment
	Created bool `json:"created"`
}

func TestPayments_SaveByIDNeverDuplicates(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")
	created := e.process(c.ID, "P-1", "900", "em_conta", map[string]any{"count": 3, "first_due_date": "2024-06-10"})
	inst := created.PaymentIDs[0]

	for i := 0; i < 2; i++ {
		var saved savedPayment
		e.ok(http.MethodPost, "/api/payments",
			map[string]any{"id": inst, "value_paid": "300", "status": "Pago", "payment_date": "2024-06-10"}, &saved)
		assert.False(t, saved.Created)
		assert.Equal(t, inst, saved.ID)
		assert.Equal(t, ledger.Pago, saved.Status)
	}

	var detail ledger.ProcessDetail
	e.ok(http.MethodGet, fmt.Sprintf("/api/processes/%d", created.ID), nil, &detail)
	assert.Len(t, detail.Payments, 3)
	b := e.balance(c.ID)
	assertMoney(t, "600", b.Stored)
	assert.True(t, b.InSync)
}

func TestPayments_EditWindow(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")
	created := e.process(c.ID, "P-1", "1000", "em_conta", nil)

	var saved savedPayment
	e.ok(http.MethodPost, "/api/payments", map[string]any{"process_id": created.ID, "value_paid": "100"}, &saved)
	require.True(t, saved.Created)
	assertMoney(t, "900", e.balance(c.ID).Stored)

	path := fmt.Sprintf("/api/payments/%d", saved.ID)
	e.ok(http.MethodPut, path, map[string]any{"value_paid": "150"}, nil)
	assertMoney(t, "850", e.balance(c.ID).Stored)

	e.clock.Advance(25 * time.Hour)
	code, resp := e.do(http.MethodPut, path, map[string]any{"value_paid": "200"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "EDIT_WINDOW_CLOSED", resp.Code)
	assertMoney(t, "850", e.balance(c.ID).Stored)

	code, resp = e.do(http.MethodPut, "/api/payments/999", map[string]any{"value_paid": "1"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestPayments_CreateValidation(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")

	code, resp := e.do(http.MethodPost, "/api/payments", map[string]any{"value_paid": "10"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	code, resp = e.do(http.MethodPost, "/api/payments", map[string]any{"client_id": c.ID})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	code, resp = e.do(http.MethodPost, "/api/payments", map[string]any{"client_id": c.ID, "value_paid": "10", "status": "Done"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	code, _ = e.do(http.MethodPost, "/api/payments", map[string]any{"process_id": 77, "value_paid": "10"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPayments_Scheduled(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")
	e.process(c.ID, "P-9", "1200", "em_conta", map[string]any{"count": 3, "first_due_date": "2024-05-20"})

	code, resp := e.do(http.MethodGet, "/api/payments/scheduled", nil)
	require.Equal(t, http.StatusOK, code)
	var current []ledger.PendingInstallment
	require.NoError(t, json.Unmarshal(resp.Data, &current))
	require.Len(t, current, 1)
	assert.Equal(t, "2024-05-20", current[0].DueDate.String())
	assert.Equal(t, "P-9", current[0].ChargeLabel)
	assert.JSONEq(t, `{"month":5,"year":2024,"all":false}`, string(resp.Filters))

	var all []ledger.PendingInstallment
	e.ok(http.MethodGet, "/api/payments/scheduled?all=true&search=p-9", nil, &all)
	assert.Len(t, all, 3)

	var july []ledger.PendingInstallment
	e.ok(http.MethodGet, "/api/payments/scheduled?month=7&year=2024", nil, &july)
	require.Len(t, july, 1)
	assertMoney(t, "400", july[0].ValueDue)

	code, resp = e.do(http.MethodGet, "/api/payments/scheduled?month=july", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_PARAM", resp.Code)

	code, resp = e.do(http.MethodGet, "/api/payments/scheduled?month=13", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestPayments_DeleteLeavesDrift(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")
	created := e.process(c.ID, "P-1", "1000", "em_conta", nil)

	var saved savedPayment
	e.ok(http.MethodPost, "/api/payments", map[string]any{"process_id": created.ID, "value_paid": "100"}, &saved)

	code, resp := e.do(http.MethodDelete, "/api/payments", map[string]any{"id": saved.ID})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Payment deleted successfully", resp.Message)

	// Deleting again is a no-op.
	code, resp = e.do(http.MethodDelete, "/api/payments", map[string]any{"id": saved.ID})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Payment deleted successfully", resp.Message)

	code, resp = e.do(http.MethodDelete, "/api/payments", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	b := e.balance(c.ID)
	assert.False(t, b.InSync)
	assertMoney(t, "-100", b.Drift)

	var repaired struct {
		Before   balance `json:"before"`
		Repaired bool    `json:"repaired"`
	}
	e.ok(http.MethodPost, fmt.Sprintf("/api/clients/%d/balance/repair", c.ID), nil, &repaired)
	assert.True(t, repaired.Repaired)
	assertMoney(t, "-100", repaired.Before.Drift)

	b = e.balance(c.ID)
	assert.True(t, b.InSync)
	assertMoney(t, "1000", b.Stored)
}

func TestExpenses_RollForward(t *testing.T) {
	e := newEnv(t)

	var exp ledger.OfficeExpense
	e.ok(http.MethodPost, "/api/office-expenses",
		map[string]any{"description": "Aluguel", "amount": "1500", "due_date": "2024-01-31", "is_recurrent": true}, &exp)
	assert.Equal(t, ledger.Pendente, exp.Status)

	path := fmt.Sprintf("/api/office-expenses/%d", exp.ID)
	var updated struct {
		ledger.OfficeExpense
		Successor *ledger.OfficeExpense `json:"successor"`
	}
	e.ok(http.MethodPatch, path, map[string]any{"status": "Pago"}, &updated)
	assert.Equal(t, exp.ID, updated.ID)
	assert.Equal(t, ledger.Pago, updated.Status)
	require.NotNil(t, updated.Successor)
	assert.Equal(t, "2024-03-02", updated.Successor.DueDate.String())
	assert.Equal(t, ledger.Pendente, updated.Successor.Status)

	// Paying again spawns nothing.
	updated.Successor = nil
	e.ok(http.MethodPatch, path, map[string]any{"status": "Pago"}, &updated)
	assert.Nil(t, updated.Successor)

	code, resp := e.do(http.MethodPost, "/api/office-expenses", map[string]any{"description": "Luz", "amount": "80"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	e.ok(http.MethodDelete, path, nil, nil)
	code, _ = e.do(http.MethodPatch, path, map[string]any{"status": "Pendente"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestActivity_FeedAndSearch(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")
	e.process(c.ID, "P-77", "1000", "em_conta", nil)

	var feed struct {
		Activities []types.ActivityEntry `json:"activities"`
		TotalCount int                   `json:"total_count"`
	}
	e.ok(http.MethodGet, fmt.Sprintf("/api/activity/client/%d", c.ID), nil, &feed)
	require.Equal(t, 2, feed.TotalCount)
	got := []string{feed.Activities[0].EventType, feed.Activities[1].EventType}
	assert.ElementsMatch(t, []string{"client_created", "process_created"}, got)

	var found struct {
		Results    []json.RawMessage `json:"results"`
		TotalCount int               `json:"total_count"`
	}
	e.ok(http.MethodGet, "/api/activity/search?q=p-77&entity_type=process", nil, &found)
	assert.Equal(t, 1, found.TotalCount)

	var summary struct {
		Categories       map[string]json.RawMessage `json:"categories"`
		OverallSentiment string                     `json:"overall_sentiment"`
	}
	e.ok(http.MethodGet, fmt.Sprintf("/api/activity/client/%d/summary", c.ID), nil, &summary)
	assert.Contains(t, summary.Categories, "client")
	assert.Contains(t, summary.Categories, "billing")
	assert.Equal(t, "positive", summary.OverallSentiment)

	code, resp := e.do(http.MethodGet, "/api/activity/search", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "MISSING_PARAMS", resp.Code)

	code, resp = e.do(http.MethodGet, "/api/activity/client/1?min_weight=huge", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_PARAM", resp.Code)
}

func TestResponses_EntityFieldsAtTopLevel(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")

	process := e.dataFields(http.MethodPost, "/api/processes", map[string]any{
		"client_id": c.ID, "process_number": "P-1", "value_charged": "900", "payment_method": "em_conta",
		"installments": map[string]any{"count": 3, "first_due_date": "2024-06-10"},
	})
	for _, k := range []string{"id", "client_id", "process_number", "value_charged", "payment_ids"} {
		assert.Contains(t, process, k)
	}
	assert.NotContains(t, process, "charge")
	var processID int64
	require.NoError(t, json.Unmarshal(process["id"], &processID))

	updated := e.dataFields(http.MethodPut, fmt.Sprintf("/api/processes/%d", processID), map[string]any{"value_charged": "1000"})
	assert.Contains(t, updated, "id")
	assert.Contains(t, updated, "adjustment")

	service := e.dataFields(http.MethodPost, "/api/services", map[string]any{
		"client_id": c.ID, "description": "Parecer", "value_charged": "100", "payment_method": "pix",
	})
	assert.Contains(t, service, "id")
	assert.JSONEq(t, `[]`, string(service["payment_ids"]))

	payment := e.dataFields(http.MethodPost, "/api/payments", map[string]any{"process_id": processID, "value_paid": "50"})
	for _, k := range []string{"id", "process_id", "value_paid", "status", "created", "adjustment"} {
		assert.Contains(t, payment, k)
	}
	assert.NotContains(t, payment, "payment")
}

func TestPayments_SaveByIDRequiresLink(t *testing.T) {
	e := newEnv(t)
	c := e.client("1")
	created := e.process(c.ID, "P-1", "900", "em_conta", map[string]any{"count": 3, "first_due_date": "2024-06-10"})

	code, resp := e.do(http.MethodPost, "/api/payments", map[string]any{"id": created.PaymentIDs[0], "value_paid": "12"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	var detail ledger.ProcessDetail
	e.ok(http.MethodGet, fmt.Sprintf("/api/processes/%d", created.ID), nil, &detail)
	for _, p := range detail.Payments {
		assert.Equal(t, ledger.Pendente, p.Status)
	}
	assertMoney(t, "900", e.balance(c.ID).Stored)
}

func TestClients_DeleteRemovesCharges(t *testing.T) {
	e := newEnv(t)
	c := e.client("123")
	created := e.process(c.ID, "P-1", "1000", "em_conta", nil)
	processPath := fmt.Sprintf("/api/processes/%d", created.ID)

	e.ok(http.MethodDelete, fmt.Sprintf("/api/clients/%d", c.ID), nil, nil)

	code, _ := e.do(http.MethodGet, processPath, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = e.do(http.MethodPost, "/api/payments", map[string]any{"process_id": created.ID, "value_paid": "10"})
	assert.Equal(t, http.StatusNotFound, code)

	var feed struct {
		TotalCount int `json:"total_count"`
	}
	e.ok(http.MethodGet, fmt.Sprintf("/api/activity/process/%d?categories=client", created.ID), nil, &feed)
	assert.Equal(t, 1, feed.TotalCount, "process feed shows the client deletion")

	again := e.client("123")
	recreated := e.process(again.ID, "P-1", "1000", "em_conta", nil)
	assert.NotEqual(t, created.ID, recreated.ID)
	assertMoney(t, "1000", e.balance(again.ID).Stored)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	log := logrus.New()
	log.SetOutput(io.Discard)

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{Port: 0, DB: storetest.Open(t), ShutdownTimeout: time.Second, Log: log})
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
