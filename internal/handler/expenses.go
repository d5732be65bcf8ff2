package handler

import (
	"database/sql"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/lawoffice/internal/event"
	"github.com/matthewbaird/lawoffice/internal/ledger"
)

// ExpenseHandler implements HTTP handlers for office expenses.
type ExpenseHandler struct {
	base
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(d Deps) *ExpenseHandler {
	return &ExpenseHandler{base: newBase(d, "expense")}
}

type createExpenseRequest struct {
	Description string           `json:"description" validate:"required"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	DueDate     *ledger.Date     `json:"due_date" validate:"required"`
	IsRecurrent bool             `json:"is_recurrent"`
}

type updateExpenseRequest struct {
	Status      *ledger.SettlementStatus `json:"status" validate:"omitempty,oneof=Pago Pendente"`
	Description *string                  `json:"description"`
	Amount      *decimal.Decimal         `json:"amount"`
	DueDate     *ledger.Date             `json:"due_date"`
	IsRecurrent *bool                    `json:"is_recurrent"`
}

// CreateExpense handles POST /api/office-expenses. New expenses start
// Pendente.
func (h *ExpenseHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := ledger.NewExpense{
		Description: req.Description,
		Amount:      *req.Amount,
		DueDate:     req.DueDate,
		IsRecurrent: req.IsRecurrent,
	}
	if err := in.Validate(); err != nil {
		ledgerErrorToHTTP(w, r, h.log, "CreateExpense", err)
		return
	}

	var e ledger.OfficeExpense
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		e, err = h.ledger.CreateExpense(r.Context(), tx, in)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "CreateExpense", err)
		return
	}
	h.recordEvents(r.Context(), event.NewExpenseCreated(e))
	writeData(w, e)
}

// UpdateExpense handles PATCH /api/office-expenses/{id}. Paying a recurrent
// expense creates next month's occurrence in the same transaction.
func (h *ExpenseHandler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req updateExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	upd := ledger.ExpenseUpdate{
		Status:      req.Status,
		Description: req.Description,
		Amount:      req.Amount,
		DueDate:     req.DueDate,
		IsRecurrent: req.IsRecurrent,
	}

	var res ledger.ExpenseResult
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		res, err = h.ledger.UpdateExpense(r.Context(), tx, id, upd)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "UpdateExpense", err)
		return
	}

	evts := []event.DomainEvent{event.NewExpenseUpdated(res.Expense)}
	if res.Successor != nil {
		evts = append(evts, event.NewExpenseRolledForward(res.Expense, *res.Successor))
	}
	h.recordEvents(r.Context(), evts...)
	writeData(w, struct {
		ledger.OfficeExpense
		Successor *ledger.OfficeExpense `json:"successor,omitempty"`
	}{OfficeExpense: res.Expense, Successor: res.Successor})
}

// DeleteExpense handles DELETE /api/office-expenses/{id}.
func (h *ExpenseHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	err := h.inTx(r.Context(), func(tx *sql.Tx) error {
		return h.ledger.DeleteExpense(r.Context(), tx, id)
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "DeleteExpense", err)
		return
	}
	h.recordEvents(r.Context(), event.NewExpenseDeleted(id))
	writeMessage(w, "Office expense deleted successfully")
}
