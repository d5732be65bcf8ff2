package handler

import (
	"database/sql"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/lawoffice/internal/event"
	"github.com/matthewbaird/lawoffice/internal/ledger"
)

// ClientHandler implements HTTP handlers for clients and their balances.
type ClientHandler struct {
	base
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(d Deps) *ClientHandler {
	return &ClientHandler{base: newBase(d, "client")}
}

type clientRequest struct {
	Name            string           `json:"name" validate:"required"`
	Document        string           `json:"document" validate:"required"`
	Contact         *string          `json:"contact"`
	Address         *string          `json:"address"`
	IsRecurrent     bool             `json:"is_recurrent"`
	RecurrenceValue *decimal.Decimal `json:"recurrence_value"`
	RecurrenceDay   *int             `json:"recurrence_day" validate:"omitempty,min=1,max=31"`
}

func (req clientRequest) input() ledger.ClientInput {
	return ledger.ClientInput{
		Name:            req.Name,
		Document:        req.Document,
		Contact:         req.Contact,
		Address:         req.Address,
		IsRecurrent:     req.IsRecurrent,
		RecurrenceValue: req.RecurrenceValue,
		RecurrenceDay:   req.RecurrenceDay,
	}
}

// CreateClient handles POST /api/clients.
func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := req.input()
	if err := in.Validate(); err != nil {
		ledgerErrorToHTTP(w, r, h.log, "CreateClient", err)
		return
	}

	var c ledger.Client
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		c, err = h.ledger.CreateClient(r.Context(), tx, in)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "CreateClient", err)
		return
	}
	h.recordEvents(r.Context(), event.NewClientCreated(c))
	writeData(w, c)
}

// GetClient handles GET /api/clients/{id}.
func (h *ClientHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	d, err := h.ledger.GetClient(r.Context(), h.db, id)
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "GetClient", err)
		return
	}
	writeData(w, d)
}

// UpdateClient handles PUT /api/clients/{id}. The balance is never taken
// from the request.
func (h *ClientHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req clientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := req.input()
	if err := in.Validate(); err != nil {
		ledgerErrorToHTTP(w, r, h.log, "UpdateClient", err)
		return
	}

	var c ledger.Client
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		c, err = h.ledger.UpdateClient(r.Context(), tx, id, in)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "UpdateClient", err)
		return
	}
	h.recordEvents(r.Context(), event.NewClientUpdated(c))
	writeData(w, c)
}

// DeleteClient handles DELETE /api/clients/{id}.
func (h *ClientHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var del ledger.ClientDeletion
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		del, err = h.ledger.DeleteClient(r.Context(), tx, id)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "DeleteClient", err)
		return
	}
	h.recordEvents(r.Context(), event.NewClientDeleted(id, del.Charges...))
	writeMessage(w, "Client deleted successfully")
}

// GetBalance handles GET /api/clients/{id}/balance.
func (h *ClientHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	report, err := h.ledger.RecomputeBalance(r.Context(), h.db, id)
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "GetBalance", err)
		return
	}
	writeData(w, balanceResponse(report))
}

// RepairBalance handles POST /api/clients/{id}/balance/repair.
func (h *ClientHandler) RepairBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var before ledger.BalanceReport
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		before, err = h.ledger.RepairBalance(r.Context(), tx, id)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "RepairBalance", err)
		return
	}
	if !before.InSync() {
		h.recordEvents(r.Context(), event.NewBalanceRepaired(before))
	}
	writeData(w, struct {
		Before   balanceView `json:"before"`
		Repaired bool        `json:"repaired"`
	}{Before: balanceResponse(before), Repaired: !before.InSync()})
}

type balanceView struct {
	ledger.BalanceReport
	InSync bool `json:"in_sync"`
}

func balanceResponse(r ledger.BalanceReport) balanceView {
	return balanceView{BalanceReport: r, InSync: r.InSync()}
}
