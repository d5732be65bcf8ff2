package handler

import (
	"database/sql"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/lawoffice/internal/event"
	"github.com/matthewbaird/lawoffice/internal/ledger"
)

// ProcessHandler implements HTTP handlers for legal processes.
type ProcessHandler struct {
	base
}

// NewProcessHandler creates a new ProcessHandler.
func NewProcessHandler(d Deps) *ProcessHandler {
	return &ProcessHandler{base: newBase(d, "process")}
}

type createProcessRequest struct {
	ClientID      *int64                  `json:"client_id" validate:"required"`
	ProcessNumber string                  `json:"process_number" validate:"required"`
	Tribunal      *string                 `json:"tribunal"`
	Target        *string                 `json:"target"`
	Description   *string                 `json:"description"`
	Status        ledger.ChargeStatus     `json:"status" validate:"omitempty,oneof=Ativo Arquivado Concluido"`
	ValueCharged  *decimal.Decimal        `json:"value_charged" validate:"required"`
	PaymentMethod ledger.PaymentMethod    `json:"payment_method" validate:"required,oneof=a_vista cartao pix em_conta"`
	Installments  *ledger.InstallmentPlan `json:"installments"`
}

type updateProcessRequest struct {
	ClientID      *int64                `json:"client_id" validate:"omitempty,gt=0"`
	ProcessNumber *string               `json:"process_number" validate:"omitempty,min=1"`
	Tribunal      *string               `json:"tribunal"`
	Target        *string               `json:"target"`
	Description   *string               `json:"description"`
	Status        *ledger.ChargeStatus  `json:"status" validate:"omitempty,oneof=Ativo Arquivado Concluido"`
	ValueCharged  *decimal.Decimal      `json:"value_charged"`
	PaymentMethod *ledger.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=a_vista cartao pix em_conta"`
}

// CreateProcess handles POST /api/processes. An em_conta process with an
// installments descriptor also gets its payment schedule.
func (h *ProcessHandler) CreateProcess(w http.ResponseWriter, r *http.Request) {
	var req createProcessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := ledger.NewProcess{
		ClientID:      *req.ClientID,
		ProcessNumber: req.ProcessNumber,
		Tribunal:      req.Tribunal,
		Target:        req.Target,
		Description:   req.Description,
		Status:        req.Status,
		ValueCharged:  *req.ValueCharged,
		PaymentMethod: req.PaymentMethod,
		Installments:  req.Installments,
	}
	if err := in.Validate(); err != nil {
		ledgerErrorToHTTP(w, r, h.log, "CreateProcess", err)
		return
	}

	var (
		p   ledger.Process
		res ledger.ChargeResult
	)
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		p, res, err = h.ledger.CreateProcess(r.Context(), tx, in)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "CreateProcess", err)
		return
	}
	h.recordEvents(r.Context(), event.NewProcessCreated(p, res))
	writeData(w, processCreated{Process: p, PaymentIDs: paymentIDs(res)})
}

// GetProcess handles GET /api/processes/{id}.
func (h *ProcessHandler) GetProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	d, err := h.ledger.GetProcess(r.Context(), h.db, id)
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "GetProcess", err)
		return
	}
	writeData(w, d)
}

// UpdateProcess handles PUT /api/processes/{id}. Value, method and client
// changes go through the balance engine inside the same transaction.
func (h *ProcessHandler) UpdateProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req updateProcessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	upd := ledger.ProcessUpdate{
		ClientID:      req.ClientID,
		ProcessNumber: req.ProcessNumber,
		Tribunal:      req.Tribunal,
		Target:        req.Target,
		Description:   req.Description,
		Status:        req.Status,
		ValueCharged:  req.ValueCharged,
		PaymentMethod: req.PaymentMethod,
	}

	var (
		p   ledger.Process
		adj ledger.Adjustment
	)
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		p, adj, err = h.ledger.UpdateProcess(r.Context(), tx, id, upd)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "UpdateProcess", err)
		return
	}
	h.recordEvents(r.Context(), event.NewProcessUpdated(p, adj))
	writeData(w, processUpdated{Process: p, Adjustment: adj})
}

// DeleteProcess handles DELETE /api/processes/{id}.
func (h *ProcessHandler) DeleteProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var (
		p   ledger.ProcessDetail
		adj ledger.Adjustment
	)
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		if p, err = h.ledger.GetProcess(r.Context(), tx, id); err != nil {
			return err
		}
		adj, err = h.ledger.DeleteProcess(r.Context(), tx, id)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "DeleteProcess", err)
		return
	}
	h.recordEvents(r.Context(), event.NewProcessDeleted(p.Process, adj))
	writeMessage(w, "Process deleted successfully")
}

// processCreated is the process with the ids of its generated payments
// alongside its own fields.
type processCreated struct {
	ledger.Process
	PaymentIDs []int64 `json:"payment_ids"`
}

type processUpdated struct {
	ledger.Process
	Adjustment ledger.Adjustment `json:"adjustment"`
}

func paymentIDs(res ledger.ChargeResult) []int64 {
	if res.PaymentIDs == nil {
		return []int64{}
	}
	return res.PaymentIDs
}
