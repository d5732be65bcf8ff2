package handler

import (
	"database/sql"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/lawoffice/internal/event"
	"github.com/matthewbaird/lawoffice/internal/ledger"
)

// ServiceHandler implements HTTP handlers for non-litigation services.
type ServiceHandler struct {
	base
}

// NewServiceHandler creates a new ServiceHandler.
func NewServiceHandler(d Deps) *ServiceHandler {
	return &ServiceHandler{base: newBase(d, "service")}
}

type createServiceRequest struct {
	ClientID      *int64                  `json:"client_id" validate:"required"`
	Description   string                  `json:"description" validate:"required"`
	ValueCharged  *decimal.Decimal        `json:"value_charged" validate:"required"`
	PaymentMethod ledger.PaymentMethod    `json:"payment_method" validate:"required,oneof=a_vista cartao pix em_conta"`
	Installments  *ledger.InstallmentPlan `json:"installments"`
}

type updateServiceRequest struct {
	Description   *string               `json:"description"`
	ValueCharged  *decimal.Decimal      `json:"value_charged"`
	PaymentMethod *ledger.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=a_vista cartao pix em_conta"`
	Status        *ledger.ChargeStatus  `json:"status" validate:"omitempty,oneof=Ativo Arquivado Concluido"`
}

// CreateService handles POST /api/services.
func (h *ServiceHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req createServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := ledger.NewService{
		ClientID:      *req.ClientID,
		Description:   req.Description,
		ValueCharged:  *req.ValueCharged,
		PaymentMethod: req.PaymentMethod,
		Installments:  req.Installments,
	}
	if err := in.Validate(); err != nil {
		ledgerErrorToHTTP(w, r, h.log, "CreateService", err)
		return
	}

	var (
		s   ledger.Service
		res ledger.ChargeResult
	)
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		s, res, err = h.ledger.CreateService(r.Context(), tx, in)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "CreateService", err)
		return
	}
	h.recordEvents(r.Context(), event.NewServiceCreated(s, res))
	writeData(w, serviceCreated{Service: s, PaymentIDs: paymentIDs(res)})
}

// GetService handles GET /api/services/{id}.
func (h *ServiceHandler) GetService(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	d, err := h.ledger.GetService(r.Context(), h.db, id)
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "GetService", err)
		return
	}
	writeData(w, d)
}

// UpdateService handles PUT /api/services/{id}.
func (h *ServiceHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req updateServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	upd := ledger.ServiceUpdate{
		Description:   req.Description,
		ValueCharged:  req.ValueCharged,
		PaymentMethod: req.PaymentMethod,
		Status:        req.Status,
	}

	var (
		s   ledger.Service
		adj ledger.Adjustment
	)
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		s, adj, err = h.ledger.UpdateService(r.Context(), tx, id, upd)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "UpdateService", err)
		return
	}
	h.recordEvents(r.Context(), event.NewServiceUpdated(s, adj))
	writeData(w, serviceUpdated{Service: s, Adjustment: adj})
}

// DeleteService handles DELETE /api/services/{id}.
func (h *ServiceHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var (
		s   ledger.ServiceDetail
		adj ledger.Adjustment
	)
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		if s, err = h.ledger.GetService(r.Context(), tx, id); err != nil {
			return err
		}
		adj, err = h.ledger.DeleteService(r.Context(), tx, id)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "DeleteService", err)
		return
	}
	h.recordEvents(r.Context(), event.NewServiceDeleted(s.Service, adj))
	writeMessage(w, "Service deleted successfully")
}

type serviceCreated struct {
	ledger.Service
	PaymentIDs []int64 `json:"payment_ids"`
}

type serviceUpdated struct {
	ledger.Service
	Adjustment ledger.Adjustment `json:"adjustment"`
}
