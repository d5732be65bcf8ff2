package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/lawoffice/internal/event"
	"github.com/matthewbaird/lawoffice/internal/ledger"
)

// PaymentHandler implements HTTP handlers for payments.
type PaymentHandler struct {
	base
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(d Deps) *PaymentHandler {
	return &PaymentHandler{base: newBase(d, "payment")}
}

// timestamp accepts any layout ledger.ParseTimestamp does.
type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ledger.ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t *timestamp) ptr() *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}

type savePaymentRequest struct {
	ID          *int64                  `json:"id" validate:"omitempty,gt=0"`
	ProcessID   *int64                  `json:"process_id" validate:"omitempty,gt=0"`
	ServiceID   *int64                  `json:"service_id" validate:"omitempty,gt=0"`
	ClientID    *int64                  `json:"client_id" validate:"omitempty,gt=0"`
	ValuePaid   *decimal.Decimal        `json:"value_paid" validate:"required"`
	PaymentDate *timestamp              `json:"payment_date"`
	DueDate     *ledger.Date            `json:"due_date"`
	Status      ledger.SettlementStatus `json:"status" validate:"omitempty,oneof=Pago Pendente"`
}

type updatePaymentRequest struct {
	ValuePaid   *decimal.Decimal        `json:"value_paid" validate:"required"`
	PaymentDate *timestamp              `json:"payment_date"`
	Status      ledger.SettlementStatus `json:"status" validate:"omitempty,oneof=Pago Pendente"`
}

type deletePaymentRequest struct {
	ID *int64 `json:"id" validate:"required,gt=0"`
}

// SavePayment handles POST /api/payments. With an id in the body the
// payment is updated in place, so repeating the call never duplicates it.
func (h *PaymentHandler) SavePayment(w http.ResponseWriter, r *http.Request) {
	var req savePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := ledger.NewPayment{
		ProcessID:   req.ProcessID,
		ServiceID:   req.ServiceID,
		ClientID:    req.ClientID,
		ValuePaid:   *req.ValuePaid,
		PaymentDate: req.PaymentDate.ptr(),
		DueDate:     req.DueDate,
		Status:      req.Status,
	}
	if err := in.Validate(); err != nil {
		ledgerErrorToHTTP(w, r, h.log, "SavePayment", err)
		return
	}

	var res ledger.PaymentResult
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		res, err = h.ledger.SavePayment(r.Context(), tx, req.ID, in)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "SavePayment", err)
		return
	}
	h.recordEvents(r.Context(), event.NewPaymentSaved(res))
	writeData(w, paymentSaved{Payment: res.Payment, Created: res.Created, Adjustment: res.Adjustment})
}

// UpdatePayment handles PUT /api/payments/{id}. Payments older than the
// edit window are refused.
func (h *PaymentHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req updatePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	upd := ledger.PaymentUpdate{
		ValuePaid:   *req.ValuePaid,
		PaymentDate: req.PaymentDate.ptr(),
		Status:      req.Status,
	}
	if err := upd.Validate(); err != nil {
		ledgerErrorToHTTP(w, r, h.log, "UpdatePayment", err)
		return
	}

	var res ledger.PaymentResult
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		res, err = h.ledger.UpdatePayment(r.Context(), tx, id, upd)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "UpdatePayment", err)
		return
	}
	h.recordEvents(r.Context(), event.NewPaymentSaved(res))
	writeData(w, paymentSaved{Payment: res.Payment, Adjustment: res.Adjustment})
}

// DeletePayment handles DELETE /api/payments with the id in the body.
// Deleting a payment that is already gone succeeds without an event.
func (h *PaymentHandler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	var req deletePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		p       ledger.Payment
		removed bool
	)
	err := h.inTx(r.Context(), func(tx *sql.Tx) (err error) {
		p, err = h.ledger.GetPayment(r.Context(), tx, *req.ID)
		if errors.Is(err, ledger.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		removed, err = h.ledger.DeletePayment(r.Context(), tx, *req.ID)
		return err
	})
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "DeletePayment", err)
		return
	}
	if removed {
		h.recordEvents(r.Context(), event.NewPaymentDeleted(p))
	}
	writeMessage(w, "Payment deleted successfully")
}

// ScheduledPayments handles GET /api/payments/scheduled: pending
// installments due in ?month=&year= (default: the current month), or all of
// them with ?all=true, optionally narrowed by ?search=.
func (h *PaymentHandler) ScheduledPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		f   ledger.ScheduleFilter
		err error
	)
	if f.Month, err = intParam(q, "month"); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if f.Year, err = intParam(q, "year"); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	f.All = q.Get("all") == "true"
	f.Search = q.Get("search")

	list, resolved, err := h.ledger.ScheduledPayments(r.Context(), h.db, f)
	if err != nil {
		ledgerErrorToHTTP(w, r, h.log, "ScheduledPayments", err)
		return
	}
	writeFiltered(w, list, scheduleFilters{Month: resolved.Month, Year: resolved.Year, All: resolved.All})
}

type scheduleFilters struct {
	Month int  `json:"month"`
	Year  int  `json:"year"`
	All   bool `json:"all"`
}

// paymentSaved is the payment's own fields plus what saving it did.
type paymentSaved struct {
	ledger.Payment
	Created    bool              `json:"created"`
	Adjustment ledger.Adjustment `json:"adjustment"`
}
