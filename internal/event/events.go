package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/lawoffice/internal/ledger"
	"github.com/matthewbaird/lawoffice/internal/types"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string            `json:"id"`
	EventType        string            `json:"event_type"`
	OccurredAt       time.Time         `json:"occurred_at"`
	AffectedEntities []types.SourceRef `json:"affected_entities"`
	Summary          string            `json:"summary"`
	Category         string            `json:"category"` // "billing", "payment", "client", "expense"
	Weight           string            `json:"weight"`   // "critical", "major", "minor", "info"
	Polarity         string            `json:"polarity"` // "positive", "negative", "neutral"
	Payload          json.RawMessage   `json:"payload,omitempty"`
}

// Categories.
const (
	CategoryBilling = "billing"
	CategoryPayment = "payment"
	CategoryClient  = "client"
	CategoryExpense = "expense"
)

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func idString(id int64) string { return strconv.FormatInt(id, 10) }

func ref(entityType string, id int64, role string) types.SourceRef {
	return types.SourceRef{EntityType: entityType, EntityID: idString(id), Role: role}
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func newEvent(eventType, category, weight, polarity, summary string, refs []types.SourceRef, payload any) DomainEvent {
	return DomainEvent{
		ID:               newID(),
		EventType:        eventType,
		OccurredAt:       time.Now().UTC(),
		AffectedEntities: refs,
		Summary:          summary,
		Category:         category,
		Weight:           weight,
		Polarity:         polarity,
		Payload:          mustJSON(payload),
	}
}

// withAdjustedClients appends every client whose balance moved and is not
// yet referenced.
func withAdjustedClients(refs []types.SourceRef, adj ledger.Adjustment) []types.SourceRef {
	seen := make(map[string]bool)
	for _, r := range refs {
		if r.EntityType == types.EntityClient {
			seen[r.EntityID] = true
		}
	}
	for _, c := range adj.Changes {
		id := idString(c.ClientID)
		if seen[id] {
			continue
		}
		seen[id] = true
		refs = append(refs, types.SourceRef{EntityType: types.EntityClient, EntityID: id, Role: types.RoleRelated})
	}
	return refs
}

func balancePolarity(adj ledger.Adjustment) string {
	switch net := adj.Net(); {
	case net.IsNegative():
		return "positive"
	case net.IsPositive():
		return "negative"
	}
	return "neutral"
}

// ── Client events ────────────────────────────────────────────────────────────

// ClientPayload carries the client fields every client event reports.
type ClientPayload struct {
	ClientID int64  `json:"client_id"`
	Name     string `json:"name,omitempty"`
	Document string `json:"document,omitempty"`
}

func NewClientCreated(c ledger.Client) DomainEvent {
	return newEvent("client_created", CategoryClient, "info", "positive",
		fmt.Sprintf("Client %s registered", c.Name),
		[]types.SourceRef{ref(types.EntityClient, c.ID, types.RoleSubject)},
		ClientPayload{ClientID: c.ID, Name: c.Name, Document: c.Document})
}

func NewClientUpdated(c ledger.Client) DomainEvent {
	return newEvent("client_updated", CategoryClient, "info", "neutral",
		fmt.Sprintf("Client %s updated", c.Name),
		[]types.SourceRef{ref(types.EntityClient, c.ID, types.RoleSubject)},
		ClientPayload{ClientID: c.ID, Name: c.Name, Document: c.Document})
}

// ClientDeletedPayload lists the charges removed with the client.
type ClientDeletedPayload struct {
	ClientID int64              `json:"client_id"`
	Charges  []ledger.ChargeRef `json:"charges,omitempty"`
}

// NewClientDeleted reports a client deletion. Charges removed with the
// client are referenced so their feeds show the deletion too.
func NewClientDeleted(id int64, charges ...ledger.ChargeRef) DomainEvent {
	refs := []types.SourceRef{ref(types.EntityClient, id, types.RoleSubject)}
	for _, c := range charges {
		refs = append(refs, ref(string(c.Kind), c.ID, types.RoleRelated))
	}
	summary := fmt.Sprintf("Client %d deleted", id)
	if len(charges) > 0 {
		summary = fmt.Sprintf("Client %d deleted with %d charges", id, len(charges))
	}
	return newEvent("client_deleted", CategoryClient, "major", "negative", summary, refs,
		ClientDeletedPayload{ClientID: id, Charges: charges})
}

// BalanceRepairedPayload carries the reconciliation report that was applied.
type BalanceRepairedPayload struct {
	Report ledger.BalanceReport `json:"report"`
}

func NewBalanceRepaired(r ledger.BalanceReport) DomainEvent {
	weight := "info"
	if !r.InSync() {
		weight = "critical"
	}
	return newEvent("balance_repaired", CategoryClient, weight, "neutral",
		fmt.Sprintf("Client %d balance set from %s to %s", r.ClientID, money(r.Stored), money(r.Computed)),
		[]types.SourceRef{ref(types.EntityClient, r.ClientID, types.RoleSubject)},
		BalanceRepairedPayload{Report: r})
}

// ── Charge events ────────────────────────────────────────────────────────────

// ChargePayload carries event-specific data for process and service events.
type ChargePayload struct {
	Kind             ledger.ChargeKind    `json:"kind"`
	ChargeID         int64                `json:"charge_id"`
	ClientID         int64                `json:"client_id"`
	Label            string               `json:"label"`
	ValueCharged     string               `json:"value_charged"`
	PaymentMethod    ledger.PaymentMethod `json:"payment_method"`
	InstallmentCount int                  `json:"installment_count,omitempty"`
	Installment      string               `json:"installment,omitempty"`
	PaymentIDs       []int64              `json:"payment_ids,omitempty"`
	Adjustment       ledger.Adjustment    `json:"adjustment"`
}

func processPayload(p ledger.Process, adj ledger.Adjustment) ChargePayload {
	return ChargePayload{
		Kind: ledger.KindProcess, ChargeID: p.ID, ClientID: p.ClientID, Label: p.ProcessNumber,
		ValueCharged: money(p.ValueCharged), PaymentMethod: p.PaymentMethod, Adjustment: adj,
	}
}

func servicePayload(s ledger.Service, adj ledger.Adjustment) ChargePayload {
	return ChargePayload{
		Kind: ledger.KindService, ChargeID: s.ID, ClientID: s.ClientID, Label: s.Description,
		ValueCharged: money(s.ValueCharged), PaymentMethod: s.PaymentMethod, Adjustment: adj,
	}
}

func withSchedule(p ChargePayload, res ledger.ChargeResult) ChargePayload {
	p.PaymentIDs = res.PaymentIDs
	if res.Schedule != nil {
		p.Installment = money(res.Schedule.Installment)
		for _, sp := range res.Schedule.Payments {
			if sp.Status == ledger.Pendente {
				p.InstallmentCount++
			}
		}
	}
	return p
}

func chargeRefs(entityType string, id, clientID int64, adj ledger.Adjustment) []types.SourceRef {
	return withAdjustedClients([]types.SourceRef{
		ref(entityType, id, types.RoleSubject),
		ref(types.EntityClient, clientID, types.RoleContext),
	}, adj)
}

func NewProcessCreated(p ledger.Process, res ledger.ChargeResult) DomainEvent {
	return newEvent("process_created", CategoryBilling, "minor", "neutral",
		fmt.Sprintf("Process %s opened for %s (%s)", p.ProcessNumber, money(p.ValueCharged), p.PaymentMethod),
		chargeRefs(types.EntityProcess, p.ID, p.ClientID, res.Adjustment),
		withSchedule(processPayload(p, res.Adjustment), res))
}

func NewProcessUpdated(p ledger.Process, adj ledger.Adjustment) DomainEvent {
	weight := "info"
	if len(adj.Changes) > 0 {
		weight = "minor"
	}
	if adj.PaymentsDeleted > 0 {
		weight = "major"
	}
	return newEvent("process_updated", CategoryBilling, weight, balancePolarity(adj),
		fmt.Sprintf("Process %s updated, balance moved %s", p.ProcessNumber, money(adj.Net())),
		chargeRefs(types.EntityProcess, p.ID, p.ClientID, adj),
		processPayload(p, adj))
}

func NewProcessDeleted(p ledger.Process, adj ledger.Adjustment) DomainEvent {
	return newEvent("process_deleted", CategoryBilling, "major", "neutral",
		fmt.Sprintf("Process %s deleted, balance moved %s", p.ProcessNumber, money(adj.Net())),
		chargeRefs(types.EntityProcess, p.ID, p.ClientID, adj),
		processPayload(p, adj))
}

func NewServiceCreated(s ledger.Service, res ledger.ChargeResult) DomainEvent {
	return newEvent("service_created", CategoryBilling, "minor", "neutral",
		fmt.Sprintf("Service %q opened for %s (%s)", s.Description, money(s.ValueCharged), s.PaymentMethod),
		chargeRefs(types.EntityService, s.ID, s.ClientID, res.Adjustment),
		withSchedule(servicePayload(s, res.Adjustment), res))
}

func NewServiceUpdated(s ledger.Service, adj ledger.Adjustment) DomainEvent {
	weight := "info"
	if len(adj.Changes) > 0 {
		weight = "minor"
	}
	return newEvent("service_updated", CategoryBilling, weight, balancePolarity(adj),
		fmt.Sprintf("Service %q updated, balance moved %s", s.Description, money(adj.Net())),
		chargeRefs(types.EntityService, s.ID, s.ClientID, adj),
		servicePayload(s, adj))
}

func NewServiceDeleted(s ledger.Service, adj ledger.Adjustment) DomainEvent {
	return newEvent("service_deleted", CategoryBilling, "major", "neutral",
		fmt.Sprintf("Service %q deleted, balance moved %s", s.Description, money(adj.Net())),
		chargeRefs(types.EntityService, s.ID, s.ClientID, adj),
		servicePayload(s, adj))
}

// ── Payment events ───────────────────────────────────────────────────────────

// PaymentPayload carries event-specific data for payment events.
type PaymentPayload struct {
	Payment    ledger.Payment    `json:"payment"`
	Adjustment ledger.Adjustment `json:"adjustment"`
}

func paymentRefs(p ledger.Payment, adj ledger.Adjustment) []types.SourceRef {
	refs := []types.SourceRef{ref(types.EntityPayment, p.ID, types.RoleSubject)}
	if p.ProcessID != nil {
		refs = append(refs, ref(types.EntityProcess, *p.ProcessID, types.RoleTarget))
	}
	if p.ServiceID != nil {
		refs = append(refs, ref(types.EntityService, *p.ServiceID, types.RoleTarget))
	}
	if p.ClientID != nil {
		refs = append(refs, ref(types.EntityClient, *p.ClientID, types.RoleRelated))
	}
	return withAdjustedClients(refs, adj)
}

// NewPaymentSaved reports a payment insert or amendment.
func NewPaymentSaved(res ledger.PaymentResult) DomainEvent {
	p := res.Payment
	eventType, verb := "payment_updated", "updated"
	if res.Created {
		eventType, verb = "payment_recorded", "recorded"
	}
	polarity := "neutral"
	if p.Status == ledger.Pago {
		polarity = "positive"
	}
	return newEvent(eventType, CategoryPayment, "minor", polarity,
		fmt.Sprintf("Payment %d of %s %s as %s", p.ID, money(p.ValuePaid), verb, p.Status),
		paymentRefs(p, res.Adjustment),
		PaymentPayload{Payment: p, Adjustment: res.Adjustment})
}

// NewPaymentDeleted reports a hard delete. Balances are not touched, so the
// event is weighted for follow-up reconciliation.
func NewPaymentDeleted(p ledger.Payment) DomainEvent {
	return newEvent("payment_deleted", CategoryPayment, "major", "negative",
		fmt.Sprintf("Payment %d of %s deleted", p.ID, money(p.ValuePaid)),
		paymentRefs(p, ledger.Adjustment{}),
		PaymentPayload{Payment: p})
}

// ── Office expense events ────────────────────────────────────────────────────

// ExpensePayload carries event-specific data for office expense events.
type ExpensePayload struct {
	Expense     ledger.OfficeExpense `json:"expense"`
	SuccessorID *int64               `json:"successor_id,omitempty"`
}

func NewExpenseCreated(e ledger.OfficeExpense) DomainEvent {
	return newEvent("expense_created", CategoryExpense, "info", "neutral",
		fmt.Sprintf("Expense %q of %s due %s", e.Description, money(e.Amount), e.DueDate),
		[]types.SourceRef{ref(types.EntityOfficeExpense, e.ID, types.RoleSubject)},
		ExpensePayload{Expense: e})
}

func NewExpenseUpdated(e ledger.OfficeExpense) DomainEvent {
	return newEvent("expense_updated", CategoryExpense, "info", "neutral",
		fmt.Sprintf("Expense %q updated (%s)", e.Description, e.Status),
		[]types.SourceRef{ref(types.EntityOfficeExpense, e.ID, types.RoleSubject)},
		ExpensePayload{Expense: e})
}

// NewExpenseRolledForward reports the successor spawned when a recurring
// expense is paid.
func NewExpenseRolledForward(paid, next ledger.OfficeExpense) DomainEvent {
	return newEvent("expense_rolled_forward", CategoryExpense, "minor", "neutral",
		fmt.Sprintf("Recurring expense %q paid, next due %s", next.Description, next.DueDate),
		[]types.SourceRef{
			ref(types.EntityOfficeExpense, paid.ID, types.RoleSubject),
			ref(types.EntityOfficeExpense, next.ID, types.RoleTarget),
		},
		ExpensePayload{Expense: paid, SuccessorID: &next.ID})
}

func NewExpenseDeleted(id int64) DomainEvent {
	return newEvent("expense_deleted", CategoryExpense, "minor", "neutral",
		fmt.Sprintf("Expense %d deleted", id),
		[]types.SourceRef{ref(types.EntityOfficeExpense, id, types.RoleSubject)},
		ExpensePayload{Expense: ledger.OfficeExpense{ID: id}})
}
