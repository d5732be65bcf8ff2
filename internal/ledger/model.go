package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how a charge is settled. Only EmConta charges count
// toward a client's running balance.
type PaymentMethod string

const (
	AVista  PaymentMethod = "a_vista"
	Cartao  PaymentMethod = "cartao"
	Pix     PaymentMethod = "pix"
	EmConta PaymentMethod = "em_conta"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case AVista, Cartao, Pix, EmConta:
		return true
	}
	return false
}

// OnAccount reports whether the method books the charge to the client balance.
func (m PaymentMethod) OnAccount() bool { return m == EmConta }

// ChargeStatus is the lifecycle state of a process or service.
type ChargeStatus string

const (
	StatusAtivo     ChargeStatus = "Ativo"
	StatusArquivado ChargeStatus = "Arquivado"
	StatusConcluido ChargeStatus = "Concluido"
)

func (s ChargeStatus) Valid() bool {
	switch s {
	case StatusAtivo, StatusArquivado, StatusConcluido:
		return true
	}
	return false
}

// SettlementStatus is shared by payments and office expenses.
type SettlementStatus string

const (
	Pago     SettlementStatus = "Pago"
	Pendente SettlementStatus = "Pendente"
)

func (s SettlementStatus) Valid() bool { return s == Pago || s == Pendente }

// ChargeKind distinguishes the two billable entities.
type ChargeKind string

const (
	KindProcess ChargeKind = "process"
	KindService ChargeKind = "service"
)

func (k ChargeKind) table() string {
	if k == KindService {
		return "services"
	}
	return "processes"
}

// paymentColumn is the payments column that links back to this kind.
func (k ChargeKind) paymentColumn() string {
	if k == KindService {
		return "service_id"
	}
	return "process_id"
}

// ChargeRef points at one process or service.
type ChargeRef struct {
	Kind ChargeKind `json:"kind"`
	ID   int64      `json:"id"`
}

func ProcessRef(id int64) ChargeRef { return ChargeRef{Kind: KindProcess, ID: id} }
func ServiceRef(id int64) ChargeRef { return ChargeRef{Kind: KindService, ID: id} }

// ChargeState is the balance-relevant slice of a charge.
type ChargeState struct {
	ClientID      int64
	ValueCharged  decimal.Decimal
	PaymentMethod PaymentMethod
}

// Client is a billed party. Balance is maintained by the ledger only.
type Client struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Document        string           `json:"document"`
	Contact         *string          `json:"contact"`
	Address         *string          `json:"address"`
	IsRecurrent     bool             `json:"is_recurrent"`
	RecurrenceValue *decimal.Decimal `json:"recurrence_value"`
	RecurrenceDay   *int             `json:"recurrence_day"`
	Balance         decimal.Decimal  `json:"balance"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Process is a legal case billed to a client.
type Process struct {
	ID            int64           `json:"id"`
	ClientID      int64           `json:"client_id"`
	ProcessNumber string          `json:"process_number"`
	Tribunal      *string         `json:"tribunal"`
	Target        *string         `json:"target"`
	Description   *string         `json:"description"`
	Status        ChargeStatus    `json:"status"`
	ValueCharged  decimal.Decimal `json:"value_charged"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p Process) state() ChargeState {
	return ChargeState{ClientID: p.ClientID, ValueCharged: p.ValueCharged, PaymentMethod: p.PaymentMethod}
}

// Service is a non-litigation engagement, billed like a process.
type Service struct {
	ID             int64           `json:"id"`
	ClientID       int64           `json:"client_id"`
	Description    string          `json:"description"`
	ValueCharged   decimal.Decimal `json:"value_charged"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	Status         ChargeStatus    `json:"status"`
	EmContaDetails *string         `json:"em_conta_details"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (s Service) state() ChargeState {
	return ChargeState{ClientID: s.ClientID, ValueCharged: s.ValueCharged, PaymentMethod: s.PaymentMethod}
}

// Payment is a realized payment (Pago) or a scheduled installment (Pendente).
type Payment struct {
	ID          int64            `json:"id"`
	ProcessID   *int64           `json:"process_id"`
	ServiceID   *int64           `json:"service_id"`
	ClientID    *int64           `json:"client_id"`
	ValuePaid   decimal.Decimal  `json:"value_paid"`
	Status      SettlementStatus `json:"status"`
	PaymentDate *time.Time       `json:"payment_date"`
	DueDate     *Date            `json:"due_date"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// charge returns the process or service the payment belongs to, if any.
func (p Payment) charge() (ChargeRef, bool) {
	switch {
	case p.ProcessID != nil:
		return ProcessRef(*p.ProcessID), true
	case p.ServiceID != nil:
		return ServiceRef(*p.ServiceID), true
	}
	return ChargeRef{}, false
}

// realized is the amount this payment contributes to the paid total.
func (p Payment) realized() decimal.Decimal {
	if p.Status == Pago {
		return p.ValuePaid
	}
	return decimal.Zero
}

// OfficeExpense is an office bill, optionally recurring monthly.
type OfficeExpense struct {
	ID          int64            `json:"id"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	DueDate     Date             `json:"due_date"`
	Status      SettlementStatus `json:"status"`
	IsRecurrent bool             `json:"is_recurrent"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// BalanceChange is one atomic increment applied to a client balance.
type BalanceChange struct {
	ClientID int64           `json:"client_id"`
	Delta    decimal.Decimal `json:"delta"`
}

// Adjustment reports what the balance engine did.
type Adjustment struct {
	Changes         []BalanceChange `json:"changes"`
	PaymentsDeleted int64           `json:"payments_deleted"`
}

func (a *Adjustment) add(clientID int64, delta decimal.Decimal) {
	a.Changes = append(a.Changes, BalanceChange{ClientID: clientID, Delta: delta})
}

// Net returns the sum of all balance deltas.
func (a Adjustment) Net() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range a.Changes {
		sum = sum.Add(c.Delta)
	}
	return sum
}
