package model

import (
	"encoding/json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"time"
)

type TransactionKind string

const (
	TransactionKindCredit TransactionKind = "credit"
	TransactionKindDebit  TransactionKind = "debit"
)

type TransactionStatus string

const (
	// TransactionStatusPending recorded but not applied to the balance yet
	TransactionStatusPending TransactionStatus = "pending"
	// TransactionStatusCommitted applied to the balance, immutable
	TransactionStatusCommitted TransactionStatus = "committed"
	// TransactionStatusReversed compensated by a linked entry after commit,
	// or voided before ever being applied (CommittedAt stays unset then)
	TransactionStatusReversed TransactionStatus = "reversed"
)

// Transaction reasons. Settlement pairs reuse the marketplace vocabulary:
// the buyer leg is a purchase, the vendor leg a sale.
const (
	ReasonDeposit      = "deposit"
	ReasonWithdrawal   = "withdrawal"
	ReasonPurchase     = "purchase"
	ReasonSale         = "sale"
	ReasonEscrowHold   = "escrow"
	ReasonEscrowRefund = "refund"
)

// Transaction is one ledger entry. A transfer is a linked pair of entries
// (debit + credit) sharing PairID, each naming the other side in
// CounterpartyID. Entries are immutable once committed except for the
// ReversedBy link set when a compensating entry is appended.
type Transaction struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	Kind           TransactionKind
	Status         TransactionStatus
	Amount         int64
	Reason         string
	IdempotencyKey string
	PairID         uuid.NullUUID
	CounterpartyID uuid.NullUUID
	OrderID        uuid.NullUUID
	ReversalOf     uuid.NullUUID
	ReversedBy     uuid.NullUUID
	ProviderRef    string
	CreatedAt      time.Time
	CommittedAt    *time.Time
}

// Effect is the signed contribution of the entry to its account balance.
// Entries that were never applied (pending, or voided before commit)
// contribute nothing; a reversed entry keeps its effect, which the linked
// compensating entry cancels.
func (t *Transaction) Effect() int64 {
	if t.CommittedAt == nil {
		return 0
	}
	if t.Kind == TransactionKindDebit {
		return -t.Amount
	}
	return t.Amount
}

// MarshalJSON implements the json.Marshaler interface.
func (t Transaction) MarshalJSON() ([]byte, error) {
	o := struct {
		ID        uuid.UUID `json:"id"`
		Kind      string    `json:"kind"`
		Status    string    `json:"status"`
		Amount    string    `json:"amount"`
		Reason    string    `json:"reason"`
		OrderID   string    `json:"order_id,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}{
		ID:        t.ID,
		Kind:      string(t.Kind),
		Status:    string(t.Status),
		Amount:    decimal.New(t.Amount, -2).StringFixed(2),
		Reason:    t.Reason,
		CreatedAt: t.CreatedAt,
	}
	if t.OrderID.Valid {
		o.OrderID = t.OrderID.UUID.String()
	}

	return json.Marshal(o)
}
