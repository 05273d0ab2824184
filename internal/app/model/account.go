package model

import (
	"encoding/json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"time"
)

// Account is a wallet. Balance is kept in integer minor units and is a
// denormalized view over the committed transactions referencing the account;
// the two are only ever written together. System accounts (escrow) have no
// owner. Accounts are never deleted, only soft-disabled.
type Account struct {
	ID         uuid.UUID
	UserID     uuid.NullUUID
	Balance    int64
	Currency   string
	CreatedAt  time.Time
	DisabledAt *time.Time
}

// Disabled reports whether the account has been soft-disabled.
func (a *Account) Disabled() bool {
	return a.DisabledAt != nil
}

// MarshalJSON implements the json.Marshaler interface.
func (a Account) MarshalJSON() ([]byte, error) {
	o := struct {
		ID       uuid.UUID `json:"id"`
		Balance  string    `json:"balance"`
		Currency string    `json:"currency"`
	}{
		ID:       a.ID,
		Balance:  decimal.New(a.Balance, -2).StringFixed(2),
		Currency: a.Currency,
	}

	return json.Marshal(o)
}
