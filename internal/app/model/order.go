package model

import (
	"encoding/json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"time"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusDisputed  OrderStatus = "disputed"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusDisputed:
		return true
	}
	return false
}

// Order records a purchase intent against a listing. Amount is the total
// price in minor units, fixed at creation. The current status is
// denormalized here; the full transition history lives in order events.
type Order struct {
	ID           uuid.UUID
	BuyerID      uuid.UUID
	VendorID     uuid.UUID
	ListingID    uuid.NullUUID
	ListingTitle string
	Quantity     decimal.Decimal
	Unit         string
	Amount       int64
	Status       OrderStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MarshalJSON implements the json.Marshaler interface.
func (m Order) MarshalJSON() ([]byte, error) {
	o := struct {
		ID           uuid.UUID       `json:"id"`
		BuyerID      uuid.UUID       `json:"buyer_id"`
		VendorID     uuid.UUID       `json:"vendor_id"`
		ListingID    string          `json:"listing_id,omitempty"`
		ListingTitle string          `json:"listing_title"`
		Quantity     decimal.Decimal `json:"quantity"`
		Unit         string          `json:"unit"`
		TotalPrice   string          `json:"total_price"`
		Status       OrderStatus     `json:"status"`
		CreatedAt    time.Time       `json:"created_at"`
		UpdatedAt    time.Time       `json:"updated_at"`
	}{
		ID:           m.ID,
		BuyerID:      m.BuyerID,
		VendorID:     m.VendorID,
		ListingTitle: m.ListingTitle,
		Quantity:     m.Quantity,
		Unit:         m.Unit,
		TotalPrice:   decimal.New(m.Amount, -2).StringFixed(2),
		Status:       m.Status,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.ListingID.Valid {
		o.ListingID = m.ListingID.UUID.String()
	}

	return json.Marshal(o)
}

// OrderEvent is one recorded status transition. Events are append-only:
// the order row is the cursor, events are the history.
type OrderEvent struct {
	ID        uuid.UUID   `json:"-"`
	OrderID   uuid.UUID   `json:"-"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ActorID   uuid.UUID   `json:"actor_id"`
	CreatedAt time.Time   `json:"created_at"`
}
