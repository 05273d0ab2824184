package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"time"
)

const (
	ListingCategoryPlastic = "plastic"
	ListingCategoryMetal   = "metal"
	ListingCategoryPaper   = "paper"
	ListingCategoryEWaste  = "e-waste"
	ListingCategoryGlass   = "glass"
	ListingCategoryOther   = "other"
)

const (
	ListingUnitKg   = "kg"
	ListingUnitTons = "tons"
)

type ListingStatus string

const (
	ListingStatusAvailable ListingStatus = "available"
	ListingStatusInTransit ListingStatus = "in-transit"
	ListingStatusCompleted ListingStatus = "completed"
)

type Listing struct {
	ID           uuid.UUID       `json:"id"`
	VendorID     uuid.UUID       `json:"vendor_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Country      string          `json:"country"`
	City         string          `json:"city"`
	PostalCode   string          `json:"postal_code"`
	Location     string          `json:"location"`
	Status       ListingStatus   `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TotalPrice is price_per_unit * quantity rounded to cents, in minor units.
func (l *Listing) TotalPrice(quantity decimal.Decimal) int64 {
	return l.PricePerUnit.Mul(quantity).Round(2).Shift(2).IntPart()
}
