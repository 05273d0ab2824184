package payments

import "github.com/shopspring/decimal"

const (
	StatusPending   = "PENDING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

type CreatePaymentRequest struct {
	Ref    string          `json:"ref"`
	Amount decimal.Decimal `json:"amount"`
}

type CreatePaymentResponse struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
}

type GetPaymentResponse struct {
	Ref    string          `json:"ref"`
	Amount decimal.Decimal `json:"amount"`
	Status string          `json:"status"`
}
