package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending = "PENDING"
	StatusPaid    = "PAID"
)

// Payment is the projection of a purchase owned by the upstream purchase
// flow. This service only ever moves its status forward.
type Payment struct {
	ID        int64           `json:"-"`
	PaymentID string          `json:"payment_id"`
	UserID    string          `json:"user_id"`
	GameID    string          `json:"game_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// PaymentStatus is the read model returned by the status query endpoint.
type PaymentStatus struct {
	PurchaseID string          `json:"purchase_id"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
}
