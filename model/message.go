package model

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseMessage is the result of parsing an inbound queue payload,
// whichever of the two accepted shapes it arrived in.
type PurchaseMessage struct {
	PurchaseID string
	UserID     string
	Amount     decimal.Decimal
}

type purchasePayload struct {
	PurchaseID string          `json:"purchaseId"`
	UserID     string          `json:"userId"`
	Amount     decimal.Decimal `json:"amount"`
}

type inboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParsePurchaseMessage accepts the standard integration envelope
// {type, data:{purchaseId, userId, amount}} and, as a compatibility
// fallback, the legacy flat payload {purchaseId, userId, amount}. Field
// names match case-insensitively, so producers sending PurchaseId/UserId
// are accepted too. A payload that yields no valid purchase and user ids
// is reported as not ok rather than as an error: a structurally invalid
// message cannot be fixed by redelivery.
func ParsePurchaseMessage(body string) (PurchaseMessage, bool) {
	var env inboundEnvelope
	if err := json.Unmarshal([]byte(body), &env); err == nil && len(env.Data) > 0 {
		if msg, ok := parsePayload(env.Data); ok {
			return msg, true
		}
	}

	return parsePayload([]byte(body))
}

func parsePayload(raw []byte) (PurchaseMessage, bool) {
	var p purchasePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return PurchaseMessage{}, false
	}
	if _, err := uuid.Parse(p.PurchaseID); err != nil {
		return PurchaseMessage{}, false
	}
	if _, err := uuid.Parse(p.UserID); err != nil {
		return PurchaseMessage{}, false
	}
	return PurchaseMessage{PurchaseID: p.PurchaseID, UserID: p.UserID, Amount: p.Amount}, true
}
