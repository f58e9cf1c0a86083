package model

import "time"

const (
	EventPaymentProcessed      = "PaymentProcessed"
	EventPaymentStatusQueried  = "PaymentStatusQueried"
	EventPaymentStatusNotFound = "PaymentStatusNotFound"
)

// PaymentEvent is one row of the append-only audit ledger. Rows are never
// updated or deleted. SourceMessageID carries the inbound queue message id
// that caused the event; at most one event may exist per non-empty id,
// which is what makes redelivered messages safe to absorb.
type PaymentEvent struct {
	ID              int64                  `json:"-"`
	EventID         string                 `json:"event_id"`
	AggregateID     string                 `json:"aggregate_id"`
	Type            string                 `json:"type"`
	Sequence        int                    `json:"sequence"`
	Data            map[string]interface{} `json:"data"`
	SourceMessageID *string                `json:"source_message_id,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// NewPaymentEvent builds a ledger event for an aggregate. The sequence is
// recorded as 1 on every append; nothing reads it back and the field is
// kept as a schema artifact.
func NewPaymentEvent(aggregateID, eventType string, data map[string]interface{}) *PaymentEvent {
	return &PaymentEvent{
		EventID:     GenerateUUIDWithSuffix("evt"),
		AggregateID: aggregateID,
		Type:        eventType,
		Sequence:    1,
		Data:        data,
		CreatedAt:   time.Now(),
	}
}
