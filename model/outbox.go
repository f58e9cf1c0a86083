package model

import (
	"time"

	"github.com/google/uuid"
)

// OutboxMessage is a durable record of an integration event that still has
// to be delivered to its destination queue. Created by the processor at
// commit time, mutated only by the publisher. PublishedAt is set at most
// once; a published row is terminal and is never picked up again.
type OutboxMessage struct {
	ID                 int64      `json:"-"`
	EventID            string     `json:"event_id"`
	EventType          string     `json:"event_type"`
	Source             string     `json:"source"`
	AggregateID        string     `json:"aggregate_id"`
	CorrelationID      *string    `json:"correlation_id,omitempty"`
	CausationID        *string    `json:"causation_id,omitempty"`
	Version            int        `json:"version"`
	Destination        string     `json:"destination"`
	Body               string     `json:"body"`
	CreatedAt          time.Time  `json:"created_at"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	Attempts           int        `json:"attempts"`
	NextAttemptAt      *time.Time `json:"next_attempt_at,omitempty"`
	LastError          *string    `json:"last_error,omitempty"`
	LastQueueMessageID *string    `json:"last_queue_message_id,omitempty"`
	ClaimedBy          *string    `json:"claimed_by,omitempty"`
	ClaimExpiresAt     *time.Time `json:"claim_expires_at,omitempty"`
}

// IntegrationEvent is the envelope shared by every event this service
// exchanges with its peers over the queue.
type IntegrationEvent struct {
	EventID       string      `json:"eventId"`
	Type          string      `json:"type"`
	OccurredAt    time.Time   `json:"occurredAt"`
	Source        string      `json:"source"`
	AggregateID   string      `json:"aggregateId"`
	CorrelationID *string     `json:"correlationId,omitempty"`
	CausationID   *string     `json:"causationId,omitempty"`
	Version       int         `json:"version"`
	Data          interface{} `json:"data"`
}

// NewIntegrationEvent builds a version-1 envelope with a fresh event id.
func NewIntegrationEvent(eventType, source, aggregateID string, data interface{}, correlationID *string) IntegrationEvent {
	return IntegrationEvent{
		EventID:       uuid.New().String(),
		Type:          eventType,
		OccurredAt:    time.Now().UTC(),
		Source:        source,
		AggregateID:   aggregateID,
		CorrelationID: correlationID,
		Version:       1,
		Data:          data,
	}
}
