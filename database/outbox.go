/*
Copyright 2024 FCG Cloud Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/fcgcloud/payments/internal/apierror"
	"github.com/fcgcloud/payments/model"
	"github.com/lib/pq"
)

// claimDuration is how long a dequeued row stays invisible to other
// publisher instances before it becomes claimable again.
const claimDuration = 60 * time.Second

func (d Datasource) EnqueueOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Version == 0 {
		msg.Version = 1
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO payment_outbox (event_id, event_type, source, aggregate_id, correlation_id, causation_id, version, destination, body, created_at, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0)
	`, msg.EventID, msg.EventType, msg.Source, msg.AggregateID, msg.CorrelationID, msg.CausationID, msg.Version, msg.Destination, msg.Body, msg.CreatedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, "Outbox message with this event id already exists", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to enqueue outbox message", err)
	}

	return nil
}

// DequeueDueOutbox claims up to limit unpublished rows that are due at
// now, oldest first, and returns them. The claim is taken in the same
// statement (skip-locked subselect plus a lease with expiry), so
// concurrent publisher instances never pick up the same row while a claim
// is live; a crashed publisher's claim simply expires.
func (d Datasource) DequeueDueOutbox(ctx context.Context, limit int, now time.Time, owner string) ([]*model.OutboxMessage, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		UPDATE payment_outbox
		SET claimed_by = $1, claim_expires_at = $2
		WHERE event_id IN (
			SELECT event_id FROM payment_outbox
			WHERE published_at IS NULL
			AND (next_attempt_at IS NULL OR next_attempt_at <= $3)
			AND (claim_expires_at IS NULL OR claim_expires_at <= $3)
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING event_id, event_type, source, aggregate_id, correlation_id, causation_id, version, destination, body, created_at, attempts, next_attempt_at, last_error
	`, owner, now.Add(claimDuration), now, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to dequeue outbox messages", err)
	}
	defer rows.Close()

	messages := []*model.OutboxMessage{}
	for rows.Next() {
		msg := model.OutboxMessage{}
		var nextAttemptAt sql.NullTime
		var correlationID, causationID, lastError sql.NullString
		err = rows.Scan(&msg.EventID, &msg.EventType, &msg.Source, &msg.AggregateID, &correlationID, &causationID, &msg.Version, &msg.Destination, &msg.Body, &msg.CreatedAt, &msg.Attempts, &nextAttemptAt, &lastError)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan outbox message", err)
		}
		if correlationID.Valid {
			msg.CorrelationID = &correlationID.String
		}
		if causationID.Valid {
			msg.CausationID = &causationID.String
		}
		if nextAttemptAt.Valid {
			msg.NextAttemptAt = &nextAttemptAt.Time
		}
		if lastError.Valid {
			msg.LastError = &lastError.String
		}
		messages = append(messages, &msg)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over outbox messages", err)
	}

	// Batch order must stay oldest-first; the UPDATE does not promise
	// RETURNING order.
	sortOutboxByCreatedAt(messages)

	return messages, nil
}

// MarkOutboxPublished records a successful send. The published_at guard
// makes the operation terminal: a row that was already published is never
// touched again.
func (d Datasource) MarkOutboxPublished(ctx context.Context, msg *model.OutboxMessage, externalID string, publishedAt time.Time) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE payment_outbox
		SET published_at = $2, last_queue_message_id = $3, next_attempt_at = NULL, last_error = NULL, claimed_by = NULL, claim_expires_at = NULL
		WHERE event_id = $1 AND published_at IS NULL
	`, msg.EventID, publishedAt, externalID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark outbox message published", err)
	}
	return nil
}

// MarkOutboxFailed counts the attempt, records the error text and
// schedules the next try. The claim is released so any publisher instance
// can pick the row up once it is due again.
func (d Datasource) MarkOutboxFailed(ctx context.Context, msg *model.OutboxMessage, publishErr string, nextAttemptAt time.Time) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE payment_outbox
		SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3, claimed_by = NULL, claim_expires_at = NULL
		WHERE event_id = $1 AND published_at IS NULL
	`, msg.EventID, publishErr, nextAttemptAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark outbox message failed", err)
	}
	return nil
}

func sortOutboxByCreatedAt(messages []*model.OutboxMessage) {
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}
