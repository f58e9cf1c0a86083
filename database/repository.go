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
	"time"

	"github.com/fcgcloud/payments/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	payment // Interface for payment projection operations
	event   // Interface for the append-only event ledger
	outbox  // Interface for the transactional outbox
}

// payment defines methods for the payment projection. Rows are created by
// the upstream purchase flow; this service only reads them and moves their
// status forward.
type payment interface {
	GetPaymentByID(ctx context.Context, id string) (*model.Payment, error)                         // Retrieves a payment by ID
	UpdatePaymentStatus(ctx context.Context, id string, status string, updatedAt time.Time) error  // Transitions a payment's status
}

// event defines methods for the audit ledger.
type event interface {
	AppendEvent(ctx context.Context, ev *model.PaymentEvent) error                    // Appends an event; never updates
	EventExistsBySourceMessageID(ctx context.Context, messageID string) (bool, error) // Idempotency gate lookup
}

// outbox defines methods for the transactional outbox.
type outbox interface {
	EnqueueOutbox(ctx context.Context, msg *model.OutboxMessage) error                                                 // Inserts a pending outbox row
	DequeueDueOutbox(ctx context.Context, limit int, now time.Time, owner string) ([]*model.OutboxMessage, error)      // Claims and returns due rows, oldest first
	MarkOutboxPublished(ctx context.Context, msg *model.OutboxMessage, externalID string, publishedAt time.Time) error // Terminal success; the row is never revisited
	MarkOutboxFailed(ctx context.Context, msg *model.OutboxMessage, publishErr string, nextAttemptAt time.Time) error  // Records a failed attempt and schedules the retry
}
