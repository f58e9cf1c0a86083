package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fcgcloud/payments/internal/apierror"
	"github.com/fcgcloud/payments/model"
	"github.com/lib/pq"
)

// AppendEvent inserts one row into the audit ledger. The partial unique
// index over source_message_id turns a concurrent duplicate append into a
// conflict error, which the processor treats as an already-processed
// message.
func (d Datasource) AppendEvent(ctx context.Context, ev *model.PaymentEvent) error {
	dataJSON, err := json.Marshal(ev.Data)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal event data", err)
	}

	if ev.EventID == "" {
		ev.EventID = model.GenerateUUIDWithSuffix("evt")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO payment_events (event_id, aggregate_id, type, sequence, data, source_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ev.EventID, ev.AggregateID, ev.Type, ev.Sequence, dataJSON, ev.SourceMessageID, ev.CreatedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, "An event for this source message already exists", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to append event", err)
	}

	return nil
}

// EventExistsBySourceMessageID is the idempotency gate. An empty id never
// matches anything.
func (d Datasource) EventExistsBySourceMessageID(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}

	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_events WHERE source_message_id = $1
		)
	`, messageID).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check for existing event", err)
	}

	return exists, nil
}
