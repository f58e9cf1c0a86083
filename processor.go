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

package payments

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/fcgcloud/payments/config"
	"github.com/fcgcloud/payments/internal/apierror"
	"github.com/fcgcloud/payments/internal/notification"
	"github.com/fcgcloud/payments/model"
)

// ProcessPurchaseMessage handles one inbound queue message end to end:
// idempotency gate, payload parse, status transition, audit event, outbox
// enqueue. A nil return means the message is finished and must be deleted
// from the queue; an error means it should stay for redelivery.
//
// Malformed payloads return nil on purpose: redelivery cannot repair them,
// so they are logged and dropped instead of poisoning the queue.
func (p *Payments) ProcessPurchaseMessage(ctx context.Context, messageID, body string) error {
	ctx, span := otel.Tracer("payments.processor").Start(ctx, "processor.process_purchase")
	defer span.End()

	if strings.TrimSpace(body) == "" {
		logrus.WithField("message_id", messageID).Warn("dropping message with empty body")
		return nil
	}

	if messageID != "" {
		exists, err := p.datasource.EventExistsBySourceMessageID(ctx, messageID)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if exists {
			logrus.WithField("message_id", messageID).Info("message already processed, skipping")
			return nil
		}
	}

	msg, ok := model.ParsePurchaseMessage(body)
	if !ok {
		logrus.WithField("message_id", messageID).Warn("dropping malformed purchase message")
		return nil
	}

	now := time.Now()
	if err := p.datasource.UpdatePaymentStatus(ctx, msg.PurchaseID, model.StatusPaid, now); err != nil {
		span.RecordError(err)
		return err
	}

	ev := model.NewPaymentEvent(msg.PurchaseID, model.EventPaymentProcessed, map[string]interface{}{
		"purchase_id": msg.PurchaseID,
		"user_id":     msg.UserID,
		"amount":      msg.Amount.String(),
		"status":      model.StatusPaid,
	})
	if messageID != "" {
		ev.SourceMessageID = &messageID
	}

	if err := p.datasource.AppendEvent(ctx, ev); err != nil {
		// A concurrent delivery of the same message won the insert race.
		// The work is done; absorb the duplicate.
		if apierror.IsConflict(err) {
			logrus.WithField("message_id", messageID).Info("concurrent duplicate absorbed")
			return nil
		}
		span.RecordError(err)
		return err
	}

	p.enqueueProcessedEvent(ctx, msg, ev)

	logrus.WithFields(logrus.Fields{
		"purchase_id": msg.PurchaseID,
		"message_id":  messageID,
	}).Info("payment processed")

	return nil
}

// enqueueProcessedEvent records the PaymentProcessed integration event in
// the outbox. Failures are reported but never fail the processed message:
// the state transition and the audit event already committed.
func (p *Payments) enqueueProcessedEvent(ctx context.Context, msg model.PurchaseMessage, ev *model.PaymentEvent) {
	cfg, err := config.Fetch()
	if err != nil {
		notification.NotifyError(err)
		return
	}
	if cfg.Sqs.EventsQueueUrl == "" {
		logrus.Debug("events queue not configured, skipping outbox enqueue")
		return
	}

	envelope := model.NewIntegrationEvent(model.EventPaymentProcessed, p.source, msg.PurchaseID, map[string]interface{}{
		"purchaseId": msg.PurchaseID,
		"userId":     msg.UserID,
		"amount":     msg.Amount,
		"status":     model.StatusPaid,
	}, correlationIDFromContext(ctx))

	body, err := json.Marshal(envelope)
	if err != nil {
		notification.NotifyError(err)
		return
	}

	outboxMsg := &model.OutboxMessage{
		EventID:       envelope.EventID,
		EventType:     envelope.Type,
		Source:        envelope.Source,
		AggregateID:   envelope.AggregateID,
		CorrelationID: envelope.CorrelationID,
		CausationID:   &ev.EventID,
		Version:       envelope.Version,
		Destination:   cfg.Sqs.EventsQueueUrl,
		Body:          string(body),
	}

	if err := p.datasource.EnqueueOutbox(ctx, outboxMsg); err != nil {
		logrus.WithField("purchase_id", msg.PurchaseID).Error("failed to enqueue outbox message: ", err)
		notification.NotifyError(err)
	}
}

// correlationIDFromContext uses the active trace id as the correlation id
// so integration events can be tied back to the delivery that caused them.
func correlationIDFromContext(ctx context.Context) *string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return nil
	}
	tid := sc.TraceID().String()
	return &tid
}
