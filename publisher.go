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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fcgcloud/payments/config"
	"github.com/fcgcloud/payments/internal/notification"
)

const maxPublishBackoff = 5 * time.Minute

// nextAttemptDelay returns the retry delay after the given number of
// attempts: 2^attempts seconds, exponent clamped to [0, 8], capped at
// five minutes.
func nextAttemptDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 8 {
		attempts = 8
	}
	delay := time.Duration(1<<uint(attempts)) * time.Second
	if delay > maxPublishBackoff {
		delay = maxPublishBackoff
	}
	return delay
}

// StartPublisher drains the outbox until ctx is cancelled. Each tick it
// claims a batch of due messages and sends them to their destination
// queue, recording success or scheduling a retry per row.
func (p *Payments) StartPublisher(ctx context.Context) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	logrus.WithField("publisher_id", p.publisherID).Info("outbox publisher started")

	ticker := time.NewTicker(time.Duration(cfg.Worker.PollIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("outbox publisher stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.PublishDueOutbox(ctx, time.Now()); err != nil {
				logrus.Error("outbox publish pass failed: ", err)
				notification.NotifyError(err)
			}
		}
	}
}

// PublishDueOutbox runs one publish pass: claim due messages, send each
// one, mark it published or schedule its retry. A send failure only
// affects its own row; the rest of the batch continues.
func (p *Payments) PublishDueOutbox(ctx context.Context, now time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	messages, err := p.datasource.DequeueDueOutbox(ctx, cfg.Worker.OutboxBatch, now, p.publisherID)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		if p.queue == nil {
			if err := p.datasource.MarkOutboxFailed(ctx, msg, "queue client not configured", now.Add(time.Minute)); err != nil {
				logrus.Error("failed to park outbox message: ", err)
			}
			continue
		}
		if msg.Destination == "" {
			// Row enqueued before the events queue was configured.
			// Park it for a minute rather than dropping it.
			if err := p.datasource.MarkOutboxFailed(ctx, msg, "destination queue not configured", now.Add(time.Minute)); err != nil {
				logrus.Error("failed to park outbox message: ", err)
			}
			continue
		}

		queueMessageID, sendErr := p.queue.SendMessage(ctx, msg.Destination, msg.Body)
		if sendErr != nil {
			retryAt := now.Add(nextAttemptDelay(msg.Attempts + 1))
			logrus.WithFields(logrus.Fields{
				"event_id": msg.EventID,
				"attempts": msg.Attempts + 1,
				"retry_at": retryAt,
			}).Error("failed to publish outbox message: ", sendErr)
			if err := p.datasource.MarkOutboxFailed(ctx, msg, sendErr.Error(), retryAt); err != nil {
				logrus.Error("failed to record outbox failure: ", err)
			}
			continue
		}

		if err := p.datasource.MarkOutboxPublished(ctx, msg, queueMessageID, time.Now()); err != nil {
			// The message went out but the row still looks unpublished;
			// the next pass resends it. Consumers must dedupe on event id.
			logrus.WithField("event_id", msg.EventID).Error("failed to mark outbox message published: ", err)
			continue
		}

		logrus.WithFields(logrus.Fields{
			"event_id":         msg.EventID,
			"queue_message_id": queueMessageID,
		}).Info("outbox message published")
	}

	return nil
}
