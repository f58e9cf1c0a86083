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
	"errors"
	"time"

	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/sirupsen/logrus"

	"github.com/fcgcloud/payments/config"
	"github.com/fcgcloud/payments/internal/notification"
)

// receiveErrorBackoff is how long the consumer sleeps after a failed
// receive before polling again.
const receiveErrorBackoff = 5 * time.Second

// StartConsumer long-polls the purchases queue until ctx is cancelled.
// Each message is processed independently: one bad message never stalls
// the rest of the batch. Messages are deleted only after processing
// succeeds, so a crash mid-batch leads to redelivery, which the
// idempotency gate absorbs.
func (p *Payments) StartConsumer(ctx context.Context) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	if cfg.Sqs.PaymentsQueueUrl == "" {
		return errors.New("payments queue url is not configured")
	}

	logrus.WithField("queue", cfg.Sqs.PaymentsQueueUrl).Info("consumer started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("consumer stopped")
			return ctx.Err()
		default:
		}

		messages, err := p.queue.ReceiveMessages(ctx, cfg.Sqs.PaymentsQueueUrl, int64(cfg.Worker.MaxMessages), cfg.Sqs.WaitTimeSeconds, cfg.Sqs.VisibilityTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logrus.Error("failed to receive messages: ", err)
			notification.NotifyError(err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(receiveErrorBackoff):
			}
			continue
		}

		if len(messages) == 0 {
			// Long polling already waited; pause briefly so an empty
			// queue does not turn into a hot loop when waits are short.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(cfg.Worker.PollIntervalMs) * time.Millisecond):
			}
			continue
		}

		for _, message := range messages {
			p.handleMessage(ctx, cfg.Sqs.PaymentsQueueUrl, message)
		}
	}
}

func (p *Payments) handleMessage(ctx context.Context, queueURL string, message *sqs.Message) {
	var messageID, body, receiptHandle string
	if message.MessageId != nil {
		messageID = *message.MessageId
	}
	if message.Body != nil {
		body = *message.Body
	}
	if message.ReceiptHandle != nil {
		receiptHandle = *message.ReceiptHandle
	}

	if err := p.ProcessPurchaseMessage(ctx, messageID, body); err != nil {
		// Leave the message on the queue; it comes back after the
		// visibility timeout.
		logrus.WithField("message_id", messageID).Error("failed to process message: ", err)
		notification.NotifyError(err)
		return
	}

	if err := p.queue.DeleteMessage(ctx, queueURL, receiptHandle); err != nil {
		// The redelivered copy will hit the idempotency gate.
		logrus.WithField("message_id", messageID).Error("failed to delete processed message: ", err)
	}
}
