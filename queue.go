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

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/fcgcloud/payments/config"
)

// Queue wraps the SQS client used for both the inbound purchases queue and
// the outbound events queue. The client is injected at construction so
// tests can swap in a sqsiface mock.
type Queue struct {
	Client sqsiface.SQSAPI
	tracer trace.Tracer
}

// NewQueue builds the SQS client from configuration. ServiceUrl overrides
// the endpoint (LocalStack, ElasticMQ); static credentials are only used
// when an access key is configured, otherwise the SDK's default chain
// applies.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	awsConfig := aws.NewConfig()
	if conf.Sqs.Region != "" {
		awsConfig = awsConfig.WithRegion(conf.Sqs.Region)
	}
	if conf.Sqs.AccessKey != "" {
		awsConfig = awsConfig.WithCredentials(credentials.NewStaticCredentials(conf.Sqs.AccessKey, conf.Sqs.SecretKey, ""))
	}
	if conf.Sqs.ServiceUrl != "" {
		awsConfig = awsConfig.WithEndpoint(conf.Sqs.ServiceUrl)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, err
	}

	return &Queue{
		Client: sqs.New(sess),
		tracer: otel.Tracer("payments.queue"),
	}, nil
}

// ReceiveMessages long-polls the given queue for up to maxMessages
// messages. Received messages stay invisible to other consumers for
// visibilityTimeout seconds.
func (q *Queue) ReceiveMessages(ctx context.Context, queueURL string, maxMessages, waitTimeSeconds, visibilityTimeout int64) ([]*sqs.Message, error) {
	ctx, span := q.tracer.Start(ctx, "queue.receive")
	defer span.End()

	out, err := q.Client.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: aws.Int64(maxMessages),
		WaitTimeSeconds:     aws.Int64(waitTimeSeconds),
		VisibilityTimeout:   aws.Int64(visibilityTimeout),
		AttributeNames:      []*string{aws.String(sqs.QueueAttributeNameAll)},
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out.Messages, nil
}

// DeleteMessage acknowledges a processed message. Once deleted the queue
// will not redeliver it.
func (q *Queue) DeleteMessage(ctx context.Context, queueURL, receiptHandle string) error {
	ctx, span := q.tracer.Start(ctx, "queue.delete")
	defer span.End()

	_, err := q.Client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// SendMessage publishes body to the given queue and returns the queue's
// message id.
func (q *Queue) SendMessage(ctx context.Context, queueURL, body string) (string, error) {
	ctx, span := q.tracer.Start(ctx, "queue.send")
	defer span.End()

	out, err := q.Client.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if out.MessageId == nil {
		return "", errors.New("queue did not return a message id")
	}
	return *out.MessageId, nil
}
