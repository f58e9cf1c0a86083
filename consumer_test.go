package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel"

	"github.com/fcgcloud/payments/config"
	"github.com/fcgcloud/payments/database/mocks"
	"github.com/fcgcloud/payments/model"
)

func TestStartConsumer_ProcessesAndDeletes(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	sqsClient := new(MockSQSClient)
	service := newTestPayments(ds)
	service.queue = &Queue{Client: sqsClient, tracer: otel.Tracer("test")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	purchaseID := uuid.New().String()
	messageID := uuid.New().String()
	body := `{"purchaseId": "` + purchaseID + `", "userId": "` + uuid.New().String() + `", "amount": 9.99}`

	sqsClient.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
		Messages: []*sqs.Message{
			{
				MessageId:     aws.String(messageID),
				Body:          aws.String(body),
				ReceiptHandle: aws.String("rh-1"),
			},
		},
	}, nil)

	ds.On("EventExistsBySourceMessageID", mock.Anything, messageID).Return(false, nil)
	ds.On("UpdatePaymentStatus", mock.Anything, purchaseID, model.StatusPaid, mock.Anything).Return(nil)
	ds.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	ds.On("EnqueueOutbox", mock.Anything, mock.Anything).Return(nil)

	// Deleting the processed message ends the test run.
	sqsClient.On("DeleteMessageWithContext", mock.Anything, mock.MatchedBy(func(in *sqs.DeleteMessageInput) bool {
		return *in.ReceiptHandle == "rh-1"
	})).Run(func(args mock.Arguments) {
		cancel()
	}).Return(&sqs.DeleteMessageOutput{}, nil)

	err := service.StartConsumer(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	ds.AssertExpectations(t)
	sqsClient.AssertExpectations(t)
}

func TestStartConsumer_ProcessingFailureLeavesMessage(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	sqsClient := new(MockSQSClient)
	service := newTestPayments(ds)
	service.queue = &Queue{Client: sqsClient, tracer: otel.Tracer("test")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	purchaseID := uuid.New().String()
	messageID := uuid.New().String()
	body := `{"purchaseId": "` + purchaseID + `", "userId": "` + uuid.New().String() + `", "amount": 1}`

	sqsClient.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
		Messages: []*sqs.Message{
			{
				MessageId:     aws.String(messageID),
				Body:          aws.String(body),
				ReceiptHandle: aws.String("rh-1"),
			},
		},
	}, nil)

	ds.On("EventExistsBySourceMessageID", mock.Anything, messageID).Return(false, nil)
	ds.On("UpdatePaymentStatus", mock.Anything, purchaseID, model.StatusPaid, mock.Anything).
		Run(func(args mock.Arguments) {
			cancel()
		}).Return(errors.New("db down"))

	err := service.StartConsumer(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	sqsClient.AssertNotCalled(t, "DeleteMessageWithContext", mock.Anything, mock.Anything)
}

func TestStartConsumer_ReceiveErrorBacksOff(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	sqsClient := new(MockSQSClient)
	service := newTestPayments(ds)
	service.queue = &Queue{Client: sqsClient, tracer: otel.Tracer("test")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqsClient.On("ReceiveMessageWithContext", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			cancel()
		}).Return(nil, errors.New("network error"))

	err := service.StartConsumer(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	ds.AssertNotCalled(t, "EventExistsBySourceMessageID", mock.Anything, mock.Anything)
}

func TestStartConsumer_NoQueueConfigured(t *testing.T) {
	config.MockConfig(&config.Configuration{ProjectName: "payments-svc"})
	ds := new(mocks.MockDataSource)
	service := newTestPayments(ds)

	err := service.StartConsumer(context.Background())
	assert.Error(t, err)
}
