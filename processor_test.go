package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel"

	"github.com/fcgcloud/payments/config"
	"github.com/fcgcloud/payments/database/mocks"
	"github.com/fcgcloud/payments/internal/apierror"
	"github.com/fcgcloud/payments/model"
)

func newTestPayments(ds *mocks.MockDataSource) *Payments {
	return &Payments{
		datasource:  ds,
		queue:       &Queue{Client: &MockSQSClient{}, tracer: otel.Tracer("test")},
		source:      "payments-svc",
		publisherID: "test-publisher",
	}
}

func mockTestConfig() {
	config.MockConfig(&config.Configuration{
		ProjectName: "payments-svc",
		Sqs: config.SqsConfig{
			PaymentsQueueUrl:  "https://sqs.us-east-1.amazonaws.com/1234/payments",
			EventsQueueUrl:    "https://sqs.us-east-1.amazonaws.com/1234/payment-events",
			VisibilityTimeout: 30,
			WaitTimeSeconds:   1,
		},
		Worker: config.WorkerConfig{
			PollIntervalMs: 10,
			MaxMessages:    10,
			OutboxBatch:    10,
		},
	})
}

func TestProcessPurchaseMessage_LegacyPayload(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	service := newTestPayments(ds)

	purchaseID := gofakeit.UUID()
	userID := gofakeit.UUID()
	messageID := gofakeit.UUID()
	body := `{"purchaseId": "` + purchaseID + `", "userId": "` + userID + `", "amount": 59.90}`

	ds.On("EventExistsBySourceMessageID", mock.Anything, messageID).Return(false, nil)
	ds.On("UpdatePaymentStatus", mock.Anything, purchaseID, model.StatusPaid, mock.Anything).Return(nil)
	ds.On("AppendEvent", mock.Anything, mock.MatchedBy(func(ev *model.PaymentEvent) bool {
		return ev.AggregateID == purchaseID &&
			ev.Type == model.EventPaymentProcessed &&
			ev.Sequence == 1 &&
			ev.SourceMessageID != nil && *ev.SourceMessageID == messageID
	})).Return(nil)
	ds.On("EnqueueOutbox", mock.Anything, mock.MatchedBy(func(msg *model.OutboxMessage) bool {
		return msg.AggregateID == purchaseID &&
			msg.EventType == model.EventPaymentProcessed &&
			msg.Destination == "https://sqs.us-east-1.amazonaws.com/1234/payment-events"
	})).Return(nil)

	err := service.ProcessPurchaseMessage(context.Background(), messageID, body)
	assert.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestProcessPurchaseMessage_EnvelopePayload(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	service := newTestPayments(ds)

	purchaseID := uuid.New().String()
	userID := uuid.New().String()
	messageID := uuid.New().String()
	body := `{"type": "PurchaseCreated", "data": {"purchaseId": "` + purchaseID + `", "userId": "` + userID + `", "amount": 10}}`

	ds.On("EventExistsBySourceMessageID", mock.Anything, messageID).Return(false, nil)
	ds.On("UpdatePaymentStatus", mock.Anything, purchaseID, model.StatusPaid, mock.Anything).Return(nil)
	ds.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	ds.On("EnqueueOutbox", mock.Anything, mock.Anything).Return(nil)

	err := service.ProcessPurchaseMessage(context.Background(), messageID, body)
	assert.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestProcessPurchaseMessage_OutboxBodyIsIntegrationEvent(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	service := newTestPayments(ds)

	purchaseID := uuid.New().String()
	userID := uuid.New().String()
	messageID := uuid.New().String()
	body := `{"purchaseId": "` + purchaseID + `", "userId": "` + userID + `", "amount": 25.50}`

	var captured *model.OutboxMessage
	ds.On("EventExistsBySourceMessageID", mock.Anything, messageID).Return(false, nil)
	ds.On("UpdatePaymentStatus", mock.Anything, purchaseID, model.StatusPaid, mock.Anything).Return(nil)
	ds.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	ds.On("EnqueueOutbox", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(*model.OutboxMessage)
	}).Return(nil)

	err := service.ProcessPurchaseMessage(context.Background(), messageID, body)
	assert.NoError(t, err)
	assert.NotNil(t, captured)

	var envelope model.IntegrationEvent
	assert.NoError(t, json.Unmarshal([]byte(captured.Body), &envelope))
	assert.Equal(t, model.EventPaymentProcessed, envelope.Type)
	assert.Equal(t, "payments-svc", envelope.Source)
	assert.Equal(t, purchaseID, envelope.AggregateID)
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, captured.EventID, envelope.EventID)
	assert.NotNil(t, captured.CausationID)
}

func TestProcessPurchaseMessage_AlreadyProcessed(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	service := newTestPayments(ds)

	messageID := uuid.New().String()
	body := `{"purchaseId": "` + uuid.New().String() + `", "userId": "` + uuid.New().String() + `", "amount": 5}`

	ds.On("EventExistsBySourceMessageID", mock.Anything, messageID).Return(true, nil)

	err := service.ProcessPurchaseMessage(context.Background(), messageID, body)
	assert.NoError(t, err)
	ds.AssertNotCalled(t, "UpdatePaymentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ds.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything)
}

func TestProcessPurchaseMessage_EmptyBody(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	service := newTestPayments(ds)

	err := service.ProcessPurchaseMessage(context.Background(), uuid.New().String(), "   ")
	assert.NoError(t, err)
	ds.AssertNotCalled(t, "EventExistsBySourceMessageID", mock.Anything, mock.Anything)
}

func TestProcessPurchaseMessage_MalformedBody(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	service := newTestPayments(ds)

	messageID := uuid.New().String()
	ds.On("EventExistsBySourceMessageID", mock.Anything, messageID).Return(false, nil)

	err := service.ProcessPurchaseMessage(context.Background(), messageID, "not json at all")
	assert.NoError(t, err)
	ds.AssertNotCalled(t, "UpdatePaymentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessPurchaseMessage_InvalidIDs(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	service := newTestPayments(ds)

	messageID := uuid.New().String()
	ds.On("EventExistsBySourceMessageID", mock.Anything, messageID).Return(false, nil)

	body := `{"purchaseId": "not-a-uuid", "userId": "also-not", "amount": 1}`
	err := service.ProcessPurchaseMessage(context.Background(), messageID, body)
	assert.NoError(t, err)
	ds.AssertNotCalled(t, "UpdatePaymentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessPurchaseMessage_ConcurrentDuplicateAbsorbed(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	service := newTestPayments(ds)

	purchaseID := uuid.New().String()
	messageID := uuid.New().String()
	body := `{"purchaseId": "` + purchaseID + `", "userId": "` + uuid.New().String() + `", "amount": 1}`

	ds.On("EventExistsBySourceMessageID", mock.Anything, messageID).Return(false, nil)
	ds.On("UpdatePaymentStatus", mock.Anything, purchaseID, model.StatusPaid, mock.Anything).Return(nil)
	ds.On("AppendEvent", mock.Anything, mock.Anything).Return(apierror.NewAPIError(apierror.ErrConflict, "duplicate", nil))

	err := service.ProcessPurchaseMessage(context.Background(), messageID, body)
	assert.NoError(t, err)
	ds.AssertNotCalled(t, "EnqueueOutbox", mock.Anything, mock.Anything)
}

func TestProcessPurchaseMessage_UpdateFailureKeepsMessage(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	service := newTestPayments(ds)

	purchaseID := uuid.New().String()
	messageID := uuid.New().String()
	body := `{"purchaseId": "` + purchaseID + `", "userId": "` + uuid.New().String() + `", "amount": 1}`

	ds.On("EventExistsBySourceMessageID", mock.Anything, messageID).Return(false, nil)
	ds.On("UpdatePaymentStatus", mock.Anything, purchaseID, model.StatusPaid, mock.Anything).Return(errors.New("db down"))

	err := service.ProcessPurchaseMessage(context.Background(), messageID, body)
	assert.Error(t, err)
	ds.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything)
}

func TestProcessPurchaseMessage_OutboxFailureDoesNotFailMessage(t *testing.T) {
	mockTestConfig()
	ds := new(mocks.MockDataSource)
	service := newTestPayments(ds)

	purchaseID := uuid.New().String()
	messageID := uuid.New().String()
	body := `{"purchaseId": "` + purchaseID + `", "userId": "` + uuid.New().String() + `", "amount": 1}`

	ds.On("EventExistsBySourceMessageID", mock.Anything, messageID).Return(false, nil)
	ds.On("UpdatePaymentStatus", mock.Anything, purchaseID, model.StatusPaid, mock.Anything).Return(nil)
	ds.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	ds.On("EnqueueOutbox", mock.Anything, mock.Anything).Return(errors.New("outbox insert failed"))

	err := service.ProcessPurchaseMessage(context.Background(), messageID, body)
	assert.NoError(t, err)
}

func TestProcessPurchaseMessage_NoEventsQueueSkipsOutbox(t *testing.T) {
	config.MockConfig(&config.Configuration{
		ProjectName: "payments-svc",
		Sqs: config.SqsConfig{
			PaymentsQueueUrl: "https://sqs.us-east-1.amazonaws.com/1234/payments",
		},
	})
	ds := new(mocks.MockDataSource)
	service := newTestPayments(ds)

	purchaseID := uuid.New().String()
	messageID := uuid.New().String()
	body := `{"purchaseId": "` + purchaseID + `", "userId": "` + uuid.New().String() + `", "amount": 1}`

	ds.On("EventExistsBySourceMessageID", mock.Anything, messageID).Return(false, nil)
	ds.On("UpdatePaymentStatus", mock.Anything, purchaseID, model.StatusPaid, mock.Anything).Return(nil)
	ds.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)

	err := service.ProcessPurchaseMessage(context.Background(), messageID, body)
	assert.NoError(t, err)
	ds.AssertNotCalled(t, "EnqueueOutbox", mock.Anything, mock.Anything)
}
