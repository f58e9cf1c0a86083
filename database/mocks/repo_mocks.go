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
package mocks

import (
	"context"
	"time"

	"github.com/fcgcloud/payments/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Payment methods

func (m *MockDataSource) GetPaymentByID(ctx context.Context, id string) (*model.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockDataSource) UpdatePaymentStatus(ctx context.Context, id string, status string, updatedAt time.Time) error {
	args := m.Called(ctx, id, status, updatedAt)
	return args.Error(0)
}

// Event ledger methods

func (m *MockDataSource) AppendEvent(ctx context.Context, ev *model.PaymentEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockDataSource) EventExistsBySourceMessageID(ctx context.Context, messageID string) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

// Outbox methods

func (m *MockDataSource) EnqueueOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockDataSource) DequeueDueOutbox(ctx context.Context, limit int, now time.Time, owner string) ([]*model.OutboxMessage, error) {
	args := m.Called(ctx, limit, now, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.OutboxMessage), args.Error(1)
}

func (m *MockDataSource) MarkOutboxPublished(ctx context.Context, msg *model.OutboxMessage, externalID string, publishedAt time.Time) error {
	args := m.Called(ctx, msg, externalID, publishedAt)
	return args.Error(0)
}

func (m *MockDataSource) MarkOutboxFailed(ctx context.Context, msg *model.OutboxMessage, publishErr string, nextAttemptAt time.Time) error {
	args := m.Called(ctx, msg, publishErr, nextAttemptAt)
	return args.Error(0)
}
