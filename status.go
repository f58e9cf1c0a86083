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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/fcgcloud/payments/internal/apierror"
	"github.com/fcgcloud/payments/model"
)

const statusCacheTTL = 30 * time.Second

// GetPaymentStatus returns the read model for one payment. Every query,
// found or not, leaves an audit event in the ledger; cached hits do not,
// mirroring the fact that the datasource was never consulted.
func (p *Payments) GetPaymentStatus(ctx context.Context, paymentID string) (*model.PaymentStatus, error) {
	ctx, span := otel.Tracer("payments.status").Start(ctx, "status.get")
	defer span.End()

	if _, err := uuid.Parse(paymentID); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid payment id", err)
	}

	cacheKey := fmt.Sprintf("payments:status:%s", paymentID)
	if p.cache != nil {
		var cached model.PaymentStatus
		if err := p.cache.Get(ctx, cacheKey, &cached); err == nil && cached.PurchaseID != "" {
			return &cached, nil
		}
	}

	payment, err := p.datasource.GetPaymentByID(ctx, paymentID)
	if err != nil {
		if apierror.IsNotFound(err) {
			p.appendQueryEvent(ctx, paymentID, model.EventPaymentStatusNotFound, nil)
		}
		span.RecordError(err)
		return nil, err
	}

	p.appendQueryEvent(ctx, paymentID, model.EventPaymentStatusQueried, map[string]interface{}{
		"status": payment.Status,
	})

	status := &model.PaymentStatus{
		PurchaseID: payment.PaymentID,
		Status:     payment.Status,
		Amount:     payment.Amount,
		CreatedAt:  payment.CreatedAt,
		UpdatedAt:  payment.UpdatedAt,
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, cacheKey, status, statusCacheTTL); err != nil {
			logrus.Error("failed to cache payment status: ", err)
		}
	}

	return status, nil
}

// appendQueryEvent writes the audit trail for a status query. Best effort:
// a ledger hiccup must not turn a successful read into an error.
func (p *Payments) appendQueryEvent(ctx context.Context, paymentID, eventType string, data map[string]interface{}) {
	ev := model.NewPaymentEvent(paymentID, eventType, data)
	if err := p.datasource.AppendEvent(ctx, ev); err != nil {
		logrus.WithField("payment_id", paymentID).Error("failed to append query event: ", err)
	}
}
