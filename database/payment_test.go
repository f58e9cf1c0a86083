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
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/fcgcloud/payments/internal/apierror"
	"github.com/fcgcloud/payments/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGetPaymentByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	paymentID := uuid.New().String()
	userID := uuid.New().String()

	rows := sqlmock.NewRows([]string{"payment_id", "user_id", "game_id", "amount", "status", "created_at", "updated_at"}).
		AddRow(paymentID, userID, "", "59.90", model.StatusPending, time.Now(), nil)

	mock.ExpectQuery("SELECT payment_id, user_id, COALESCE").
		WithArgs(paymentID).
		WillReturnRows(rows)

	payment, err := ds.GetPaymentByID(context.Background(), paymentID)
	assert.NoError(t, err)
	assert.Equal(t, paymentID, payment.PaymentID)
	assert.Equal(t, userID, payment.UserID)
	assert.Equal(t, model.StatusPending, payment.Status)
	assert.Equal(t, "59.9", payment.Amount.String())
	assert.Nil(t, payment.UpdatedAt)
}

func TestGetPaymentByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT payment_id, user_id, COALESCE").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetPaymentByID(context.Background(), "missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestUpdatePaymentStatus_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	paymentID := uuid.New().String()
	now := time.Now()

	mock.ExpectExec("UPDATE payments").
		WithArgs(paymentID, model.StatusPaid, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdatePaymentStatus(context.Background(), paymentID, model.StatusPaid, now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePaymentStatus_MissingRowIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()

	mock.ExpectExec("UPDATE payments").
		WithArgs("unknown", model.StatusPaid, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.UpdatePaymentStatus(context.Background(), "unknown", model.StatusPaid, now)
	assert.NoError(t, err)
}

func TestUpdatePaymentStatus_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()

	mock.ExpectExec("UPDATE payments").
		WithArgs("p1", model.StatusPaid, now).
		WillReturnError(sql.ErrConnDone)

	err = ds.UpdatePaymentStatus(context.Background(), "p1", model.StatusPaid, now)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)
}
