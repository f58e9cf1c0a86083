package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/fcgcloud/payments/internal/apierror"
	"github.com/fcgcloud/payments/model"
	"github.com/lib/pq"
)

func (d Datasource) GetPaymentByID(ctx context.Context, id string) (*model.Payment, error) {
	payment := model.Payment{}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT payment_id, user_id, COALESCE(game_id, ''), amount, status, created_at, updated_at
		FROM payments
		WHERE payment_id = $1
	`, id)

	var updatedAt sql.NullTime
	err := row.Scan(&payment.PaymentID, &payment.UserID, &payment.GameID, &payment.Amount, &payment.Status, &payment.CreatedAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Payment not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payment", err)
	}
	if updatedAt.Valid {
		payment.UpdatedAt = &updatedAt.Time
	}

	return &payment, nil
}

// UpdatePaymentStatus transitions a payment's status and stamps updated_at.
// A missing row is not an error: the projection may lag behind the
// purchase flow, and the audit ledger still records the processing fact.
func (d Datasource) UpdatePaymentStatus(ctx context.Context, id string, status string, updatedAt time.Time) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, updated_at = $3
		WHERE payment_id = $1
	`, id, status, updatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred: "+pqErr.Message, err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update payment status", err)
	}

	return nil
}
