package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const attemptColumns = `id, order_id, method, gateway_order_ref, gateway_payment_ref, signature,
	outcome, fail_reason, created_at, updated_at`

func scanAttempt(row pgx.Row) (PaymentAttempt, error) {
	var a PaymentAttempt
	err := row.Scan(&a.ID, &a.OrderID, &a.Method, &a.GatewayOrderRef, &a.GatewayPaymentRef,
		&a.Signature, &a.Outcome, &a.FailReason, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentAttempt{}, ErrNotFound
	}
	return a, err
}

// CreateAttempt appends a payment attempt for the order.
func (s *Store) CreateAttempt(ctx context.Context, orderID pgtype.UUID, method string) (PaymentAttempt, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO payment_attempts (order_id, method, outcome)
		VALUES ($1, $2, $3)
		RETURNING `+attemptColumns, orderID, method, OutcomePending)
	return scanAttempt(row)
}

// SetAttemptGatewayRef records the gateway order handle on the attempt.
func (s *Store) SetAttemptGatewayRef(ctx context.Context, id pgtype.UUID, gatewayOrderRef string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE payment_attempts SET gateway_order_ref = $2, updated_at = now() WHERE id = $1`,
		id, gatewayOrderRef)
	return err
}

// GetAttemptByGatewayRef resolves an attempt from the gateway order reference.
func (s *Store) GetAttemptByGatewayRef(ctx context.Context, gatewayOrderRef string) (PaymentAttempt, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+attemptColumns+` FROM payment_attempts WHERE gateway_order_ref = $1`, gatewayOrderRef)
	return scanAttempt(row)
}

// LatestAttemptByOrder returns the most recent attempt for the order.
func (s *Store) LatestAttemptByOrder(ctx context.Context, orderID pgtype.UUID) (PaymentAttempt, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+attemptColumns+` FROM payment_attempts
		WHERE order_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, orderID)
	return scanAttempt(row)
}

// MarkAttemptOutcome records the terminal outcome of an attempt.
func (s *Store) MarkAttemptOutcome(ctx context.Context, id pgtype.UUID, outcome, failReason string) error {
	reason := pgtype.Text{}
	if failReason != "" {
		reason = pgtype.Text{String: failReason, Valid: true}
	}
	_, err := s.db.Exec(ctx, `
		UPDATE payment_attempts SET outcome = $2, fail_reason = $3, updated_at = now() WHERE id = $1`,
		id, outcome, reason)
	return err
}

// MarkAttemptSucceeded stores the verified payment reference and signature on success.
func (s *Store) MarkAttemptSucceeded(ctx context.Context, id pgtype.UUID, gatewayPaymentRef, signature string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE payment_attempts
		SET outcome = $2, gateway_payment_ref = $3, signature = $4, fail_reason = NULL, updated_at = now()
		WHERE id = $1`,
		id, OutcomeSuccess,
		pgtype.Text{String: gatewayPaymentRef, Valid: gatewayPaymentRef != ""},
		pgtype.Text{String: signature, Valid: signature != ""})
	return err
}

// ExpirePendingAttempts marks all pending attempts of an order as expired.
func (s *Store) ExpirePendingAttempts(ctx context.Context, orderID pgtype.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE payment_attempts SET outcome = $2, fail_reason = $3, updated_at = now()
		WHERE order_id = $1 AND outcome = $4`,
		orderID, OutcomeExpired, "gateway timeout", OutcomePending)
	return err
}
