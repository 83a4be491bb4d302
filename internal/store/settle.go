package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// SettleParams describes one atomic settlement: the attempt, its order and,
// for wallet payments, the conditional ledger debit that must precede it.
type SettleParams struct {
	OrderID           pgtype.UUID
	UserID            pgtype.UUID
	AttemptID         pgtype.UUID
	GatewayPaymentRef string
	Signature         string
	DebitWallet       bool
	DebitAmount       int64
}

// SettleOrder finalises an attempt and its order in one transaction and
// clears the active cart. When DebitWallet is set the conditional ledger
// update runs first; ErrInsufficientFunds aborts the whole settlement and
// leaves every row untouched.
func (s *Store) SettleOrder(ctx context.Context, p SettleParams) (Order, error) {
	var settled Order
	err := s.InTx(ctx, func(q *Store) error {
		if p.DebitWallet {
			if _, err := q.TryDebitWallet(ctx, p.UserID, p.DebitAmount); err != nil {
				return err
			}
		}
		order, err := q.MarkOrderSettled(ctx, p.OrderID)
		if err != nil {
			return err
		}
		if err := q.MarkAttemptSucceeded(ctx, p.AttemptID, p.GatewayPaymentRef, p.Signature); err != nil {
			return err
		}
		if err := q.ClearActiveCart(ctx, p.UserID); err != nil {
			return err
		}
		settled = order
		return nil
	})
	return settled, err
}

// FailOrderAttempt records a failed attempt and moves its order to FAILED in
// one transaction. Settled orders are left alone.
func (s *Store) FailOrderAttempt(ctx context.Context, orderID, attemptID pgtype.UUID, reason string, auditFlag bool) (Order, error) {
	var failed Order
	err := s.InTx(ctx, func(q *Store) error {
		if err := q.MarkAttemptOutcome(ctx, attemptID, OutcomeFailed, reason); err != nil {
			return err
		}
		order, err := q.MarkOrderFailed(ctx, orderID, auditFlag)
		if err != nil {
			return err
		}
		failed = order
		return nil
	})
	return failed, err
}
