package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// GetWallet loads the ledger for a user.
func (s *Store) GetWallet(ctx context.Context, userID pgtype.UUID) (Wallet, error) {
	var w Wallet
	err := s.db.QueryRow(ctx, `
		SELECT user_id, available_cents, locked_cents, updated_at FROM wallets WHERE user_id = $1`,
		userID).Scan(&w.UserID, &w.AvailableCents, &w.LockedCents, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrNotFound
	}
	return w, err
}

// TryDebitWallet decrements the available balance only when it covers the
// amount. Check and debit are one statement so two concurrent debits against
// the same wallet cannot both pass the balance check.
func (s *Store) TryDebitWallet(ctx context.Context, userID pgtype.UUID, amount int64) (int64, error) {
	var newBalance int64
	err := s.db.QueryRow(ctx, `
		UPDATE wallets SET available_cents = available_cents - $2, updated_at = now()
		WHERE user_id = $1 AND available_cents >= $2
		RETURNING available_cents`, userID, amount).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientFunds
	}
	return newBalance, err
}

// CreditWallet increments the available balance (refunds, top-ups by the
// external wallet collaborator).
func (s *Store) CreditWallet(ctx context.Context, userID pgtype.UUID, amount int64) (int64, error) {
	var newBalance int64
	err := s.db.QueryRow(ctx, `
		UPDATE wallets SET available_cents = available_cents + $2, updated_at = now()
		WHERE user_id = $1
		RETURNING available_cents`, userID, amount).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return newBalance, err
}
