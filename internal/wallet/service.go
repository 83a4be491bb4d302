package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukanlabs/checkout-api/internal/store"
)

// Querier lists the store operations the wallet view depends on.
type Querier interface {
	GetWallet(ctx context.Context, userID pgtype.UUID) (store.Wallet, error)
	CreditWallet(ctx context.Context, userID pgtype.UUID, amount int64) (int64, error)
}

// Service exposes the wallet ledger view. Debits happen atomically inside
// the payment orchestrator; this service only reads and credits.
type Service struct {
	Q Querier
}

// Balance returns the caller's ledger.
func (s *Service) Balance(ctx context.Context, userID string) (store.Wallet, error) {
	if s == nil || s.Q == nil {
		return store.Wallet{}, errors.New("wallet service not configured")
	}
	uid, err := store.ToUUID(userID)
	if err != nil {
		return store.Wallet{}, fmt.Errorf("parse user id: %w", err)
	}
	return s.Q.GetWallet(ctx, uid)
}

// Credit tops up the available balance. Exposed for the external wallet
// collaborator (refunds, unlocks); never called from the settlement path.
func (s *Service) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	if s == nil || s.Q == nil {
		return 0, errors.New("wallet service not configured")
	}
	if amount <= 0 {
		return 0, errors.New("credit amount must be positive")
	}
	uid, err := store.ToUUID(userID)
	if err != nil {
		return 0, fmt.Errorf("parse user id: %w", err)
	}
	return s.Q.CreditWallet(ctx, uid, amount)
}
