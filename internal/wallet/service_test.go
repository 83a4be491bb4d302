package wallet_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukanlabs/checkout-api/internal/common"
	"github.com/dukanlabs/checkout-api/internal/store"
	"github.com/dukanlabs/checkout-api/internal/wallet"
)

type walletStub struct {
	userID    pgtype.UUID
	available int64
	locked    int64
}

func (s *walletStub) GetWallet(_ context.Context, userID pgtype.UUID) (store.Wallet, error) {
	if !store.UUIDEqual(s.userID, userID) {
		return store.Wallet{}, store.ErrNotFound
	}
	return store.Wallet{UserID: s.userID, AvailableCents: s.available, LockedCents: s.locked}, nil
}

func (s *walletStub) CreditWallet(_ context.Context, userID pgtype.UUID, amount int64) (int64, error) {
	if !store.UUIDEqual(s.userID, userID) {
		return 0, store.ErrNotFound
	}
	s.available += amount
	return s.available, nil
}

func TestBalanceReturnsLedger(t *testing.T) {
	userID := store.NewUUID()
	svc := &wallet.Service{Q: &walletStub{userID: userID, available: 1000, locked: 50}}

	ledger, err := svc.Balance(context.Background(), store.UUIDString(userID))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if ledger.AvailableCents != 1000 || ledger.LockedCents != 50 {
		t.Fatalf("unexpected ledger: %+v", ledger)
	}
}

func TestCreditTopsUpBalance(t *testing.T) {
	userID := store.NewUUID()
	stub := &walletStub{userID: userID, available: 300}
	svc := &wallet.Service{Q: stub}

	balance, err := svc.Credit(context.Background(), store.UUIDString(userID), 700)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if balance != 1000 || stub.available != 1000 {
		t.Fatalf("balance = %d (stub %d), want 1000", balance, stub.available)
	}
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	userID := store.NewUUID()
	svc := &wallet.Service{Q: &walletStub{userID: userID}}

	for _, amount := range []int64{0, -100} {
		if _, err := svc.Credit(context.Background(), store.UUIDString(userID), amount); err == nil {
			t.Fatalf("expected error for amount %d", amount)
		}
	}
}

func creditHTTP(t *testing.T, h *wallet.Handler, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/wallet/credits", bytes.NewBufferString(body))
	req = req.WithContext(common.WithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	h.Credit(rec, req)
	return rec
}

func TestCreditHandler(t *testing.T) {
	userID := store.NewUUID()
	stub := &walletStub{userID: userID, available: 300}
	h := &wallet.Handler{Svc: &wallet.Service{Q: stub}}

	rec := creditHTTP(t, h, store.UUIDString(userID), `{"amount":700}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if stub.available != 1000 {
		t.Fatalf("available = %d, want 1000", stub.available)
	}

	rec = creditHTTP(t, h, store.UUIDString(userID), `{"amount":0}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 for zero amount", rec.Code)
	}

	rec = creditHTTP(t, h, store.UUIDString(store.NewUUID()), `{"amount":100}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown wallet", rec.Code)
	}
}
