package wallet

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dukanlabs/checkout-api/internal/common"
	"github.com/dukanlabs/checkout-api/internal/store"
)

// Handler exposes the wallet balance view.
type Handler struct {
	Svc *Service
}

// Balance returns the caller's available and locked balances.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "wallet service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	ledger, err := h.Svc.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "WALLET_NOT_FOUND", "wallet not found", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"availableBalance": ledger.AvailableCents,
		"lockedBalance":    ledger.LockedCents,
	}})
}

type creditRequest struct {
	Amount int64 `json:"amount"`
}

// Credit tops up the caller's available balance (refunds, unlocks from the
// external wallet collaborator). Never invoked by the settlement path.
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "wallet service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if req.Amount <= 0 {
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_AMOUNT", "credit amount must be positive", nil)
		return
	}
	balance, err := h.Svc.Credit(r.Context(), userID, req.Amount)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "WALLET_NOT_FOUND", "wallet not found", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"availableBalance": balance,
	}})
}
