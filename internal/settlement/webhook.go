package settlement

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"

	"github.com/dukanlabs/checkout-api/internal/common"
	"github.com/dukanlabs/checkout-api/internal/payment"
)

// Webhook handles gateway callbacks: signature verification, replay
// suppression and settlement through the reconciler.
type Webhook struct {
	Reconciler *Reconciler
	Providers  map[string]payment.Provider
	Replay     *redis.Client
	ReplayTTL  time.Duration
}

// Handle processes a callback for the provider named in the path. Callbacks
// the gateway may retry are answered 204 once handled, including replays of
// an already-settled order.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Reconciler == nil || h.Providers == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	provider, ok := h.Providers[providerKey]
	if !ok {
		common.JSONError(w, http.StatusNotFound, "PROVIDER_NOT_SUPPORTED", "unknown provider", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	result, err := provider.VerifyCallback(r, body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", err.Error(), nil)
		return
	}
	if h.Replay != nil && h.ReplayTTL > 0 {
		key := fmt.Sprintf("wh:%s:%s", providerKey, common.Sha256Hex(string(body)))
		fresh, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", err.Error(), nil)
			return
		}
		if !fresh {
			// Byte-identical retransmission. The reconciler is idempotent
			// anyway, so acknowledge without reprocessing.
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	if result.Payload == nil {
		result.Payload = body
	}
	if _, err := h.Reconciler.Process(r.Context(), providerKey, result); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
