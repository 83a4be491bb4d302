package settlement_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dukanlabs/checkout-api/internal/payment"
	"github.com/dukanlabs/checkout-api/internal/settlement"
	"github.com/dukanlabs/checkout-api/internal/store"
)

func newWebhookServer(t *testing.T, stub *reconcilerStub) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hook := settlement.Webhook{
		Reconciler: &settlement.Reconciler{Q: stub},
		Providers: map[string]payment.Provider{
			"razorpay": payment.Razorpay{KeyID: "key_id", KeySecret: "secret"},
		},
		Replay:    client,
		ReplayTTL: time.Hour,
	}
	r := chi.NewRouter()
	r.Post("/webhooks/payment/{provider}", hook.Handle)
	return r, mr
}

func signedBody(t *testing.T, secret string, amount int64) []byte {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("order_ref|pay_ref"))
	body, err := json.Marshal(map[string]any{
		"razorpay_order_id":   "order_ref",
		"razorpay_payment_id": "pay_ref",
		"razorpay_signature":  hex.EncodeToString(mac.Sum(nil)),
		"amount":              amount,
		"status":              "captured",
	})
	require.NoError(t, err)
	return body
}

func TestWebhookSettlesAndSuppressesReplay(t *testing.T) {
	stub := newReconcilerStub(960)
	handler, _ := newWebhookServer(t, stub)
	body := signedBody(t, "secret", 960)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/payment/razorpay", bytes.NewReader(body)))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 1, stub.settleCalls)

	// Byte-identical retransmission is acknowledged without reprocessing.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/payment/razorpay", bytes.NewReader(body)))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 1, stub.settleCalls)
}

func TestWebhookRejectsForgedSignature(t *testing.T) {
	stub := newReconcilerStub(960)
	handler, _ := newWebhookServer(t, stub)
	body := signedBody(t, "wrong-secret", 960)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/payment/razorpay", bytes.NewReader(body)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, 0, stub.settleCalls)

	current, err := stub.GetOrderByID(context.Background(), stub.order.ID)
	require.NoError(t, err)
	require.Equal(t, store.OrderStatusFailed, current.Status)
	require.True(t, current.AuditFlagged)
}

func TestWebhookRejectsAmountMismatch(t *testing.T) {
	stub := newReconcilerStub(960)
	handler, _ := newWebhookServer(t, stub)
	body := signedBody(t, "secret", 961)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/payment/razorpay", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0, stub.settleCalls)
}

func TestWebhookUnknownProvider(t *testing.T) {
	stub := newReconcilerStub(960)
	handler, _ := newWebhookServer(t, stub)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/payment/stripe", bytes.NewReader([]byte("{}"))))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
