package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Razorpay implements the Provider interface for Razorpay Orders/Checkout
// style integrations. CreateGatewayOrder synthesises the order reference
// instead of performing a network call, which keeps integration tests
// hermetic; the verification path is the real contract.
type Razorpay struct {
	KeyID     string
	KeySecret string
}

// CreateGatewayOrder opens a gateway order for the given amount. Each call
// mints a fresh reference: references are unique per attempt, so a retry
// after a failed or expired attempt never reuses the old one.
func (r Razorpay) CreateGatewayOrder(_ context.Context, req GatewayOrderRequest) (GatewayOrderResponse, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return GatewayOrderResponse{}, errors.New("order id is required")
	}
	if req.Amount <= 0 {
		return GatewayOrderResponse{}, fmt.Errorf("amount must be positive, got %d", req.Amount)
	}
	ttl := req.ExpiresAtSec
	if ttl <= 0 {
		ttl = int((30 * time.Minute).Seconds())
	}
	ref := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return GatewayOrderResponse{
		Provider:        "razorpay",
		GatewayOrderRef: ref,
		KeyID:           r.KeyID,
		ExpiresAt:       time.Now().Add(time.Duration(ttl) * time.Second).Unix(),
	}, nil
}

// VerifyCallback checks the HMAC signature over "orderRef|paymentRef" and
// normalises the payload. Verification uses only the shared secret and the
// callback body; no gateway round trip is involved.
func (r Razorpay) VerifyCallback(_ *http.Request, body []byte) (CallbackResult, error) {
	var payload struct {
		OrderRef   string `json:"razorpay_order_id"`
		PaymentRef string `json:"razorpay_payment_id"`
		Signature  string `json:"razorpay_signature"`
		Amount     int64  `json:"amount"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return CallbackResult{Valid: false, Err: err}, nil
	}
	if payload.OrderRef == "" || payload.PaymentRef == "" {
		return CallbackResult{Valid: false, Err: errors.New("missing gateway references")}, nil
	}
	expected := r.computeSignature(payload.OrderRef, payload.PaymentRef)
	provided := strings.TrimSpace(payload.Signature)
	if expected == "" || provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
		return CallbackResult{
			Valid:           false,
			GatewayOrderRef: payload.OrderRef,
			Err:             errors.New("invalid signature"),
		}, nil
	}
	return CallbackResult{
		Valid:             true,
		GatewayOrderRef:   payload.OrderRef,
		GatewayPaymentRef: payload.PaymentRef,
		Signature:         provided,
		Amount:            payload.Amount,
		Status:            normaliseCallbackStatus(payload.Status),
		Payload:           body,
	}, nil
}

func (r Razorpay) computeSignature(orderRef, paymentRef string) string {
	secret := strings.TrimSpace(r.KeySecret)
	if secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef))
	mac.Write([]byte("|"))
	mac.Write([]byte(paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

func normaliseCallbackStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "", "captured", "paid", "authorized":
		return StatusPaid
	case "failed":
		return StatusFailed
	default:
		return StatusPending
	}
}
