package payment_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/dukanlabs/checkout-api/internal/payment"
)

func signCallback(secret, orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

func callbackBody(t *testing.T, orderRef, paymentRef, signature string, amount int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"razorpay_order_id":   orderRef,
		"razorpay_payment_id": paymentRef,
		"razorpay_signature":  signature,
		"amount":              amount,
		"status":              "captured",
	})
	if err != nil {
		t.Fatalf("marshal callback: %v", err)
	}
	return body
}

func TestRazorpayCreateGatewayOrder(t *testing.T) {
	provider := payment.Razorpay{KeyID: "key_id", KeySecret: "secret"}
	resp, err := provider.CreateGatewayOrder(context.Background(), payment.GatewayOrderRequest{
		OrderID: "5f6b9f3e-0000-4000-8000-000000000001",
		Amount:  960,
	})
	if err != nil {
		t.Fatalf("create gateway order: %v", err)
	}
	if resp.GatewayOrderRef == "" {
		t.Fatal("expected a gateway order reference")
	}
	if resp.KeyID != "key_id" {
		t.Fatalf("key id = %q, want key_id", resp.KeyID)
	}

	if _, err := provider.CreateGatewayOrder(context.Background(), payment.GatewayOrderRequest{OrderID: "x", Amount: 0}); err == nil {
		t.Fatal("expected error for non-positive amount")
	}
}

func TestRazorpayGatewayRefUniquePerAttempt(t *testing.T) {
	// A re-attempt against the same order must mint a new reference; the
	// failed attempt keeps its old one and gateway refs are unique rows.
	provider := payment.Razorpay{KeyID: "key_id", KeySecret: "secret"}
	req := payment.GatewayOrderRequest{
		OrderID: "5f6b9f3e-0000-4000-8000-000000000001",
		Amount:  960,
	}
	first, err := provider.CreateGatewayOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	second, err := provider.CreateGatewayOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if first.GatewayOrderRef == second.GatewayOrderRef {
		t.Fatalf("both attempts produced ref %q, want distinct refs", first.GatewayOrderRef)
	}
}

func TestRazorpayVerifyCallback(t *testing.T) {
	provider := payment.Razorpay{KeyID: "key_id", KeySecret: "secret"}
	sig := signCallback("secret", "order_abc", "pay_xyz")
	result, err := provider.VerifyCallback(nil, callbackBody(t, "order_abc", "pay_xyz", sig, 960))
	if err != nil {
		t.Fatalf("verify callback: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid result, got err %v", result.Err)
	}
	if result.GatewayOrderRef != "order_abc" || result.GatewayPaymentRef != "pay_xyz" {
		t.Fatalf("unexpected refs: %q %q", result.GatewayOrderRef, result.GatewayPaymentRef)
	}
	if result.Amount != 960 {
		t.Fatalf("amount = %d, want 960", result.Amount)
	}
	if result.Status != "PAID" {
		t.Fatalf("status = %q, want PAID", result.Status)
	}
}

func TestRazorpayVerifyCallbackRejectsTamperedSignature(t *testing.T) {
	provider := payment.Razorpay{KeySecret: "secret"}
	sig := signCallback("wrong-secret", "order_abc", "pay_xyz")
	result, err := provider.VerifyCallback(nil, callbackBody(t, "order_abc", "pay_xyz", sig, 960))
	if err != nil {
		t.Fatalf("verify callback: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result for tampered signature")
	}
	if result.GatewayOrderRef != "order_abc" {
		t.Fatalf("invalid result should keep the order ref, got %q", result.GatewayOrderRef)
	}
}

func TestRazorpayVerifyCallbackRejectsMissingRefs(t *testing.T) {
	provider := payment.Razorpay{KeySecret: "secret"}
	result, err := provider.VerifyCallback(nil, []byte(`{"razorpay_signature":"abc"}`))
	if err != nil {
		t.Fatalf("verify callback: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result for missing references")
	}
}
