package payment

import (
	"context"
	"net/http"
)

// GatewayOrderRequest carries what a provider needs to open a gateway order.
type GatewayOrderRequest struct {
	OrderID      string
	Amount       int64
	Currency     string
	ExpiresAtSec int
}

// GatewayOrderResponse is the handle the client uses to drive the hosted
// payment flow.
type GatewayOrderResponse struct {
	Provider        string
	GatewayOrderRef string
	KeyID           string
	ExpiresAt       int64
}

// Normalised callback statuses. Only StatusPaid may settle an order and only
// StatusFailed may fail its attempt; everything else is non-final.
const (
	StatusPaid    = "PAID"
	StatusFailed  = "FAILED"
	StatusPending = "PENDING"
)

// CallbackResult is the normalised outcome of verifying a provider callback.
// Valid is false whenever the signature does not verify; Err then carries the
// reason but the callback must still be answered, not retried.
type CallbackResult struct {
	Valid             bool
	GatewayOrderRef   string
	GatewayPaymentRef string
	Signature         string
	Amount            int64
	Status            string
	Payload           []byte
	Err               error
}

// Provider abstracts the upstream payment gateway.
type Provider interface {
	CreateGatewayOrder(ctx context.Context, req GatewayOrderRequest) (GatewayOrderResponse, error)
	VerifyCallback(r *http.Request, body []byte) (CallbackResult, error)
}
