package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dukanlabs/checkout-api/internal/common"
	"github.com/dukanlabs/checkout-api/internal/store"
)

// Handler exposes payment initiation and status retrieval.
type Handler struct {
	Svc *Orchestrator
}

type payResponse struct {
	OrderID         string `json:"orderId"`
	Status          string `json:"status"`
	PaymentStatus   string `json:"paymentStatus"`
	Method          string `json:"method"`
	GatewayOrderRef string `json:"gatewayOrderRef,omitempty"`
	GatewayKeyID    string `json:"gatewayKeyId,omitempty"`
	Amount          int64  `json:"amount"`
	Reused          bool   `json:"reused,omitempty"`
}

type statusResponse struct {
	OrderID         string `json:"orderId"`
	Status          string `json:"status"`
	PaymentStatus   string `json:"paymentStatus"`
	Method          string `json:"method"`
	AttemptOutcome  string `json:"attemptOutcome,omitempty"`
	GatewayOrderRef string `json:"gatewayOrderRef,omitempty"`
	FailReason      string `json:"failReason,omitempty"`
	AuditFlagged    bool   `json:"auditFlagged,omitempty"`
}

// Pay starts (or resumes) payment for the caller's order.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orderID := chi.URLParam(r, "orderId")
	result, err := h.Svc.Start(r.Context(), userID, orderID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payResponse{
		OrderID:         store.UUIDString(result.Order.ID),
		Status:          result.Order.Status,
		PaymentStatus:   result.Order.PaymentStatus,
		Method:          result.Order.PaymentMethod,
		GatewayOrderRef: result.GatewayOrderRef,
		GatewayKeyID:    result.GatewayKeyID,
		Amount:          result.Order.GrandTotal,
		Reused:          result.Reused,
	}})
}

// Status returns the consolidated payment state of the caller's order.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orderID := chi.URLParam(r, "orderId")
	view, err := h.Svc.Status(r.Context(), userID, orderID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": statusResponse{
		OrderID:         orderID,
		Status:          view.OrderStatus,
		PaymentStatus:   view.PaymentStatus,
		Method:          view.Method,
		AttemptOutcome:  view.AttemptOutcome,
		GatewayOrderRef: view.GatewayOrderRef,
		FailReason:      view.FailReason,
		AuditFlagged:    view.AuditFlagged,
	}})
}
