package order

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dukanlabs/checkout-api/internal/common"
	"github.com/dukanlabs/checkout-api/internal/pricing"
	"github.com/dukanlabs/checkout-api/internal/store"
)

// Handler exposes order creation and retrieval.
type Handler struct {
	Svc      *Assembler
	Validate *validator.Validate
}

type createRequest struct {
	AddressID     string `json:"addressId" validate:"required,uuid4"`
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=GATEWAY WALLET CASH_ON_DELIVERY"`
}

type orderResponse struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"paymentStatus"`
	PaymentMethod   string     `json:"paymentMethod"`
	Currency        string     `json:"currency"`
	Subtotal        int64      `json:"subtotal"`
	Discount        int64      `json:"discount"`
	PayableSubtotal int64      `json:"payableSubtotal"`
	DeliveryCharge  int64      `json:"deliveryCharge"`
	GrandTotal      int64      `json:"grandTotal"`
	CreatedAt       time.Time  `json:"createdAt"`
	SettledAt       *time.Time `json:"settledAt,omitempty"`
}

func toResponse(o store.Order) orderResponse {
	resp := orderResponse{
		ID:              store.UUIDString(o.ID),
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		PaymentMethod:   o.PaymentMethod,
		Currency:        o.Currency,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		PayableSubtotal: o.PayableSubtotal,
		DeliveryCharge:  o.DeliveryCharge,
		GrandTotal:      o.GrandTotal,
		CreatedAt:       o.CreatedAt.Time,
	}
	if o.SettledAt.Valid {
		settled := o.SettledAt.Time
		resp.SettledAt = &settled
	}
	return resp
}

// Create freezes the caller's active cart into a new order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "request validation failed", err.Error())
			return
		}
	}
	tierClaim, _ := common.UserTier(r.Context())
	created, err := h.Svc.Create(r.Context(), userID, pricing.ParseTier(tierClaim), Input{
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toResponse(created)})
}

// Get returns one of the caller's orders.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orderID := chi.URLParam(r, "orderId")
	found, err := h.Svc.Get(r.Context(), userID, orderID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toResponse(found)})
}
