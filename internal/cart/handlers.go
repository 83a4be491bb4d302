package cart

import (
	"net/http"

	"github.com/dukanlabs/checkout-api/internal/common"
	"github.com/dukanlabs/checkout-api/internal/pricing"
	"github.com/dukanlabs/checkout-api/internal/store"
)

// Handler exposes the pricing quote endpoint.
type Handler struct {
	Svc      *Service
	Currency string
}

type quoteLine struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Qty       int32  `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
}

type quoteResponse struct {
	Currency        string      `json:"currency"`
	Lines           []quoteLine `json:"lines"`
	Subtotal        int64       `json:"subtotal"`
	Discount        int64       `json:"discount"`
	PayableSubtotal int64       `json:"payableSubtotal"`
	DeliveryCharge  int64       `json:"deliveryCharge"`
	GrandTotal      int64       `json:"grandTotal"`
}

// Quote prices the caller's active cart at their tier.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	tierClaim, _ := common.UserTier(r.Context())
	summary, lines, err := h.Svc.Quote(r.Context(), userID, pricing.ParseTier(tierClaim))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	resp := quoteResponse{
		Currency:        h.Currency,
		Subtotal:        summary.Subtotal,
		Discount:        summary.Discount,
		PayableSubtotal: summary.PayableSubtotal,
		DeliveryCharge:  summary.DeliveryCharge,
		GrandTotal:      summary.GrandTotal,
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, quoteLine{
			ProductID: store.UUIDString(l.ProductID),
			Title:     l.Title,
			Qty:       l.Qty,
			UnitPrice: l.UnitPrice,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}
