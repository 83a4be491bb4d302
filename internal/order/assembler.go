package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukanlabs/checkout-api/internal/common"
	"github.com/dukanlabs/checkout-api/internal/events"
	"github.com/dukanlabs/checkout-api/internal/obs"
	"github.com/dukanlabs/checkout-api/internal/pricing"
	"github.com/dukanlabs/checkout-api/internal/store"
)

// Querier lists the store operations the assembler depends on.
type Querier interface {
	ListActiveCartLines(ctx context.Context, userID pgtype.UUID) ([]store.CartLine, error)
	ListDeliveryFeeRules(ctx context.Context) ([]store.DeliveryFeeRule, error)
	AddressExists(ctx context.Context, userID, addressID pgtype.UUID) (bool, error)
	GetWallet(ctx context.Context, userID pgtype.UUID) (store.Wallet, error)
	CreateOrderWithLines(ctx context.Context, params store.CreateOrderParams, lines []store.OrderLine) (store.Order, error)
	GetOrderByID(ctx context.Context, id pgtype.UUID) (store.Order, error)
}

// Assembler turns a priced cart into a persisted order in its initial state.
// Totals and lines are frozen at creation; later catalog or rule changes
// never alter an existing order.
type Assembler struct {
	Q        Querier
	Currency string
	Events   *events.Bus
}

// Input is the order creation request.
type Input struct {
	AddressID     string
	PaymentMethod string
}

// Create validates the request, prices the active cart and persists the
// order as CREATED/PENDING. Nothing is decremented yet.
func (a *Assembler) Create(ctx context.Context, userID string, tier pricing.Tier, in Input) (store.Order, error) {
	if a == nil || a.Q == nil {
		return store.Order{}, errors.New("order assembler not configured")
	}
	method := strings.ToUpper(strings.TrimSpace(in.PaymentMethod))
	switch method {
	case store.MethodGateway, store.MethodWallet, store.MethodCashOnDelivery:
	default:
		return store.Order{}, common.NewAppError("INVALID_PAYMENT_METHOD", "unsupported payment method", 422, nil)
	}
	uid, err := store.ToUUID(userID)
	if err != nil {
		return store.Order{}, fmt.Errorf("parse user id: %w", err)
	}
	addressID, err := store.ToUUID(in.AddressID)
	if err != nil {
		return store.Order{}, common.ErrAddressNotFound()
	}

	lines, err := a.Q.ListActiveCartLines(ctx, uid)
	if err != nil {
		return store.Order{}, err
	}
	if len(lines) == 0 {
		a.countCheckout(method, "empty_cart")
		return store.Order{}, common.ErrEmptyCart()
	}
	ok, err := a.Q.AddressExists(ctx, uid, addressID)
	if err != nil {
		return store.Order{}, err
	}
	if !ok {
		a.countCheckout(method, "address_not_found")
		return store.Order{}, common.ErrAddressNotFound()
	}

	rules, err := a.Q.ListDeliveryFeeRules(ctx)
	if err != nil {
		return store.Order{}, err
	}
	summary, frozen := price(lines, tier, rules)

	// Optimistic funds check. The authoritative check-and-debit happens
	// atomically at debit time; this one only rejects obvious shortfalls
	// before an order row exists.
	if method == store.MethodWallet {
		ledger, err := a.Q.GetWallet(ctx, uid)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return store.Order{}, err
		}
		if errors.Is(err, store.ErrNotFound) || ledger.AvailableCents < summary.GrandTotal {
			a.countCheckout(method, "insufficient_funds")
			return store.Order{}, common.ErrInsufficientFunds()
		}
	}

	created, err := a.Q.CreateOrderWithLines(ctx, store.CreateOrderParams{
		UserID:          uid,
		AddressID:       addressID,
		PaymentMethod:   method,
		Currency:        a.Currency,
		Subtotal:        summary.Subtotal,
		Discount:        summary.Discount,
		PayableSubtotal: summary.PayableSubtotal,
		DeliveryCharge:  summary.DeliveryCharge,
		GrandTotal:      summary.GrandTotal,
	}, frozen)
	if err != nil {
		a.countCheckout(method, "error")
		return store.Order{}, err
	}
	a.countCheckout(method, "created")
	if a.Events != nil {
		_, _ = a.Events.Emit(ctx, events.TopicOrderCreated, created.ID, map[string]any{
			"orderId":    store.UUIDString(created.ID),
			"userId":     userID,
			"method":     method,
			"grandTotal": created.GrandTotal,
		})
	}
	return created, nil
}

// Get loads an order owned by the caller.
func (a *Assembler) Get(ctx context.Context, userID, orderID string) (store.Order, error) {
	if a == nil || a.Q == nil {
		return store.Order{}, errors.New("order assembler not configured")
	}
	uid, err := store.ToUUID(userID)
	if err != nil {
		return store.Order{}, fmt.Errorf("parse user id: %w", err)
	}
	oid, err := store.ToUUID(orderID)
	if err != nil {
		return store.Order{}, common.NewAppError(common.CodeOrderNotFound, "order not found", 404, nil)
	}
	order, err := a.Q.GetOrderByID(ctx, oid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, common.NewAppError(common.CodeOrderNotFound, "order not found", 404, nil)
		}
		return store.Order{}, err
	}
	if !store.UUIDEqual(order.UserID, uid) {
		return store.Order{}, common.NewAppError(common.CodeOrderNotFound, "order not found", 404, nil)
	}
	return order, nil
}

func price(lines []store.CartLine, tier pricing.Tier, rules []store.DeliveryFeeRule) (pricing.Summary, []store.OrderLine) {
	pricingLines := make([]pricing.Line, 0, len(lines))
	frozen := make([]store.OrderLine, 0, len(lines))
	for _, l := range lines {
		pl := pricing.Line{
			Qty:             int(l.Qty),
			UnitPrice:       l.UnitPrice,
			TraineeBps:      l.TraineeBps,
			EntrepreneurBps: l.EntrepreneurBps,
		}
		pricingLines = append(pricingLines, pl)
		lineSummary := pricing.Compute([]pricing.Line{pl}, tier, nil)
		frozen = append(frozen, store.OrderLine{
			ProductID:    l.ProductID,
			Title:        l.Title,
			Qty:          l.Qty,
			UnitPrice:    l.UnitPrice,
			DiscountBps:  lineBps(l, tier),
			LineTotal:    lineSummary.Subtotal,
			LineDiscount: lineSummary.Discount,
		})
	}
	pricingRules := make([]pricing.Rule, 0, len(rules))
	for _, r := range rules {
		pricingRules = append(pricingRules, pricing.Rule{
			MinAmount: r.MinAmount,
			MaxAmount: r.MaxAmount,
			Charge:    r.Charge,
			Active:    r.Active,
		})
	}
	return pricing.Compute(pricingLines, tier, pricingRules), frozen
}

func lineBps(l store.CartLine, tier pricing.Tier) int32 {
	switch tier {
	case pricing.TierTrainee:
		return l.TraineeBps
	case pricing.TierEntrepreneur:
		return l.EntrepreneurBps
	default:
		return 0
	}
}

func (a *Assembler) countCheckout(method, result string) {
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues(strings.ToLower(method), result).Inc()
	}
}
