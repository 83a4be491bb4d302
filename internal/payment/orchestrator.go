package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dukanlabs/checkout-api/internal/common"
	"github.com/dukanlabs/checkout-api/internal/events"
	"github.com/dukanlabs/checkout-api/internal/obs"
	"github.com/dukanlabs/checkout-api/internal/store"
)

// Querier lists the store operations the orchestrator depends on.
type Querier interface {
	GetOrderByID(ctx context.Context, id pgtype.UUID) (store.Order, error)
	TransitionOrderStatus(ctx context.Context, id pgtype.UUID, from []string, to string) (store.Order, error)
	CreateAttempt(ctx context.Context, orderID pgtype.UUID, method string) (store.PaymentAttempt, error)
	SetAttemptGatewayRef(ctx context.Context, id pgtype.UUID, gatewayOrderRef string) error
	LatestAttemptByOrder(ctx context.Context, orderID pgtype.UUID) (store.PaymentAttempt, error)
	SettleOrder(ctx context.Context, p store.SettleParams) (store.Order, error)
	FailOrderAttempt(ctx context.Context, orderID, attemptID pgtype.UUID, reason string, auditFlag bool) (store.Order, error)
}

// Locker serialises concurrent pay requests for the same order.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Orchestrator drives an order from CREATED to a settlement outcome along
// the path its payment method dictates. Every transition goes through a
// conditional status update, so a replayed or concurrent request either
// reuses the in-flight attempt or loses the swap and reads back the result.
type Orchestrator struct {
	Q          Querier
	Provider   Provider
	Lock       Locker
	Events     *events.Bus
	Currency   string
	GatewayTTL time.Duration
	LockTTL    time.Duration
}

// StartResult reports the state reached by a pay request. For gateway orders
// the reference and key drive the client-side checkout; wallet and
// cash-on-delivery orders settle inline.
type StartResult struct {
	Order           store.Order
	Attempt         store.PaymentAttempt
	GatewayOrderRef string
	GatewayKeyID    string
	Reused          bool
}

var startableStatuses = []string{store.OrderStatusCreated, store.OrderStatusFailed}

// Start begins (or resumes) payment for the order using its frozen method.
func (o *Orchestrator) Start(ctx context.Context, userID, orderID string) (StartResult, error) {
	var zero StartResult
	if o == nil || o.Q == nil {
		return zero, errors.New("payment orchestrator not configured")
	}
	ctx, span := otel.Tracer("payment.Orchestrator").Start(ctx, "PaymentOrchestrator.Start")
	defer span.End()

	uid, err := store.ToUUID(userID)
	if err != nil {
		return zero, fmt.Errorf("parse user id: %w", err)
	}
	oid, err := store.ToUUID(orderID)
	if err != nil {
		return zero, common.NewAppError(common.CodeOrderNotFound, "order not found", 404, nil)
	}
	span.SetAttributes(attribute.String("order.id", orderID))

	var result StartResult
	run := func(ctx context.Context) error {
		order, err := o.Q.GetOrderByID(ctx, oid)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return common.NewAppError(common.CodeOrderNotFound, "order not found", 404, nil)
			}
			return err
		}
		if !store.UUIDEqual(order.UserID, uid) {
			return common.NewAppError(common.CodeOrderNotFound, "order not found", 404, nil)
		}
		span.SetAttributes(attribute.String("payment.method", order.PaymentMethod))
		result, err = o.start(ctx, order)
		return err
	}
	if o.Lock != nil {
		err = o.Lock.WithLock(ctx, "pay:order:"+orderID, o.LockTTL, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		span.RecordError(err)
		return zero, err
	}
	return result, nil
}

func (o *Orchestrator) start(ctx context.Context, order store.Order) (StartResult, error) {
	// Replaying a pay request against a settled order is a success no-op.
	if order.Status == store.OrderStatusSettled {
		attempt, err := o.Q.LatestAttemptByOrder(ctx, order.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return StartResult{}, err
		}
		return StartResult{Order: order, Attempt: attempt, Reused: true}, nil
	}
	switch order.PaymentMethod {
	case store.MethodGateway:
		return o.startGateway(ctx, order)
	case store.MethodWallet:
		return o.startWallet(ctx, order)
	case store.MethodCashOnDelivery:
		return o.startCashOnDelivery(ctx, order)
	default:
		return StartResult{}, common.NewAppError("INVALID_PAYMENT_METHOD", "unsupported payment method", 422, nil)
	}
}

func (o *Orchestrator) startGateway(ctx context.Context, order store.Order) (StartResult, error) {
	if o.Provider == nil {
		return StartResult{}, errors.New("gateway provider not configured")
	}
	// An order already waiting on the gateway keeps its pending attempt.
	if order.Status == store.OrderStatusAwaitingGateway {
		attempt, err := o.Q.LatestAttemptByOrder(ctx, order.ID)
		if err == nil && attempt.Outcome == store.OutcomePending && attempt.GatewayOrderRef.Valid {
			o.countAttempt(store.MethodGateway, "reused")
			return StartResult{
				Order:           order,
				Attempt:         attempt,
				GatewayOrderRef: attempt.GatewayOrderRef.String,
				GatewayKeyID:    o.gatewayKeyID(),
				Reused:          true,
			}, nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return StartResult{}, err
		}
	}
	moved, err := o.Q.TransitionOrderStatus(ctx, order.ID, startableStatuses, store.OrderStatusAwaitingGateway)
	if err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return StartResult{}, common.ErrStateConflict("order is not payable in its current state")
		}
		return StartResult{}, err
	}
	attempt, err := o.Q.CreateAttempt(ctx, moved.ID, store.MethodGateway)
	if err != nil {
		return StartResult{}, err
	}
	resp, err := o.Provider.CreateGatewayOrder(ctx, GatewayOrderRequest{
		OrderID:      store.UUIDString(moved.ID),
		Amount:       moved.GrandTotal,
		Currency:     o.Currency,
		ExpiresAtSec: int(o.gatewayTTL().Seconds()),
	})
	if err != nil {
		o.countAttempt(store.MethodGateway, "provider_error")
		if _, failErr := o.Q.FailOrderAttempt(ctx, moved.ID, attempt.ID, "gateway order creation failed", false); failErr != nil {
			return StartResult{}, errors.Join(err, failErr)
		}
		o.emit(ctx, events.TopicAttemptFailed, moved.ID, map[string]any{
			"orderId": store.UUIDString(moved.ID),
			"method":  store.MethodGateway,
			"reason":  "gateway order creation failed",
		})
		return StartResult{}, fmt.Errorf("create gateway order: %w", err)
	}
	if err := o.Q.SetAttemptGatewayRef(ctx, attempt.ID, resp.GatewayOrderRef); err != nil {
		return StartResult{}, err
	}
	o.countAttempt(store.MethodGateway, "awaiting_gateway")
	return StartResult{
		Order:           moved,
		Attempt:         attempt,
		GatewayOrderRef: resp.GatewayOrderRef,
		GatewayKeyID:    resp.KeyID,
	}, nil
}

func (o *Orchestrator) startWallet(ctx context.Context, order store.Order) (StartResult, error) {
	moved, err := o.Q.TransitionOrderStatus(ctx, order.ID, startableStatuses, store.OrderStatusDebiting)
	if err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return StartResult{}, common.ErrStateConflict("order is not payable in its current state")
		}
		return StartResult{}, err
	}
	attempt, err := o.Q.CreateAttempt(ctx, moved.ID, store.MethodWallet)
	if err != nil {
		// DEBITING is unreachable by the sweep; move the order back to
		// FAILED so the caller can retry with a fresh attempt.
		if _, failErr := o.Q.TransitionOrderStatus(ctx, moved.ID,
			[]string{store.OrderStatusDebiting}, store.OrderStatusFailed); failErr != nil && !errors.Is(failErr, store.ErrStateConflict) {
			return StartResult{}, errors.Join(err, failErr)
		}
		return StartResult{}, err
	}
	settled, err := o.Q.SettleOrder(ctx, store.SettleParams{
		OrderID:     moved.ID,
		UserID:      moved.UserID,
		AttemptID:   attempt.ID,
		DebitWallet: true,
		DebitAmount: moved.GrandTotal,
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			o.countAttempt(store.MethodWallet, "insufficient_funds")
			o.countDebit("insufficient_funds")
			if _, failErr := o.Q.FailOrderAttempt(ctx, moved.ID, attempt.ID, "insufficient funds", false); failErr != nil {
				return StartResult{}, failErr
			}
			o.emit(ctx, events.TopicAttemptFailed, moved.ID, map[string]any{
				"orderId": store.UUIDString(moved.ID),
				"method":  store.MethodWallet,
				"reason":  "insufficient funds",
			})
			return StartResult{}, common.ErrInsufficientFunds()
		}
		o.countAttempt(store.MethodWallet, "error")
		if _, failErr := o.Q.FailOrderAttempt(ctx, moved.ID, attempt.ID, "wallet settlement error", false); failErr != nil {
			return StartResult{}, errors.Join(err, failErr)
		}
		return StartResult{}, err
	}
	o.countAttempt(store.MethodWallet, "settled")
	o.countDebit("debited")
	o.observeSettlement(settled)
	o.emit(ctx, events.TopicWalletDebited, settled.ID, map[string]any{
		"orderId": store.UUIDString(settled.ID),
		"userId":  store.UUIDString(settled.UserID),
		"amount":  settled.GrandTotal,
	})
	o.emitSettled(ctx, settled)
	return StartResult{Order: settled, Attempt: attempt}, nil
}

func (o *Orchestrator) startCashOnDelivery(ctx context.Context, order store.Order) (StartResult, error) {
	// Cash on delivery settles straight from CREATED; collection happens
	// offline and the ledger is untouched.
	if order.Status != store.OrderStatusCreated && order.Status != store.OrderStatusFailed {
		return StartResult{}, common.ErrStateConflict("order is not payable in its current state")
	}
	attempt, err := o.Q.CreateAttempt(ctx, order.ID, store.MethodCashOnDelivery)
	if err != nil {
		return StartResult{}, err
	}
	settled, err := o.Q.SettleOrder(ctx, store.SettleParams{
		OrderID:   order.ID,
		UserID:    order.UserID,
		AttemptID: attempt.ID,
	})
	if err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return StartResult{}, common.ErrStateConflict("order is not payable in its current state")
		}
		return StartResult{}, err
	}
	o.countAttempt(store.MethodCashOnDelivery, "settled")
	o.observeSettlement(settled)
	o.emitSettled(ctx, settled)
	return StartResult{Order: settled, Attempt: attempt}, nil
}

// StatusView is the consolidated payment status for an order.
type StatusView struct {
	OrderStatus     string
	PaymentStatus   string
	Method          string
	AttemptOutcome  string
	GatewayOrderRef string
	FailReason      string
	AuditFlagged    bool
}

// Status reports the best-known payment state of the caller's order.
func (o *Orchestrator) Status(ctx context.Context, userID, orderID string) (StatusView, error) {
	var zero StatusView
	if o == nil || o.Q == nil {
		return zero, errors.New("payment orchestrator not configured")
	}
	uid, err := store.ToUUID(userID)
	if err != nil {
		return zero, fmt.Errorf("parse user id: %w", err)
	}
	oid, err := store.ToUUID(orderID)
	if err != nil {
		return zero, common.NewAppError(common.CodeOrderNotFound, "order not found", 404, nil)
	}
	order, err := o.Q.GetOrderByID(ctx, oid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return zero, common.NewAppError(common.CodeOrderNotFound, "order not found", 404, nil)
		}
		return zero, err
	}
	if !store.UUIDEqual(order.UserID, uid) {
		return zero, common.NewAppError(common.CodeOrderNotFound, "order not found", 404, nil)
	}
	view := StatusView{
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
		Method:        order.PaymentMethod,
		AuditFlagged:  order.AuditFlagged,
	}
	attempt, err := o.Q.LatestAttemptByOrder(ctx, oid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return view, nil
		}
		return zero, err
	}
	view.AttemptOutcome = attempt.Outcome
	if attempt.GatewayOrderRef.Valid {
		view.GatewayOrderRef = attempt.GatewayOrderRef.String
	}
	if attempt.FailReason.Valid {
		view.FailReason = attempt.FailReason.String
	}
	return view, nil
}

func (o *Orchestrator) gatewayTTL() time.Duration {
	if o.GatewayTTL > 0 {
		return o.GatewayTTL
	}
	return 30 * time.Minute
}

func (o *Orchestrator) gatewayKeyID() string {
	if rp, ok := o.Provider.(Razorpay); ok {
		return rp.KeyID
	}
	return ""
}

func (o *Orchestrator) emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload map[string]any) {
	if o.Events != nil {
		_, _ = o.Events.Emit(ctx, topic, aggregateID, payload)
	}
}

func (o *Orchestrator) emitSettled(ctx context.Context, settled store.Order) {
	o.emit(ctx, events.TopicOrderSettled, settled.ID, map[string]any{
		"orderId":    store.UUIDString(settled.ID),
		"userId":     store.UUIDString(settled.UserID),
		"method":     settled.PaymentMethod,
		"grandTotal": settled.GrandTotal,
	})
	o.emit(ctx, events.TopicCartCleared, settled.ID, map[string]any{
		"userId": store.UUIDString(settled.UserID),
	})
}

func (o *Orchestrator) countAttempt(method, result string) {
	if obs.PaymentAttemptTotal != nil {
		obs.PaymentAttemptTotal.WithLabelValues(strings.ToLower(method), result).Inc()
	}
}

func (o *Orchestrator) countDebit(result string) {
	if obs.WalletDebitTotal != nil {
		obs.WalletDebitTotal.WithLabelValues(result).Inc()
	}
}

func (o *Orchestrator) observeSettlement(settled store.Order) {
	if obs.SettlementLatency == nil || !settled.CreatedAt.Valid || !settled.SettledAt.Valid {
		return
	}
	elapsed := settled.SettledAt.Time.Sub(settled.CreatedAt.Time)
	obs.SettlementLatency.WithLabelValues(strings.ToLower(settled.PaymentMethod)).Observe(obs.DurationMillis(elapsed))
}
