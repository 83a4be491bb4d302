package settlement

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dukanlabs/checkout-api/internal/common"
	"github.com/dukanlabs/checkout-api/internal/events"
	"github.com/dukanlabs/checkout-api/internal/obs"
	"github.com/dukanlabs/checkout-api/internal/payment"
	"github.com/dukanlabs/checkout-api/internal/store"
)

// Querier lists the store operations the reconciler depends on.
type Querier interface {
	GetAttemptByGatewayRef(ctx context.Context, gatewayOrderRef string) (store.PaymentAttempt, error)
	GetOrderByID(ctx context.Context, id pgtype.UUID) (store.Order, error)
	TransitionOrderStatus(ctx context.Context, id pgtype.UUID, from []string, to string) (store.Order, error)
	SettleOrder(ctx context.Context, p store.SettleParams) (store.Order, error)
	FailOrderAttempt(ctx context.Context, orderID, attemptID pgtype.UUID, reason string, auditFlag bool) (store.Order, error)
}

// Reconciler verifies gateway callbacks against the frozen order and settles
// or rejects them. The reported amount must equal the order's grand total
// exactly; any mismatch fails closed and flags the order for audit.
type Reconciler struct {
	Q      Querier
	Events *events.Bus
}

// Process applies one verified-or-rejected callback. A callback that has
// already settled its order is acknowledged again without touching state.
func (rc *Reconciler) Process(ctx context.Context, providerKey string, result payment.CallbackResult) (store.Order, error) {
	var zero store.Order
	if rc == nil || rc.Q == nil {
		return zero, errors.New("settlement reconciler not configured")
	}
	ctx, span := otel.Tracer("settlement.Reconciler").Start(ctx, "SettlementReconciler.Process")
	defer span.End()
	span.SetAttributes(attribute.String("payment.provider", providerKey))

	if !result.Valid {
		rc.countWebhook(providerKey, "signature_invalid")
		// A bad signature with a resolvable order reference is suspicious
		// enough to flag; an unresolvable one is just rejected.
		if ref := strings.TrimSpace(result.GatewayOrderRef); ref != "" {
			if attempt, err := rc.Q.GetAttemptByGatewayRef(ctx, ref); err == nil {
				if failed, failErr := rc.Q.FailOrderAttempt(ctx, attempt.OrderID, attempt.ID, "signature verification failed", true); failErr == nil {
					rc.emitFailed(ctx, failed, "signature verification failed")
				}
			}
		}
		return zero, common.ErrSignatureInvalid()
	}

	attempt, err := rc.Q.GetAttemptByGatewayRef(ctx, result.GatewayOrderRef)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rc.countWebhook(providerKey, "attempt_not_found")
			return zero, common.NewAppError(common.CodeAttemptNotFound, "no attempt matches the gateway reference", 404, nil)
		}
		return zero, err
	}
	span.SetAttributes(attribute.String("order.id", store.UUIDString(attempt.OrderID)))

	order, err := rc.Q.GetOrderByID(ctx, attempt.OrderID)
	if err != nil {
		return zero, err
	}
	if order.Status == store.OrderStatusSettled {
		rc.countWebhook(providerKey, "replayed")
		return order, nil
	}
	if result.Status != payment.StatusPaid && result.Status != payment.StatusFailed {
		// The gateway has not finalised the payment. Only a captured or
		// failed report may move the order; anything else is acknowledged
		// and left untouched until the final callback arrives.
		rc.countWebhook(providerKey, "not_final")
		return order, nil
	}

	moved, err := rc.Q.TransitionOrderStatus(ctx, order.ID,
		[]string{store.OrderStatusAwaitingGateway}, store.OrderStatusVerifying)
	if err != nil {
		if !errors.Is(err, store.ErrStateConflict) {
			return zero, err
		}
		// Lost the swap. Either a concurrent callback settled the order,
		// or the sweep expired it first.
		current, readErr := rc.Q.GetOrderByID(ctx, order.ID)
		if readErr != nil {
			return zero, readErr
		}
		if current.Status == store.OrderStatusSettled {
			rc.countWebhook(providerKey, "replayed")
			return current, nil
		}
		rc.countWebhook(providerKey, "state_conflict")
		if failed, failErr := rc.Q.FailOrderAttempt(ctx, order.ID, attempt.ID, "callback arrived in unpayable state", true); failErr == nil {
			rc.emitFailed(ctx, failed, "callback arrived in unpayable state")
		}
		return zero, common.ErrStateConflict("order is not awaiting the gateway")
	}

	if result.Amount != moved.GrandTotal {
		rc.countWebhook(providerKey, "amount_mismatch")
		failed, failErr := rc.Q.FailOrderAttempt(ctx, moved.ID, attempt.ID, "amount mismatch", true)
		if failErr != nil {
			return zero, failErr
		}
		rc.emitFailed(ctx, failed, "amount mismatch")
		return zero, common.ErrAmountMismatch()
	}
	if result.Status == payment.StatusFailed {
		rc.countWebhook(providerKey, "gateway_failed")
		failed, failErr := rc.Q.FailOrderAttempt(ctx, moved.ID, attempt.ID, "gateway reported failure", false)
		if failErr != nil {
			return zero, failErr
		}
		rc.emitFailed(ctx, failed, "gateway reported failure")
		return failed, nil
	}

	settled, err := rc.Q.SettleOrder(ctx, store.SettleParams{
		OrderID:           moved.ID,
		UserID:            moved.UserID,
		AttemptID:         attempt.ID,
		GatewayPaymentRef: result.GatewayPaymentRef,
		Signature:         result.Signature,
	})
	if err != nil {
		return zero, err
	}
	rc.countWebhook(providerKey, "settled")
	rc.observeSettlement(settled)
	rc.emit(ctx, events.TopicOrderSettled, settled.ID, map[string]any{
		"orderId":    store.UUIDString(settled.ID),
		"userId":     store.UUIDString(settled.UserID),
		"method":     settled.PaymentMethod,
		"grandTotal": settled.GrandTotal,
		"provider":   providerKey,
	})
	rc.emit(ctx, events.TopicCartCleared, settled.ID, map[string]any{
		"userId": store.UUIDString(settled.UserID),
	})
	return settled, nil
}

func (rc *Reconciler) emitFailed(ctx context.Context, failed store.Order, reason string) {
	rc.emit(ctx, events.TopicAttemptFailed, failed.ID, map[string]any{
		"orderId": store.UUIDString(failed.ID),
		"method":  failed.PaymentMethod,
		"reason":  reason,
	})
	rc.emit(ctx, events.TopicOrderFailed, failed.ID, map[string]any{
		"orderId":      store.UUIDString(failed.ID),
		"userId":       store.UUIDString(failed.UserID),
		"reason":       reason,
		"auditFlagged": failed.AuditFlagged,
	})
}

func (rc *Reconciler) emit(ctx context.Context, topic string, aggregateID pgtype.UUID, payload map[string]any) {
	if rc.Events != nil {
		_, _ = rc.Events.Emit(ctx, topic, aggregateID, payload)
	}
}

func (rc *Reconciler) countWebhook(provider, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(provider, result).Inc()
	}
}

func (rc *Reconciler) observeSettlement(settled store.Order) {
	if obs.SettlementLatency == nil || !settled.CreatedAt.Valid || !settled.SettledAt.Valid {
		return
	}
	elapsed := settled.SettledAt.Time.Sub(settled.CreatedAt.Time)
	obs.SettlementLatency.WithLabelValues(strings.ToLower(settled.PaymentMethod)).Observe(obs.DurationMillis(elapsed))
}
