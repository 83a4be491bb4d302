package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/dukanlabs/checkout-api/internal/events"
	"github.com/dukanlabs/checkout-api/internal/obs"
	"github.com/dukanlabs/checkout-api/internal/store"
)

// Querier lists the store operations the sweeper depends on.
type Querier interface {
	ListExpiredAwaitingGateway(ctx context.Context, cutoff time.Time, limit int32) ([]store.Order, error)
	TransitionOrderStatus(ctx context.Context, id pgtype.UUID, from []string, to string) (store.Order, error)
	ExpirePendingAttempts(ctx context.Context, orderID pgtype.UUID) error
}

// Locker keeps concurrent worker replicas from sweeping the same batch.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

const lockKey = "sweep:expire_gateway_orders"

// Sweeper fails orders stuck in AWAITING_GATEWAY past the gateway TTL. Each
// order moves through the same conditional update the reconciler uses, so a
// callback landing mid-sweep wins the race and the sweep skips that order.
type Sweeper struct {
	Q         Querier
	Events    *events.Bus
	Lock      Locker
	LockTTL   time.Duration
	TTL       time.Duration
	BatchSize int32
	Logger    *zerolog.Logger
}

// Run expires one batch of stale orders and reports how many were failed.
// With a Locker configured the batch runs under a distributed lock so only
// one worker replica sweeps at a time.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	if s == nil || s.Q == nil {
		return 0, errors.New("sweeper not configured")
	}
	if s.Lock == nil {
		return s.sweep(ctx)
	}
	lockTTL := s.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	var expired int
	err := s.Lock.WithLock(ctx, lockKey, lockTTL, func(ctx context.Context) error {
		var sweepErr error
		expired, sweepErr = s.sweep(ctx)
		return sweepErr
	})
	return expired, err
}

func (s *Sweeper) sweep(ctx context.Context) (int, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	limit := s.BatchSize
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().Add(-ttl)
	stale, err := s.Q.ListExpiredAwaitingGateway(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, order := range stale {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		_, err := s.Q.TransitionOrderStatus(ctx, order.ID,
			[]string{store.OrderStatusAwaitingGateway}, store.OrderStatusFailed)
		if err != nil {
			if errors.Is(err, store.ErrStateConflict) {
				continue
			}
			return expired, err
		}
		if err := s.Q.ExpirePendingAttempts(ctx, order.ID); err != nil {
			return expired, err
		}
		expired++
		if obs.SweepExpiredTotal != nil {
			obs.SweepExpiredTotal.Inc()
		}
		if s.Events != nil {
			_, _ = s.Events.Emit(ctx, events.TopicOrderFailed, order.ID, map[string]any{
				"orderId": store.UUIDString(order.ID),
				"userId":  store.UUIDString(order.UserID),
				"reason":  "gateway timeout",
			})
		}
		if s.Logger != nil {
			s.Logger.Info().
				Str("order_id", store.UUIDString(order.ID)).
				Time("stale_since", order.UpdatedAt.Time).
				Msg("expired awaiting-gateway order")
		}
	}
	return expired, nil
}
