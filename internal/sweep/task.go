package sweep

import (
	"context"

	"github.com/hibiken/asynq"
)

// TypeExpireGatewayOrders is the task type for the gateway timeout sweep.
const TypeExpireGatewayOrders = "sweep:expire_gateway_orders"

// NewExpireTask builds the periodic sweep task. The task carries no payload;
// the cutoff is computed at execution time from the configured TTL.
func NewExpireTask() *asynq.Task {
	return asynq.NewTask(TypeExpireGatewayOrders, nil)
}

// HandleExpireTask adapts the sweeper to an asynq handler.
func (s *Sweeper) HandleExpireTask(ctx context.Context, _ *asynq.Task) error {
	expired, err := s.Run(ctx)
	if err != nil {
		return err
	}
	if s.Logger != nil && expired > 0 {
		s.Logger.Info().Int("expired", expired).Msg("gateway timeout sweep finished")
	}
	return nil
}
