package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukanlabs/checkout-api/internal/common"
	"github.com/dukanlabs/checkout-api/internal/pricing"
	"github.com/dukanlabs/checkout-api/internal/store"
)

// Querier lists the store operations the cart service depends on.
type Querier interface {
	ListActiveCartLines(ctx context.Context, userID pgtype.UUID) ([]store.CartLine, error)
	ListDeliveryFeeRules(ctx context.Context) ([]store.DeliveryFeeRule, error)
}

// Service prices the caller's active cart. Every quote re-reads the cart and
// the rule table; nothing is cached across mutations.
type Service struct {
	Q Querier
}

// Quote computes the priced cart for the caller at the given tier.
func (s *Service) Quote(ctx context.Context, userID string, tier pricing.Tier) (pricing.Summary, []store.CartLine, error) {
	if s == nil || s.Q == nil {
		return pricing.Summary{}, nil, errors.New("cart service not configured")
	}
	uid, err := store.ToUUID(userID)
	if err != nil {
		return pricing.Summary{}, nil, fmt.Errorf("parse user id: %w", err)
	}
	lines, err := s.Q.ListActiveCartLines(ctx, uid)
	if err != nil {
		return pricing.Summary{}, nil, err
	}
	if len(lines) == 0 {
		return pricing.Summary{}, nil, common.ErrEmptyCart()
	}
	rules, err := s.Q.ListDeliveryFeeRules(ctx)
	if err != nil {
		return pricing.Summary{}, nil, err
	}
	summary := pricing.Compute(toPricingLines(lines), tier, toPricingRules(rules))
	return summary, lines, nil
}

func toPricingLines(lines []store.CartLine) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, pricing.Line{
			Qty:             int(l.Qty),
			UnitPrice:       l.UnitPrice,
			TraineeBps:      l.TraineeBps,
			EntrepreneurBps: l.EntrepreneurBps,
		})
	}
	return out
}

func toPricingRules(rules []store.DeliveryFeeRule) []pricing.Rule {
	out := make([]pricing.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, pricing.Rule{
			MinAmount: r.MinAmount,
			MaxAmount: r.MaxAmount,
			Charge:    r.Charge,
			Active:    r.Active,
		})
	}
	return out
}
