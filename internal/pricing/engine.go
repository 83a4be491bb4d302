package pricing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// Tier classifies a user for discount eligibility. Each product carries an
// independent discount percent per elevated tier; STANDARD gets none.
type Tier string

const (
	TierStandard     Tier = "STANDARD"
	TierTrainee      Tier = "TRAINEE_ENTREPRENEUR"
	TierEntrepreneur Tier = "ENTREPRENEUR"
)

// ParseTier normalises a tier claim, defaulting to STANDARD.
func ParseTier(value string) Tier {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(TierTrainee):
		return TierTrainee
	case string(TierEntrepreneur):
		return TierEntrepreneur
	default:
		return TierStandard
	}
}

// Line describes a cart line used for pricing. Discount percents are carried
// as basis points per tier.
type Line struct {
	Qty             int
	UnitPrice       Money
	TraineeBps      int32
	EntrepreneurBps int32
}

// Rule is one bracket of the tiered delivery-fee table.
type Rule struct {
	MinAmount Money
	MaxAmount Money
	Charge    Money
	Active    bool
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal        Money
	Discount        Money
	PayableSubtotal Money
	DeliveryCharge  Money
	GrandTotal      Money
}

var hundredPercentBps = decimal.NewFromInt(10000)

// Compute calculates cart totals for the given tier and rule table. It is a
// pure function: safe to call repeatedly and concurrently.
func Compute(lines []Line, tier Tier, rules []Rule) Summary {
	var subtotal Money
	discountTotal := decimal.Zero
	for _, line := range lines {
		if line.Qty <= 0 || line.UnitPrice < 0 {
			continue
		}
		lineTotal := Money(line.Qty) * line.UnitPrice
		subtotal += lineTotal
		bps := line.discountBps(tier)
		if bps <= 0 {
			continue
		}
		// Fractional percent math runs through decimal so repeated
		// summation cannot drift by a minor unit.
		lineDiscount := decimal.NewFromInt(lineTotal).
			Mul(decimal.NewFromInt32(bps)).
			Div(hundredPercentBps).
			Round(0)
		if lineDiscount.Sign() > 0 {
			discountTotal = discountTotal.Add(lineDiscount)
		}
	}
	discount := discountTotal.IntPart()
	if discount > subtotal {
		discount = subtotal
	}
	payable := subtotal - discount
	if payable < 0 {
		payable = 0
	}
	charge, _ := ResolveDeliveryCharge(payable, rules)
	return Summary{
		Subtotal:        subtotal,
		Discount:        discount,
		PayableSubtotal: payable,
		DeliveryCharge:  charge,
		GrandTotal:      payable + charge,
	}
}

// ResolveDeliveryCharge picks the delivery bracket for the payable amount.
// No match means free delivery. With overlapping brackets the tightest fit
// (smallest maxAmount) wins; ties break on smallest charge, then smallest
// minAmount, so the result is identical under any permutation of the input.
func ResolveDeliveryCharge(payable Money, rules []Rule) (Money, bool) {
	matches := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if payable >= rule.MinAmount && payable <= rule.MaxAmount {
			matches = append(matches, rule)
		}
	}
	if len(matches) == 0 {
		return 0, false
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].MaxAmount != matches[j].MaxAmount {
			return matches[i].MaxAmount < matches[j].MaxAmount
		}
		if matches[i].Charge != matches[j].Charge {
			return matches[i].Charge < matches[j].Charge
		}
		return matches[i].MinAmount < matches[j].MinAmount
	})
	return matches[0].Charge, true
}

func (l Line) discountBps(tier Tier) int32 {
	switch tier {
	case TierTrainee:
		return l.TraineeBps
	case TierEntrepreneur:
		return l.EntrepreneurBps
	default:
		return 0
	}
}
