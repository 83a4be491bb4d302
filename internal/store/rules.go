package store

import "context"

// ListDeliveryFeeRules returns the delivery-fee rule table. The table is
// read-only from the pricing perspective; admin mutation happens elsewhere
// and never affects an already-frozen order.
func (s *Store) ListDeliveryFeeRules(ctx context.Context) ([]DeliveryFeeRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, min_amount, max_amount, charge, active FROM delivery_fee_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []DeliveryFeeRule
	for rows.Next() {
		var r DeliveryFeeRule
		if err := rows.Scan(&r.ID, &r.MinAmount, &r.MaxAmount, &r.Charge, &r.Active); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
