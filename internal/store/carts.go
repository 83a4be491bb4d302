package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// ListActiveCartLines returns the caller's current cart snapshot. The
// snapshot is re-read on every pricing request, never cached across
// mutations.
func (s *Store) ListActiveCartLines(ctx context.Context, userID pgtype.UUID) ([]CartLine, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.title, ci.qty, ci.unit_price,
			ci.trainee_bps, ci.entrepreneur_bps
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE c.user_id = $1 AND c.cleared_at IS NULL
		ORDER BY ci.created_at, ci.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []CartLine
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.ID, &l.CartID, &l.ProductID, &l.Title, &l.Qty, &l.UnitPrice,
			&l.TraineeBps, &l.EntrepreneurBps); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ClearActiveCart marks the caller's active cart as cleared. Called as a
// settlement side effect; clearing an already-cleared cart is a no-op.
func (s *Store) ClearActiveCart(ctx context.Context, userID pgtype.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE carts SET cleared_at = now() WHERE user_id = $1 AND cleared_at IS NULL`, userID)
	return err
}
