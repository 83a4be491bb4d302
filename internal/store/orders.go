package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, user_id, address_id, payment_method, status, payment_status, currency,
	subtotal, discount, payable_subtotal, delivery_charge, grand_total, audit_flagged,
	created_at, updated_at, settled_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.AddressID, &o.PaymentMethod, &o.Status, &o.PaymentStatus,
		&o.Currency, &o.Subtotal, &o.Discount, &o.PayableSubtotal, &o.DeliveryCharge, &o.GrandTotal,
		&o.AuditFlagged, &o.CreatedAt, &o.UpdatedAt, &o.SettledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// CreateOrderParams carries the frozen totals for a new order.
type CreateOrderParams struct {
	UserID          pgtype.UUID
	AddressID       pgtype.UUID
	PaymentMethod   string
	Currency        string
	Subtotal        int64
	Discount        int64
	PayableSubtotal int64
	DeliveryCharge  int64
	GrandTotal      int64
}

// CreateOrderWithLines persists an order and its frozen lines in one transaction.
func (s *Store) CreateOrderWithLines(ctx context.Context, params CreateOrderParams, lines []OrderLine) (Order, error) {
	var created Order
	err := s.InTx(ctx, func(q *Store) error {
		row := q.db.QueryRow(ctx, `
			INSERT INTO orders (user_id, address_id, payment_method, status, payment_status, currency,
				subtotal, discount, payable_subtotal, delivery_charge, grand_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING `+orderColumns,
			params.UserID, params.AddressID, params.PaymentMethod, OrderStatusCreated, PaymentStatusPending,
			params.Currency, params.Subtotal, params.Discount, params.PayableSubtotal,
			params.DeliveryCharge, params.GrandTotal)
		order, err := scanOrder(row)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := q.db.Exec(ctx, `
				INSERT INTO order_lines (order_id, product_id, title, qty, unit_price, discount_bps, line_total, line_discount)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				order.ID, line.ProductID, line.Title, line.Qty, line.UnitPrice, line.DiscountBps,
				line.LineTotal, line.LineDiscount); err != nil {
				return err
			}
		}
		created = order
		return nil
	})
	return created, err
}

// GetOrderByID loads an order.
func (s *Store) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// ListOrderLines returns the frozen lines of an order.
func (s *Store) ListOrderLines(ctx context.Context, orderID pgtype.UUID) ([]OrderLine, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, product_id, title, qty, unit_price, discount_bps, line_total, line_discount
		FROM order_lines WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Title, &l.Qty, &l.UnitPrice,
			&l.DiscountBps, &l.LineTotal, &l.LineDiscount); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// TransitionOrderStatus performs a compare-and-swap on the order status. The
// conditional update is the per-order serialization point: concurrent
// transitions race on it and exactly one wins.
func (s *Store) TransitionOrderStatus(ctx context.Context, id pgtype.UUID, from []string, to string) (Order, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING `+orderColumns, id, to, from)
	order, err := scanOrder(row)
	if errors.Is(err, ErrNotFound) {
		return Order{}, ErrStateConflict
	}
	return order, err
}

// MarkOrderSettled finalises an order as paid.
func (s *Store) MarkOrderSettled(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, settled_at = now(), updated_at = now()
		WHERE id = $1 AND status <> $2
		RETURNING `+orderColumns, id, OrderStatusSettled, PaymentStatusPaid)
	order, err := scanOrder(row)
	if errors.Is(err, ErrNotFound) {
		return Order{}, ErrStateConflict
	}
	return order, err
}

// MarkOrderFailed moves a non-terminal order to FAILED, optionally flagging it for audit.
func (s *Store) MarkOrderFailed(ctx context.Context, id pgtype.UUID, auditFlag bool) (Order, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, audit_flagged = audit_flagged OR $4, updated_at = now()
		WHERE id = $1 AND status <> $5
		RETURNING `+orderColumns, id, OrderStatusFailed, PaymentStatusFailed, auditFlag, OrderStatusSettled)
	order, err := scanOrder(row)
	if errors.Is(err, ErrNotFound) {
		return Order{}, ErrStateConflict
	}
	return order, err
}

// ListExpiredAwaitingGateway returns orders stuck in AWAITING_GATEWAY since before cutoff.
func (s *Store) ListExpiredAwaitingGateway(ctx context.Context, cutoff time.Time, limit int32) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3`, OrderStatusAwaitingGateway, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
