package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cart-service/internal/models"
)

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (seller_id, point_id, status, order_code, customer_name, customer_phone, pickup_time, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.SellerID, order.PointID, order.Status, order.OrderCode,
		order.CustomerName, order.CustomerPhone, order.PickupTime, order.TotalAmount)
}

// CreateOrderItems inserts all items for an order
func (s *Store) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, product_name, unit, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	for i := range items {
		it := &items[i]
		if err := s.db.GetContext(ctx, &it.ID, query,
			it.OrderID, it.ProductID, it.ProductName, it.Unit,
			it.Quantity, it.UnitPrice, it.Subtotal); err != nil {
			return fmt.Errorf("failed to insert order item for product %d: %w", it.ProductID, err)
		}
	}
	return nil
}

// DeleteOrder removes an order and its items (compensating action for a
// failed item write)
func (s *Store) DeleteOrder(ctx context.Context, orderID int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID)
	return err
}

// OrderByID retrieves an order by ID
func (s *Store) OrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderItemsByOrderID retrieves all items for an order
func (s *Store) OrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// OrdersBySellerID retrieves orders for a seller, newest first
func (s *Store) OrdersBySellerID(ctx context.Context, sellerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE seller_id = $1 ORDER BY created_at DESC", sellerID)
	return orders, err
}

// TransitionOrderStatus moves an order between statuses as a single
// conditional write. Returns false when the order was not in the expected
// status, which is how double confirms are refused.
func (s *Store) TransitionOrderStatus(ctx context.Context, orderID int64, from, to, reason string) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("invalid order transition: %s -> %s", from, to)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, reject_reason = $2, updated_at = NOW() WHERE id = $3 AND status = $4",
		to, reason, orderID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// NextOrderCode draws the next human-presentable order code from the
// backend sequence
func (s *Store) NextOrderCode(ctx context.Context) (string, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT nextval('order_code_seq')"); err != nil {
		return "", fmt.Errorf("failed to draw order code: %w", err)
	}
	return fmt.Sprintf("ORD-%06d", n), nil
}

// StalePreorders lists preorders created before the cutoff, oldest first.
// Used by the expiry worker.
func (s *Store) StalePreorders(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3",
		models.OrderStatusPreorder, cutoff, limit)
	return orders, err
}
