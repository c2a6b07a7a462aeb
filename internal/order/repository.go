package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopbd-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	GetByID(ctx context.Context, orderID uint) (*Order, error)
	// MarkAsPaid flips an unpaid order to paid. It reports false when
	// nothing changed because the order was already paid.
	MarkAsPaid(ctx context.Context, orderID uint) (bool, error)
	// UpdateStatus changes the status of an unpaid order.
	UpdateStatus(ctx context.Context, orderID uint, status Status) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, orderID uint) (*Order, error) {
	const q = `
		SELECT id, first_name, last_name, email, address, city, postal_code,
		       paid, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var o Order
	err := r.db.QueryRowContext(ctx, q, orderID).Scan(
		&o.ID, &o.FirstName, &o.LastName, &o.Email, &o.Address, &o.City, &o.PostalCode,
		&o.Paid, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}

	items, err := r.getItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

func (r *repository) getItems(ctx context.Context, orderID uint) ([]OrderItem, error) {
	const q = `
		SELECT oi.id, oi.order_id, oi.product_id, oi.price, oi.quantity, p.name
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items %d: %w", orderID, err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Price, &it.Quantity, &it.Product.Name); err != nil {
			logger.ForOrder(ctx, orderID).Error("failed scanning order item", zap.Error(err))
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.Product.ID = it.ProductID
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *repository) MarkAsPaid(ctx context.Context, orderID uint) (bool, error) {
	const q = `
		UPDATE orders
		SET paid = TRUE, status = $2, updated_at = NOW()
		WHERE id = $1 AND paid = FALSE
	`

	res, err := r.db.ExecContext(ctx, q, orderID, StatusPaid)
	if err != nil {
		return false, fmt.Errorf("mark order %d paid: %w", orderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark order %d paid: %w", orderID, err)
	}

	return n > 0, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uint, status Status) error {
	const q = `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND paid = FALSE
	`

	res, err := r.db.ExecContext(ctx, q, orderID, status)
	if err != nil {
		return fmt.Errorf("update order %d status: %w", orderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order %d status: %w", orderID, err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}

	return nil
}
