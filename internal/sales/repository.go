package sales

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	PaidOrderTotals(ctx context.Context, from, to time.Time) ([]OrderTotal, error)
	MonthlySales(ctx context.Context, limit int) ([]MonthTotal, error)
	Totals(ctx context.Context) (Totals, error)
	StatusDistribution(ctx context.Context) (OrderDistribution, error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
}

type repository struct {
	db       *sql.DB
	timezone string
}

// NewRepository returns the sales store. Monthly buckets use timezone
// (an IANA name such as Asia/Dhaka).
func NewRepository(db *sql.DB, timezone string) Repository {
	if timezone == "" {
		timezone = "UTC"
	}
	return &repository{db: db, timezone: timezone}
}

const paidOrderTotals = `
	SELECT o.id, o.created_at, COALESCE(SUM(oi.price * oi.quantity), 0) AS total
	FROM orders o
	LEFT JOIN order_items oi ON oi.order_id = o.id
	WHERE o.paid = TRUE
`

func (r *repository) PaidOrderTotals(ctx context.Context, from, to time.Time) ([]OrderTotal, error) {
	q := paidOrderTotals + `
	AND o.created_at BETWEEN $1 AND $2
	GROUP BY o.id, o.created_at
	ORDER BY o.created_at ASC, o.id ASC
	`

	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []OrderTotal
	for rows.Next() {
		var t OrderTotal
		if err := rows.Scan(&t.OrderID, &t.CreatedAt, &t.Total); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}

	return totals, rows.Err()
}

func (r *repository) MonthlySales(ctx context.Context, limit int) ([]MonthTotal, error) {
	q := `
	WITH order_totals AS (` + paidOrderTotals + `
		GROUP BY o.id, o.created_at
	)
	SELECT to_char(created_at AT TIME ZONE $1, 'YYYY-MM') AS month,
	       SUM(total) AS total_sales,
	       COUNT(*) AS orders_count
	FROM order_totals
	GROUP BY month
	ORDER BY month DESC
	LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, q, r.timezone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var months []MonthTotal
	for rows.Next() {
		var m MonthTotal
		if err := rows.Scan(&m.Month, &m.Total, &m.Orders); err != nil {
			return nil, err
		}
		months = append(months, m)
	}

	return months, rows.Err()
}

func (r *repository) Totals(ctx context.Context) (Totals, error) {
	q := `
	WITH order_totals AS (` + paidOrderTotals + `
		GROUP BY o.id, o.created_at
	)
	SELECT COALESCE(SUM(total), 0), COUNT(*)
	FROM order_totals
	`

	var t Totals
	err := r.db.QueryRowContext(ctx, q).Scan(&t.Revenue, &t.Orders)
	return t, err
}

func (r *repository) StatusDistribution(ctx context.Context) (OrderDistribution, error) {
	const q = `
	SELECT COUNT(*) FILTER (WHERE paid = TRUE),
	       COUNT(*) FILTER (WHERE status = 'pending'),
	       COUNT(*) FILTER (WHERE status = 'canceled')
	FROM orders
	`

	var d OrderDistribution
	err := r.db.QueryRowContext(ctx, q).Scan(&d.Paid, &d.Pending, &d.Canceled)
	return d, err
}

func (r *repository) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	const q = `
	SELECT p.name, SUM(oi.quantity) AS quantity
	FROM order_items oi
	JOIN products p ON p.id = oi.product_id
	GROUP BY p.name
	ORDER BY quantity DESC, p.name ASC
	LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []TopProduct
	for rows.Next() {
		var p TopProduct
		if err := rows.Scan(&p.Product, &p.Quantity); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return products, rows.Err()
}
