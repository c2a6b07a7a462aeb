package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

type DailySales struct {
	Date        string  `json:"date"`
	TotalSales  float64 `json:"total_sales"`
	OrdersCount int     `json:"orders_count"`
}

type MonthlySales struct {
	Month       string  `json:"month"`
	TotalSales  float64 `json:"total_sales"`
	OrdersCount int     `json:"orders_count"`
}

type TotalMetrics struct {
	TotalRevenue  float64 `json:"total_revenue"`
	TotalOrders   int     `json:"total_orders"`
	AvgOrderValue float64 `json:"avg_order_value"`
}

// OrderDistribution holds independent counts; an order may fall in more
// than one bucket (for example paid with status still pending).
type OrderDistribution struct {
	Paid     int `json:"paid"`
	Pending  int `json:"pending"`
	Canceled int `json:"canceled"`
}

type TopProduct struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type Metrics struct {
	DailySales        []DailySales      `json:"daily_sales"`
	MonthlySales      []MonthlySales    `json:"monthly_sales"`
	TotalMetrics      TotalMetrics      `json:"total_metrics"`
	OrderDistribution OrderDistribution `json:"order_distribution"`
	TopProducts       []TopProduct      `json:"top_products"`
}

// OrderTotal is one paid order with its summed line costs.
type OrderTotal struct {
	OrderID   uint
	CreatedAt time.Time
	Total     decimal.Decimal
}

// MonthTotal is a monthly bucket as aggregated by the store.
type MonthTotal struct {
	Month  string
	Total  decimal.Decimal
	Orders int
}

// Totals is revenue and count over all paid orders.
type Totals struct {
	Revenue decimal.Decimal
	Orders  int
}
