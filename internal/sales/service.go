package sales

import (
	"context"
	"fmt"
	"sort"
	"time"

	"shopbd-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultDays     = 30
	monthsLimit     = 12
	topProductLimit = 5
)

type Service interface {
	GetSalesMetrics(ctx context.Context, days int) (*Metrics, error)
}

type service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

// NewService buckets daily sales by calendar date in loc.
func NewService(repo Repository, loc *time.Location) Service {
	if loc == nil {
		loc = time.UTC
	}
	return &service{repo: repo, loc: loc, now: time.Now}
}

func (s *service) GetSalesMetrics(ctx context.Context, days int) (*Metrics, error) {
	if days <= 0 {
		days = DefaultDays
	}
	log := logger.FromCtx(ctx).With(zap.Int("days", days))

	end := s.now()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)

	orders, err := s.repo.PaidOrderTotals(ctx, start, end)
	if err != nil {
		log.Error("failed to load daily sales", zap.Error(err))
		return nil, fmt.Errorf("daily sales: %w", err)
	}

	months, err := s.repo.MonthlySales(ctx, monthsLimit)
	if err != nil {
		log.Error("failed to load monthly sales", zap.Error(err))
		return nil, fmt.Errorf("monthly sales: %w", err)
	}

	totals, err := s.repo.Totals(ctx)
	if err != nil {
		log.Error("failed to load totals", zap.Error(err))
		return nil, fmt.Errorf("total metrics: %w", err)
	}

	dist, err := s.repo.StatusDistribution(ctx)
	if err != nil {
		log.Error("failed to load order distribution", zap.Error(err))
		return nil, fmt.Errorf("order distribution: %w", err)
	}

	top, err := s.repo.TopProducts(ctx, topProductLimit)
	if err != nil {
		log.Error("failed to load top products", zap.Error(err))
		return nil, fmt.Errorf("top products: %w", err)
	}

	return &Metrics{
		DailySales:        GroupDaily(orders, s.loc),
		MonthlySales:      monthlySales(months),
		TotalMetrics:      totalMetrics(totals),
		OrderDistribution: dist,
		TopProducts:       topProducts(top),
	}, nil
}

// GroupDaily buckets orders by calendar date in loc. Buckets keep the order
// in which their date is first seen, so chronological input gives
// chronological output.
func GroupDaily(orders []OrderTotal, loc *time.Location) []DailySales {
	type bucket struct {
		date   string
		total  decimal.Decimal
		orders int
	}

	index := make(map[string]int)
	var buckets []bucket

	for _, o := range orders {
		date := o.CreatedAt.In(loc).Format("2006-01-02")
		i, ok := index[date]
		if !ok {
			i = len(buckets)
			index[date] = i
			buckets = append(buckets, bucket{date: date})
		}
		buckets[i].total = buckets[i].total.Add(o.Total)
		buckets[i].orders++
	}

	daily := make([]DailySales, 0, len(buckets))
	for _, b := range buckets {
		daily = append(daily, DailySales{
			Date:        b.date,
			TotalSales:  b.total.InexactFloat64(),
			OrdersCount: b.orders,
		})
	}
	return daily
}

func monthlySales(months []MonthTotal) []MonthlySales {
	sort.SliceStable(months, func(i, j int) bool { return months[i].Month > months[j].Month })
	if len(months) > monthsLimit {
		months = months[:monthsLimit]
	}

	out := make([]MonthlySales, 0, len(months))
	for _, m := range months {
		out = append(out, MonthlySales{
			Month:       m.Month,
			TotalSales:  m.Total.InexactFloat64(),
			OrdersCount: m.Orders,
		})
	}
	return out
}

func totalMetrics(t Totals) TotalMetrics {
	m := TotalMetrics{
		TotalRevenue: t.Revenue.InexactFloat64(),
		TotalOrders:  t.Orders,
	}
	if t.Orders > 0 {
		m.AvgOrderValue = t.Revenue.Div(decimal.NewFromInt(int64(t.Orders))).InexactFloat64()
	}
	return m
}

func topProducts(products []TopProduct) []TopProduct {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Quantity != products[j].Quantity {
			return products[i].Quantity > products[j].Quantity
		}
		return products[i].Product < products[j].Product
	})
	if len(products) > topProductLimit {
		products = products[:topProductLimit]
	}
	if products == nil {
		products = []TopProduct{}
	}
	return products
}
