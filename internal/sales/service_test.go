package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) PaidOrderTotals(ctx context.Context, from, to time.Time) ([]OrderTotal, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]OrderTotal), args.Error(1)
}

func (m *MockRepository) MonthlySales(ctx context.Context, limit int) ([]MonthTotal, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]MonthTotal), args.Error(1)
}

func (m *MockRepository) Totals(ctx context.Context) (Totals, error) {
	args := m.Called(ctx)
	return args.Get(0).(Totals), args.Error(1)
}

func (m *MockRepository) StatusDistribution(ctx context.Context) (OrderDistribution, error) {
	args := m.Called(ctx)
	return args.Get(0).(OrderDistribution), args.Error(1)
}

func (m *MockRepository) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]TopProduct), args.Error(1)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(repo Repository, now time.Time) *service {
	dhaka, _ := time.LoadLocation("Asia/Dhaka")
	svc := NewService(repo, dhaka).(*service)
	svc.now = func() time.Time { return now }
	return svc
}

func TestGroupDaily(t *testing.T) {
	t.Run("TwoOrdersSameDay", func(t *testing.T) {
		orders := []OrderTotal{
			{OrderID: 1, CreatedAt: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC), Total: dec("100")},
			{OrderID: 2, CreatedAt: time.Date(2024, 1, 5, 15, 0, 0, 0, time.UTC), Total: dec("150")},
		}

		daily := GroupDaily(orders, time.UTC)
		require.Len(t, daily, 1)
		assert.Equal(t, DailySales{Date: "2024-01-05", TotalSales: 250, OrdersCount: 2}, daily[0])
	})

	t.Run("ChronologicalBuckets", func(t *testing.T) {
		orders := []OrderTotal{
			{CreatedAt: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), Total: dec("10.10")},
			{CreatedAt: time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC), Total: dec("20.20")},
			{CreatedAt: time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC), Total: dec("0.10")},
		}

		daily := GroupDaily(orders, time.UTC)
		require.Len(t, daily, 2)
		assert.Equal(t, "2024-01-03", daily[0].Date)
		assert.Equal(t, "2024-01-04", daily[1].Date)
		assert.Equal(t, 20.30, daily[1].TotalSales)
	})

	t.Run("UsesLocation", func(t *testing.T) {
		dhaka, err := time.LoadLocation("Asia/Dhaka")
		require.NoError(t, err)

		// 20:00 UTC is 02:00 next day in Dhaka
		orders := []OrderTotal{{CreatedAt: time.Date(2024, 1, 5, 20, 0, 0, 0, time.UTC), Total: dec("1")}}
		assert.Equal(t, "2024-01-06", GroupDaily(orders, dhaka)[0].Date)
		assert.Equal(t, "2024-01-05", GroupDaily(orders, time.UTC)[0].Date)
	})

	t.Run("Empty", func(t *testing.T) {
		daily := GroupDaily(nil, time.UTC)
		assert.NotNil(t, daily)
		assert.Empty(t, daily)
	})
}

func TestService_GetSalesMetrics(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, now)

		repo.On("PaidOrderTotals", ctx, now.Add(-30*24*time.Hour), now).Return([]OrderTotal{
			{OrderID: 1, CreatedAt: time.Date(2024, 1, 5, 3, 0, 0, 0, time.UTC), Total: dec("100")},
			{OrderID: 2, CreatedAt: time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC), Total: dec("150")},
		}, nil)
		repo.On("MonthlySales", ctx, 12).Return([]MonthTotal{
			{Month: "2023-12", Total: dec("80"), Orders: 1},
			{Month: "2024-01", Total: dec("250"), Orders: 2},
		}, nil)
		repo.On("Totals", ctx).Return(Totals{Revenue: dec("330"), Orders: 3}, nil)
		repo.On("StatusDistribution", ctx).Return(OrderDistribution{Paid: 3, Pending: 2, Canceled: 1}, nil)
		repo.On("TopProducts", ctx, 5).Return([]TopProduct{{Product: "Tea", Quantity: 7}}, nil)

		m, err := svc.GetSalesMetrics(ctx, 30)
		require.NoError(t, err)

		assert.Equal(t, []DailySales{{Date: "2024-01-05", TotalSales: 250, OrdersCount: 2}}, m.DailySales)
		require.Len(t, m.MonthlySales, 2)
		assert.Equal(t, "2024-01", m.MonthlySales[0].Month)
		assert.Equal(t, TotalMetrics{TotalRevenue: 330, TotalOrders: 3, AvgOrderValue: 110}, m.TotalMetrics)
		assert.Equal(t, OrderDistribution{Paid: 3, Pending: 2, Canceled: 1}, m.OrderDistribution)
		assert.Equal(t, []TopProduct{{Product: "Tea", Quantity: 7}}, m.TopProducts)
		repo.AssertExpectations(t)
	})

	t.Run("DefaultWindow", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, now)

		repo.On("PaidOrderTotals", ctx, now.Add(-30*24*time.Hour), now).Return([]OrderTotal{}, nil)
		repo.On("MonthlySales", ctx, 12).Return([]MonthTotal{}, nil)
		repo.On("Totals", ctx).Return(Totals{}, nil)
		repo.On("StatusDistribution", ctx).Return(OrderDistribution{}, nil)
		repo.On("TopProducts", ctx, 5).Return([]TopProduct{}, nil)

		m, err := svc.GetSalesMetrics(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 0.0, m.TotalMetrics.AvgOrderValue, "no division by zero")
		assert.Empty(t, m.DailySales)
		assert.Empty(t, m.TopProducts)
		repo.AssertExpectations(t)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, now)

		repo.On("PaidOrderTotals", ctx, mock.Anything, mock.Anything).Return([]OrderTotal{}, nil)
		repo.On("MonthlySales", ctx, 12).Return([]MonthTotal(nil), errors.New("db error"))

		_, err := svc.GetSalesMetrics(ctx, 7)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "monthly sales")
	})
}

func TestMonthlySalesOrdering(t *testing.T) {
	var months []MonthTotal
	for m := 1; m <= 14; m++ {
		months = append(months, MonthTotal{Month: time.Date(2023, time.Month(m), 1, 0, 0, 0, 0, time.UTC).Format("2006-01"), Orders: 1})
	}

	out := monthlySales(months)
	require.Len(t, out, 12)
	assert.Equal(t, "2024-02", out[0].Month)
	for i := 1; i < len(out); i++ {
		assert.Greater(t, out[i-1].Month, out[i].Month)
	}
}

func TestTopProductsOrdering(t *testing.T) {
	out := topProducts([]TopProduct{
		{Product: "Mug", Quantity: 3},
		{Product: "Tea", Quantity: 9},
		{Product: "Cup", Quantity: 3},
		{Product: "Jar", Quantity: 1},
		{Product: "Pot", Quantity: 5},
		{Product: "Pan", Quantity: 2},
	})

	assert.Equal(t, []TopProduct{
		{Product: "Tea", Quantity: 9},
		{Product: "Pot", Quantity: 5},
		{Product: "Cup", Quantity: 3},
		{Product: "Mug", Quantity: 3},
		{Product: "Pan", Quantity: 2},
	}, out)
}

func TestTotalMetrics(t *testing.T) {
	m := totalMetrics(Totals{Revenue: dec("100"), Orders: 3})
	assert.InDelta(t, 100.0/3.0, m.AvgOrderValue, 1e-9)

	assert.Equal(t, 0.0, totalMetrics(Totals{}).AvgOrderValue)
}
