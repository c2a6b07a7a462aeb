package webhook

import (
	"context"

	"shopbd-be/internal/events"
	"shopbd-be/internal/order"
	"shopbd-be/internal/payment"

	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) GetByID(ctx context.Context, orderID uint) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) MarkAsPaid(ctx context.Context, orderID uint) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, orderID uint, status order.Status) error {
	return m.Called(ctx, orderID, status).Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) InitiatePayment(ctx context.Context, baseURL string, o *order.Order) (map[string]interface{}, error) {
	args := m.Called(ctx, baseURL, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *MockGateway) VerifyPayment(ctx context.Context, valID string, expectedAmount float64) bool {
	return m.Called(ctx, valID, expectedAmount).Bool(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) SaveNotification(ctx context.Context, n *payment.Notification) (int64, bool, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockPaymentRepository) MarkNotificationProcessed(ctx context.Context, id int64, outcome string) error {
	return m.Called(ctx, id, outcome).Error(0)
}

func (m *MockPaymentRepository) MarkNotificationFailed(ctx context.Context, id int64, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendOrderConfirmation(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderPaid(ctx context.Context, e events.OrderPaidEvent) error {
	return m.Called(ctx, e).Error(0)
}
