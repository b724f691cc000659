package saga

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/testutil"
)

type (
	MockOrderRepository    = testutil.MockOrderRepository
	MockHostRepository     = testutil.MockHostRepository
	MockCustomerRepository = testutil.MockCustomerRepository
	MockOutboxRepository   = testutil.MockOutboxRepository
)

// =============================================================================
// MockMatcher
// =============================================================================

type MockMatcher struct {
	mock.Mock
}

func (m *MockMatcher) MatchHost(ctx context.Context, order *domain.Order, until time.Time) (*domain.Host, error) {
	args := m.Called(ctx, order, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Host), args.Error(1)
}

func (m *MockMatcher) AssignHost(ctx context.Context, order *domain.Order, hostID string) (string, error) {
	args := m.Called(ctx, order, hostID)
	return args.String(0), args.Error(1)
}

func (m *MockMatcher) Release(ctx context.Context, orderID string) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *MockMatcher) ReleaseExpired(ctx context.Context, orderID string, now time.Time) (bool, error) {
	args := m.Called(ctx, orderID, now)
	return args.Bool(0), args.Error(1)
}

// =============================================================================
// MockGateway
// =============================================================================

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

// staticCoverage — зона обслуживания из одного флага.
type staticCoverage bool

func (c staticCoverage) CheckServiceAvailability(string, string) bool { return bool(c) }

// =============================================================================
// Фикстура сервиса
// =============================================================================

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	orders    *MockOrderRepository
	hosts     *MockHostRepository
	customers *MockCustomerRepository
	outbox    *MockOutboxRepository
	matcher   *MockMatcher
	gateway   *MockGateway
	tx        *testutil.Transactor
	svc       *Service
}

func newFixture(covered bool) *fixture {
	f := &fixture{
		orders:    new(MockOrderRepository),
		hosts:     new(MockHostRepository),
		customers: new(MockCustomerRepository),
		outbox:    new(MockOutboxRepository),
		matcher:   new(MockMatcher),
		gateway:   new(MockGateway),
		tx:        &testutil.Transactor{},
	}
	f.svc = NewService(Deps{
		Orders:    f.orders,
		Hosts:     f.hosts,
		Customers: f.customers,
		Outbox:    f.outbox,
		Tx:        f.tx,
		Matcher:   f.matcher,
		Coverage:  staticCoverage(covered),
		Gateway:   f.gateway,
		Fees:      FixedServiceFee{Fee: domain.Cost{Currency: "USD", Amount: 12}},
	}, Config{
		SuccessURL:       "https://app.example.com/orders/success",
		CancelURL:        "https://app.example.com/orders/cancel",
		CheckoutTTL:      35 * time.Minute,
		ReservationGrace: 10 * time.Minute,
	})
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func draftOrder() *domain.Order {
	return &domain.Order{
		ID:            "order-1",
		CustomerID:    "cust-1",
		Status:        domain.OrderStatusDrafted,
		OriginCountry: "GBR",
		Destination:   domain.Address{Line1: "Main st 1", City: "Berlin", Country: "DEU"},
		Items:         []domain.Item{{ID: "item-1", Title: "Кроссовки", StoreName: "Store", Weight: 900}},
	}
}

func strPtr(s string) *string { return &s }
