// Package testutil — общие моки репозиториев для unit-тестов сервиса.
// Пакет не импортирует saga, matcher и handler, чтобы не было циклов.
package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"example.com/shipforward/pkg/outbox"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/repository"
)

// =============================================================================
// Transactor
// =============================================================================

// Transactor выполняет fn сразу и считает вызовы. Откат не моделируется:
// тесты, которым он важен, проверяют возвращённую ошибку.
type Transactor struct {
	Calls int
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.Calls++
	return fn(ctx)
}

// =============================================================================
// MockOrderRepository
// =============================================================================

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Add(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderRepository) Find(ctx context.Context, filter repository.OrderFilter) (*domain.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, filter repository.OrderFilter, patch repository.StatusPatch) error {
	return m.Called(ctx, filter, patch).Error(0)
}

func (m *MockOrderRepository) MarkItemReceived(ctx context.Context, orderID, itemID string, at time.Time) error {
	return m.Called(ctx, orderID, itemID, at).Error(0)
}

func (m *MockOrderRepository) AddItemPhotos(ctx context.Context, orderID, itemID string, urls []string) error {
	return m.Called(ctx, orderID, itemID, urls).Error(0)
}

func (m *MockOrderRepository) Delete(ctx context.Context, filter repository.OrderFilter) error {
	return m.Called(ctx, filter).Error(0)
}

// =============================================================================
// MockHostRepository
// =============================================================================

type MockHostRepository struct {
	mock.Mock
}

func (m *MockHostRepository) Add(ctx context.Context, host *domain.Host) error {
	return m.Called(ctx, host).Error(0)
}

func (m *MockHostRepository) Find(ctx context.Context, hostID string) (*domain.Host, error) {
	args := m.Called(ctx, hostID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Host), args.Error(1)
}

func (m *MockHostRepository) FindByEmail(ctx context.Context, email string) (*domain.Host, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Host), args.Error(1)
}

func (m *MockHostRepository) SetAvailability(ctx context.Context, hostID string, available bool) error {
	return m.Called(ctx, hostID, available).Error(0)
}

func (m *MockHostRepository) LockAvailableInCountry(ctx context.Context, country string, now time.Time) ([]domain.HostLoad, error) {
	args := m.Called(ctx, country, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.HostLoad), args.Error(1)
}

func (m *MockHostRepository) PauseAtCapacity(ctx context.Context, hostID string) error {
	return m.Called(ctx, hostID).Error(0)
}

func (m *MockHostRepository) ResumeFromCapacity(ctx context.Context, hostID string) error {
	return m.Called(ctx, hostID).Error(0)
}

func (m *MockHostRepository) Reserve(ctx context.Context, r *repository.Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockHostRepository) FindReservation(ctx context.Context, orderID string) (*repository.Reservation, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Reservation), args.Error(1)
}

func (m *MockHostRepository) ExtendReservation(ctx context.Context, orderID string, until time.Time) error {
	return m.Called(ctx, orderID, until).Error(0)
}

func (m *MockHostRepository) ConfirmAssignment(ctx context.Context, orderID, hostID string, now time.Time) error {
	return m.Called(ctx, orderID, hostID, now).Error(0)
}

func (m *MockHostRepository) DeleteReservation(ctx context.Context, orderID string) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *MockHostRepository) DeleteExpiredReservation(ctx context.Context, orderID string, now time.Time) error {
	return m.Called(ctx, orderID, now).Error(0)
}

func (m *MockHostRepository) ExpiredReservations(ctx context.Context, now time.Time, limit int) ([]*repository.Reservation, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Reservation), args.Error(1)
}

// =============================================================================
// MockCustomerRepository
// =============================================================================

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Add(ctx context.Context, customer *domain.Customer) error {
	return m.Called(ctx, customer).Error(0)
}

func (m *MockCustomerRepository) Find(ctx context.Context, customerID string) (*domain.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerRepository) AddOrder(ctx context.Context, customerID, orderID string) error {
	return m.Called(ctx, customerID, orderID).Error(0)
}

func (m *MockCustomerRepository) RemoveOrder(ctx context.Context, customerID, orderID string) error {
	return m.Called(ctx, customerID, orderID).Error(0)
}

// =============================================================================
// MockOutboxRepository
// =============================================================================

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, record *outbox.Outbox) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockOutboxRepository) GetUnprocessed(ctx context.Context, limit int) ([]*outbox.Outbox, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Outbox), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id string, err error) error {
	return m.Called(ctx, id, err).Error(0)
}

func (m *MockOutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// OutboxEvent — matcher для mock.MatchedBy по типу события.
func OutboxEvent(eventType string) any {
	return mock.MatchedBy(func(r *outbox.Outbox) bool { return r.EventType == eventType })
}
