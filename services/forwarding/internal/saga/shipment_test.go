package saga

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/repository"
	"example.com/shipforward/services/forwarding/internal/testutil"
)

func finalizedOrder() *domain.Order {
	o := draftOrder()
	o.Status = domain.OrderStatusFinalized
	o.HostID = strPtr("host-1")
	o.TotalWeight = 1200
	o.FinalShipmentCost = &domain.Cost{Currency: "GBP", Amount: 19.99}
	return o
}

// =============================================================================
// PayShipment
// =============================================================================

func TestService_PayShipment_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(true)
	order := finalizedOrder()

	f.orders.On("Find", ctx, repository.OrderFilter{ID: "order-1", CustomerID: "cust-1"}).Return(order, nil)
	f.customers.On("Find", ctx, "cust-1").Return(&domain.Customer{ID: "cust-1", Email: "buyer@example.com"}, nil)
	f.gateway.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(req domain.CheckoutRequest) bool {
		return req.LineItem.Description == shipmentFeeDescription &&
			req.LineItem.Price == domain.Cost{Currency: "GBP", Amount: 19.99} &&
			req.Metadata == domain.ShipmentFeeMetadata{OrderID: "order-1"} &&
			req.ExpiresAt.Equal(fixedNow.Add(35*time.Minute))
	})).Return(&domain.CheckoutSession{ID: "cs_2"}, nil)

	sess, err := f.svc.PayShipment(ctx, "order-1", "cust-1")

	require.NoError(t, err)
	assert.Equal(t, "cs_2", sess.ID)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	f.gateway.AssertExpectations(t)
}

func TestService_PayShipment_Errors(t *testing.T) {
	tests := []struct {
		name    string
		order   func() *domain.Order
		wantErr error
	}{
		{
			name:    "заказ ещё не финализирован",
			order:   func() *domain.Order { o := draftOrder(); o.Status = domain.OrderStatusConfirmed; return o },
			wantErr: domain.ErrOrderStateConflict,
		},
		{
			name:    "доставка уже оплачена",
			order:   func() *domain.Order { o := finalizedOrder(); o.Status = domain.OrderStatusPaid; return o },
			wantErr: domain.ErrOrderStateConflict,
		},
		{
			name:    "нет стоимости доставки",
			order:   func() *domain.Order { o := finalizedOrder(); o.FinalShipmentCost = nil; return o },
			wantErr: domain.ErrOrderStateConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(true)
			f.orders.On("Find", ctx, mock.Anything).Return(tt.order(), nil)

			_, err := f.svc.PayShipment(ctx, "order-1", "cust-1")

			assert.ErrorIs(t, err, tt.wantErr)
			f.gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
		})
	}
}

func TestService_PayShipment_GatewayError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(true)

	f.orders.On("Find", ctx, mock.Anything).Return(finalizedOrder(), nil)
	f.customers.On("Find", ctx, "cust-1").Return(nil, domain.ErrCustomerNotFound)
	f.gateway.On("CreateCheckoutSession", ctx, mock.Anything).Return(nil, domain.ErrPaymentGateway)

	_, err := f.svc.PayShipment(ctx, "order-1", "cust-1")

	assert.ErrorIs(t, err, domain.ErrPaymentGateway)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

// =============================================================================
// HandleShipmentFeePaid
// =============================================================================

func TestService_HandleShipmentFeePaid_Pays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(true)

	f.orders.On("Find", ctx, repository.OrderFilter{ID: "order-1"}).Return(finalizedOrder(), nil)
	f.orders.On("UpdateStatus", mock.Anything,
		repository.OrderFilter{ID: "order-1", Status: domain.OrderStatusFinalized},
		repository.StatusPatch{Status: domain.OrderStatusPaid, ShipmentFeeSessionID: strPtr("cs_ship_1")}).Return(nil)
	f.outbox.On("Create", mock.Anything, testutil.OutboxEvent(domain.EventOrderPaid)).Return(nil)

	outcome, err := f.svc.HandleShipmentFeePaid(ctx, "cs_ship_1", domain.ShipmentFeeMetadata{OrderID: "order-1"})

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	f.orders.AssertExpectations(t)
	f.outbox.AssertExpectations(t)
}

func TestService_HandleShipmentFeePaid_Noop(t *testing.T) {
	tests := []struct {
		name   string
		status domain.OrderStatus
	}{
		{"повторное событие", domain.OrderStatusPaid},
		{"заказ ещё подтверждён", domain.OrderStatusConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(true)
			order := finalizedOrder()
			order.Status = tt.status
			if tt.status == domain.OrderStatusPaid {
				order.ShipmentFeeSessionID = strPtr("cs_ship_1")
			}
			f.orders.On("Find", ctx, mock.Anything).Return(order, nil)

			outcome, err := f.svc.HandleShipmentFeePaid(ctx, "cs_ship_1", domain.ShipmentFeeMetadata{OrderID: "order-1"})

			require.NoError(t, err)
			assert.Equal(t, OutcomeNoop, outcome)
			f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_HandleShipmentFeePaid_SecondSessionIsDuplicatePayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(true)
	paid := finalizedOrder()
	paid.Status = domain.OrderStatusPaid
	paid.ShipmentFeeSessionID = strPtr("cs_ship_1")
	f.orders.On("Find", ctx, mock.Anything).Return(paid, nil)

	_, err := f.svc.HandleShipmentFeePaid(ctx, "cs_ship_2", domain.ShipmentFeeMetadata{OrderID: "order-1"})

	assert.ErrorIs(t, err, domain.ErrDuplicatePayment)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_HandleShipmentFeePaid_LostRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(true)

	f.orders.On("Find", ctx, mock.Anything).Return(finalizedOrder(), nil)
	f.orders.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrOrderStateConflict)

	outcome, err := f.svc.HandleShipmentFeePaid(ctx, "cs_ship_1", domain.ShipmentFeeMetadata{OrderID: "order-1"})

	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome)
	f.outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
