package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"example.com/shipforward/services/forwarding/internal/domain"
)

// newTestGateway направляет SDK на httptest-сервер вместо api.stripe.com.
func newTestGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGateway("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestStripeGateway_CreateCheckoutSession(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 35, 0, 0, time.UTC)

	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "1999", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "gbp", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "Order Shipment Fee", r.PostForm.Get("line_items[0][price_data][product_data][name]"))
		assert.Equal(t, "1", r.PostForm.Get("line_items[0][quantity]"))
		assert.Equal(t, "Shipment", r.PostForm.Get("metadata[feeType]"))
		assert.Equal(t, "order-1", r.PostForm.Get("metadata[orderId]"))
		assert.Equal(t, "1772368500", r.PostForm.Get("expires_at"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	})

	sess, err := gw.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{
		LineItem:   domain.LineItem{Description: "Order Shipment Fee", Price: domain.Cost{Currency: "GBP", Amount: 19.99}},
		Metadata:   domain.ShipmentFeeMetadata{OrderID: "order-1"},
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/cancel",
		ExpiresAt:  expires,
	})

	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", sess.RedirectURL)
}

func TestStripeGateway_Error(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid currency"}}`))
	})

	_, err := gw.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{
		LineItem: domain.LineItem{Description: "x", Price: domain.Cost{Currency: "XXX", Amount: 1}},
		Metadata: domain.ServiceFeeMetadata{OrderID: "order-1", HostID: "host-1"},
	})

	assert.ErrorIs(t, err, domain.ErrPaymentGateway)
}

func TestIsGatewayFailure(t *testing.T) {
	assert.False(t, isGatewayFailure(&stripe.Error{HTTPStatusCode: http.StatusBadRequest}))
	assert.True(t, isGatewayFailure(&stripe.Error{HTTPStatusCode: http.StatusBadGateway}))
	assert.True(t, isGatewayFailure(&stripe.Error{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.True(t, isGatewayFailure(context.DeadlineExceeded))
}
