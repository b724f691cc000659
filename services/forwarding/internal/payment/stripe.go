// Package payment — адаптер Stripe Checkout: создание сессий оплаты
// и проверка подписи входящих вебхуков.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"example.com/shipforward/pkg/circuitbreaker"
	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/pkg/metrics"
	"example.com/shipforward/services/forwarding/internal/domain"
)

// StripeGateway создаёт checkout-сессии через Stripe API.
type StripeGateway struct {
	api     *client.API
	breaker *circuitbreaker.Breaker
}

// NewStripeGateway: backends == nil — боевые адреса Stripe.
func NewStripeGateway(secretKey string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{
		api:     client.New(secretKey, backends),
		breaker: circuitbreaker.New("stripe", isGatewayFailure),
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	feeType := strings.ToLower(string(req.Metadata.FeeType()))
	amount := req.LineItem.Price.MinorUnits()

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(req.LineItem.Price.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.LineItem.Description),
				},
				UnitAmount: stripe.Int64(amount),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}
	for k, v := range req.Metadata.ToMap() {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sess, err := circuitbreaker.Execute(g.breaker, func() (*stripe.CheckoutSession, error) {
		return g.api.CheckoutSessions.New(params)
	})
	if err != nil {
		metrics.CheckoutSessionsTotal.WithLabelValues(feeType, "gateway_error").Inc()
		log := logger.FromContext(ctx)
		log.Error().Err(err).
			Str("fee_type", feeType).
			Int64("amount", amount).
			Msg("Stripe не создал checkout-сессию")
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentGateway, err)
	}

	metrics.CheckoutSessionsTotal.WithLabelValues(feeType, "created").Inc()
	return &domain.CheckoutSession{ID: sess.ID, RedirectURL: sess.URL}, nil
}

// isGatewayFailure: отказ в запросе (4xx) не открывает breaker, сбой Stripe или сети — открывает.
func isGatewayFailure(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return true
}
