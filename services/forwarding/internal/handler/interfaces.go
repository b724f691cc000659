// Package handler — HTTP API сервиса пересылки на gin.
package handler

import (
	"context"

	"example.com/shipforward/services/forwarding/internal/auth"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/saga"
	"example.com/shipforward/services/forwarding/internal/webhook"
)

// OrderService — сценарии покупателя (saga.Service).
type OrderService interface {
	CreateDraft(ctx context.Context, customerID string, in saga.DraftInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID, customerID string) (*domain.Order, error)
	DeleteDraft(ctx context.Context, orderID, customerID string) error
	Confirm(ctx context.Context, orderID, customerID string) (*domain.CheckoutSession, error)
	PayShipment(ctx context.Context, orderID, customerID string) (*domain.CheckoutSession, error)
}

// HostService — сценарии хоста (saga.Service).
type HostService interface {
	GetHostOrder(ctx context.Context, orderID, hostID string) (*domain.Order, error)
	SetAvailability(ctx context.Context, hostID string, available bool) error
	ReceiveItem(ctx context.Context, hostID, orderID, itemID string) error
	AddItemPhotos(ctx context.Context, hostID, orderID, itemID string, urls []string) error
	SubmitShipmentInfo(ctx context.Context, hostID, orderID string, info domain.ShipmentInfo) error
}

// AuthService — вход по ссылке (auth.Service).
type AuthService interface {
	RequestCustomerAuth(ctx context.Context, email string) error
	RequestHostAuth(ctx context.Context, email string) error
	Verify(ctx context.Context, verificationToken string) (*auth.Session, error)
	Logout(ctx context.Context, sessionToken string) error
}

// WebhookVerifier — проверка подписи шлюза (payment.WebhookVerifier).
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) (*domain.CompletedCheckout, error)
}

// WebhookDispatcher — webhook.Dispatcher.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, checkout *domain.CompletedCheckout) (webhook.Result, error)
}
