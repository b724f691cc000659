package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"example.com/shipforward/services/forwarding/internal/domain"
)

var (
	// ErrInvalidSignature — подпись Stripe-Signature не сошлась или устарела.
	ErrInvalidSignature = errors.New("неверная подпись вебхука")

	// ErrIgnoredEvent — событие другого типа, обработка не нужна.
	ErrIgnoredEvent = errors.New("тип события не обрабатывается")
)

// WebhookVerifier проверяет подпись и достаёт из события завершённый checkout.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Verify возвращает ErrInvalidSignature при неверной подписи и ErrIgnoredEvent
// для событий, кроме checkout.session.completed. Версия API аккаунта может
// отличаться от версии SDK: из события читаются только id и metadata.
func (v *WebhookVerifier) Verify(payload []byte, signatureHeader string) (*domain.CompletedCheckout, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: событие %s без data", domain.ErrUnrecognizedPayload, event.ID)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: data.object события %s: %v", domain.ErrUnrecognizedPayload, event.ID, err)
	}

	return &domain.CompletedCheckout{
		EventID:   event.ID,
		SessionID: sess.ID,
		Metadata:  sess.Metadata,
	}, nil
}
