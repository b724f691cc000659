package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/pkg/metrics"
	"example.com/shipforward/services/forwarding/internal/payment"
)

const maxWebhookBody = 64 << 10

// WebhookHandler принимает события платёжного шлюза.
type WebhookHandler struct {
	verifier   WebhookVerifier
	dispatcher WebhookDispatcher
}

func NewWebhookHandler(verifier WebhookVerifier, dispatcher WebhookDispatcher) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, dispatcher: dispatcher}
}

// PaymentCompleted — POST /webhooks/payment-completed.
// Ответ всегда 200: иначе шлюз бесконечно повторяет ядовитое событие.
// Ошибки уходят в лог, метрики алертов и outbox сверки.
func (h *WebhookHandler) PaymentCompleted(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		log.Error().Err(err).Msg("Ошибка чтения тела вебхука")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if len(payload) > maxWebhookBody {
		metrics.WebhookFailuresTotal.WithLabelValues("unknown", "body_too_large").Inc()
		log.Error().
			Int("limit_bytes", maxWebhookBody).
			Int64("content_length", c.Request.ContentLength).
			Msg("Тело вебхука превышает лимит, событие не проверено")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	checkout, err := h.verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrIgnoredEvent):
		metrics.WebhookEventsTotal.WithLabelValues("none", "ignored").Inc()
		log.Debug().Err(err).Msg("Событие шлюза пропущено")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	case errors.Is(err, payment.ErrInvalidSignature):
		metrics.WebhookEventsTotal.WithLabelValues("none", "invalid_signature").Inc()
		log.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("Вебхук с неверной подписью")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	case err != nil:
		metrics.WebhookFailuresTotal.WithLabelValues("unknown", "unrecognized_payload").Inc()
		log.Error().Err(err).Msg("Не удалось разобрать событие шлюза")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	result, err := h.dispatcher.Dispatch(ctx, checkout)
	if err != nil {
		log.Error().Err(err).Str("event_id", checkout.EventID).Msg("Событие оплаты требует ручной сверки")
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "result": string(result)})
}
