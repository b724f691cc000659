package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/shipforward/pkg/kafka"
	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/pkg/metrics"
	"example.com/shipforward/services/forwarding/internal/domain"
)

// CustomerFinder и HostFinder — поиск адресата письма.
type CustomerFinder interface {
	Find(ctx context.Context, customerID string) (*domain.Customer, error)
}

type HostFinder interface {
	Find(ctx context.Context, hostID string) (*domain.Host, error)
}

type recipient int

const (
	toCustomer recipient = iota
	toHost
)

type letter struct {
	to      recipient
	subject string
	body    string
}

// EventConsumer превращает события заказа из Kafka в письма.
type EventConsumer struct {
	notifier  Notifier
	customers CustomerFinder
	hosts     HostFinder
}

func NewEventConsumer(notifier Notifier, customers CustomerFinder, hosts HostFinder) *EventConsumer {
	return &EventConsumer{notifier: notifier, customers: customers, hosts: hosts}
}

// Handle — kafka.MessageHandler. Ошибку возвращает только нечитаемое сообщение (уходит в DLQ);
// неудачная отправка письма логируется, offset коммитится.
func (c *EventConsumer) Handle(ctx context.Context, msg *kafka.Message) error {
	eventType := msg.Headers[kafka.HeaderEventType]

	var ev domain.OrderEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("некорректное событие %s: %w", eventType, err)
	}

	letters := lettersFor(eventType, ev)
	if len(letters) == 0 {
		return nil
	}

	log := logger.FromContext(ctx)
	for _, l := range letters {
		email, err := c.resolve(ctx, l.to, ev)
		if err != nil {
			metrics.NotificationsTotal.WithLabelValues(eventType, "skipped").Inc()
			log.Warn().Err(err).Str("event_type", eventType).Str("order_id", ev.OrderID).Msg("Адресат письма не найден")
			continue
		}
		if err := c.notifier.SendEmail(ctx, email, l.subject, l.body); err != nil {
			metrics.NotificationsTotal.WithLabelValues(eventType, "failed").Inc()
			log.Error().Err(err).Str("event_type", eventType).Str("order_id", ev.OrderID).Msg("Ошибка отправки письма")
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(eventType, "sent").Inc()
	}
	return nil
}

func (c *EventConsumer) resolve(ctx context.Context, to recipient, ev domain.OrderEvent) (string, error) {
	switch to {
	case toHost:
		if ev.HostID == "" {
			return "", domain.ErrHostNotFound
		}
		h, err := c.hosts.Find(ctx, ev.HostID)
		if err != nil {
			return "", err
		}
		return h.Email, nil
	default:
		cu, err := c.customers.Find(ctx, ev.CustomerID)
		if err != nil {
			return "", err
		}
		return cu.Email, nil
	}
}

func lettersFor(eventType string, ev domain.OrderEvent) []letter {
	switch eventType {
	case domain.EventOrderConfirmed:
		return []letter{
			{toCustomer, "Your Locly order is confirmed", fmt.Sprintf(
				"<p>Your order <b>%s</b> has been matched with a host. Send your packages to the host's address shown in your order.</p>", ev.OrderID)},
			{toHost, "New Locly order", fmt.Sprintf(
				"<p>Order <b>%s</b> has been assigned to you. You will receive the customer's packages soon.</p>", ev.OrderID)},
		}
	case domain.EventOrderRejected:
		return []letter{
			{toCustomer, "We could not process your Locly order", fmt.Sprintf(
				"<p>Unfortunately order <b>%s</b> was rejected (%s).</p>", ev.OrderID, ev.Reason)},
		}
	case domain.EventOrderFinalized:
		cost := ""
		if ev.Cost != nil {
			cost = fmt.Sprintf(" Shipment cost: %.2f %s.", ev.Cost.Amount, ev.Cost.Currency)
		}
		return []letter{
			{toCustomer, "Your Locly order is ready to ship", fmt.Sprintf(
				"<p>All packages of order <b>%s</b> have arrived.%s Please pay for the shipment to continue.</p>", ev.OrderID, cost)},
		}
	case domain.EventOrderPaid:
		return []letter{
			{toCustomer, "Locly shipment paid", fmt.Sprintf(
				"<p>Shipment of order <b>%s</b> has been paid.</p>", ev.OrderID)},
			{toHost, "Locly shipment paid, please ship", fmt.Sprintf(
				"<p>The customer has paid for the shipment of order <b>%s</b>. Please send the parcel.</p>", ev.OrderID)},
		}
	default:
		return nil
	}
}
