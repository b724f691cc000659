package domain

import "time"

// Типы доменных событий. Пишутся в outbox вместе с изменением заказа.
const (
	EventOrderRejected  = "order.rejected"
	EventOrderConfirmed = "order.confirmed"
	EventOrderFinalized = "order.finalized"
	EventOrderPaid      = "order.paid"

	// EventOrderReconciliation — сервисный сбор оплачен, но назначить хоста не удалось.
	EventOrderReconciliation = "order.reconciliation_required"
	// EventPaymentReconciliation — оплаченное событие шлюза не обработано.
	EventPaymentReconciliation = "payment.reconciliation_required"
)

// OrderEvent — payload событий заказа в Kafka.
type OrderEvent struct {
	OrderID    string      `json:"orderId"`
	CustomerID string      `json:"customerId"`
	HostID     string      `json:"hostId,omitempty"`
	Status     OrderStatus `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	Cost       *Cost       `json:"cost,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// ReconciliationEvent — payload для ручной сверки оплаты.
type ReconciliationEvent struct {
	EventID    string            `json:"eventId,omitempty"`
	SessionID  string            `json:"sessionId,omitempty"`
	OrderID    string            `json:"orderId,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Reason     string            `json:"reason"`
	OccurredAt time.Time         `json:"occurredAt"`
}
