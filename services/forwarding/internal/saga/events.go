package saga

import (
	"context"
	"fmt"

	"example.com/shipforward/pkg/kafka"
	"example.com/shipforward/pkg/metrics"
	"example.com/shipforward/pkg/outbox"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/repository"
)

const aggregateOrder = "order"

// emit пишет событие заказа в outbox. Вызывается внутри транзакции смены статуса.
func (s *Service) emit(ctx context.Context, eventType string, ev domain.OrderEvent) error {
	ev.OccurredAt = s.now().UTC()

	rec, err := outbox.NewRecord(ctx, aggregateOrder, ev.OrderID, eventType, kafka.TopicOrderEvents, ev)
	if err != nil {
		return err
	}
	if err := s.outbox.Create(ctx, rec); err != nil {
		return fmt.Errorf("ошибка записи события %s: %w", eventType, err)
	}
	return nil
}

// transition — CAS смены статуса и событие в одной транзакции.
func (s *Service) transition(ctx context.Context, order *domain.Order, patch repository.StatusPatch, eventType string, ev domain.OrderEvent) error {
	if !order.Status.CanTransitionTo(patch.Status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrOrderStateConflict, order.Status, patch.Status)
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		filter := repository.OrderFilter{ID: order.ID, Status: order.Status}
		if err := s.orders.UpdateStatus(ctx, filter, patch); err != nil {
			return err
		}
		ev.Status = patch.Status
		return s.emit(ctx, eventType, ev)
	})
	if err != nil {
		return err
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(order.Status), string(patch.Status)).Inc()
	return nil
}
