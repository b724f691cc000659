package saga

import (
	"context"
	"errors"
	"fmt"

	"example.com/shipforward/pkg/kafka"
	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/pkg/metrics"
	"example.com/shipforward/pkg/outbox"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/repository"
)

// Outcome — результат продолжения саги.
type Outcome string

const (
	// OutcomeApplied — переход статуса выполнен.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoop — повторная доставка события, заказ уже продвинут.
	OutcomeNoop Outcome = "noop"
)

// Confirm подбирает хоста для черновика и создаёт checkout-сессию сервисного сбора.
// Заказ остаётся DRAFTED, пока вебхук не сообщит об оплате.
func (s *Service) Confirm(ctx context.Context, orderID, customerID string) (*domain.CheckoutSession, error) {
	log := logger.FromContext(ctx)

	order, err := s.orders.Find(ctx, repository.OrderFilter{ID: orderID, CustomerID: customerID})
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusDrafted {
		return nil, fmt.Errorf("%w: подтверждение заказа в статусе %s", domain.ErrOrderStateConflict, order.Status)
	}

	if !s.coverage.CheckServiceAvailability(order.OriginCountry, order.Destination.Country) {
		metrics.HostMatchesTotal.WithLabelValues("service_unavailable").Inc()
		if err := s.reject(ctx, order, domain.RejectionServiceUnavailable); err != nil {
			return nil, err
		}
		log.Info().
			Str("order_id", order.ID).
			Str("origin", order.OriginCountry).
			Str("destination", order.Destination.Country).
			Msg("Направление не обслуживается, заказ отклонён")
		return nil, domain.ErrServiceUnavailable
	}

	now := s.now()
	host, err := s.matcher.MatchHost(ctx, order, now.Add(s.cfg.CheckoutTTL+s.cfg.ReservationGrace))
	if errors.Is(err, domain.ErrNoHostAvailable) {
		if err := s.reject(ctx, order, domain.RejectionNoHostAvailable); err != nil {
			return nil, err
		}
		log.Info().Str("order_id", order.ID).Str("origin", order.OriginCountry).Msg("Нет свободного хоста, заказ отклонён")
		return nil, domain.ErrNoHostAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка подбора хоста для заказа %s: %w", order.ID, err)
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, domain.CheckoutRequest{
		LineItem:      domain.LineItem{Description: serviceFeeDescription, Price: s.fees.ServiceFee(order)},
		Metadata:      domain.ServiceFeeMetadata{OrderID: order.ID, HostID: host.ID},
		CustomerEmail: s.customerEmail(ctx, order.CustomerID),
		SuccessURL:    redirectURL(s.cfg.SuccessURL, order.ID),
		CancelURL:     redirectURL(s.cfg.CancelURL, order.ID),
		ExpiresAt:     now.Add(s.cfg.CheckoutTTL),
	})
	if err != nil {
		// компенсация: слот хоста возвращается сразу, не дожидаясь истечения резерва
		if relErr := s.matcher.Release(ctx, order.ID); relErr != nil {
			log.Error().Err(relErr).Str("order_id", order.ID).Msg("Не удалось снять резерв хоста после ошибки шлюза")
		}
		if !errors.Is(err, domain.ErrPaymentGateway) {
			err = fmt.Errorf("%w: %v", domain.ErrPaymentGateway, err)
		}
		return nil, err
	}

	log.Info().
		Str("order_id", order.ID).
		Str("host_id", host.ID).
		Str("checkout_id", sess.ID).
		Msg("Создана сессия оплаты сервисного сбора")
	return sess, nil
}

func (s *Service) reject(ctx context.Context, order *domain.Order, reason domain.RejectionReason) error {
	return s.transition(ctx, order,
		repository.StatusPatch{Status: domain.OrderStatusRejected, RejectionReason: &reason},
		domain.EventOrderRejected,
		domain.OrderEvent{OrderID: order.ID, CustomerID: order.CustomerID, Reason: string(reason)},
	)
}

// HandleServiceFeePaid — продолжение после оплаты сервисного сбора: DRAFTED -> CONFIRMED
// и назначение хоста в одной транзакции. Повторная доставка события — OutcomeNoop,
// оплата другой сессии уже подтверждённого заказа — ErrDuplicatePayment.
// Если хоста назначить не удалось, заказ остаётся DRAFTED, а в outbox уходит событие
// для ручной сверки.
func (s *Service) HandleServiceFeePaid(ctx context.Context, sessionID string, md domain.ServiceFeeMetadata) (Outcome, error) {
	log := logger.FromContext(ctx)

	order, err := s.orders.Find(ctx, repository.OrderFilter{ID: md.OrderID})
	if err != nil {
		return "", err
	}
	if order.Status != domain.OrderStatusDrafted {
		return s.alreadyPaid(ctx, order, order.ServiceFeeSessionID, sessionID, domain.FeeTypeService)
	}

	var hostID string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		hostID, err = s.matcher.AssignHost(ctx, order, md.HostID)
		if err != nil {
			return err
		}

		patch := repository.StatusPatch{Status: domain.OrderStatusConfirmed, HostID: &hostID}
		if sessionID != "" {
			patch.ServiceFeeSessionID = &sessionID
		}
		if err := s.orders.UpdateStatus(ctx, repository.OrderFilter{ID: order.ID, Status: domain.OrderStatusDrafted}, patch); err != nil {
			return err
		}
		return s.emit(ctx, domain.EventOrderConfirmed, domain.OrderEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			HostID:     hostID,
			Status:     domain.OrderStatusConfirmed,
		})
	})

	switch {
	case err == nil:
		metrics.OrderTransitionsTotal.WithLabelValues(string(domain.OrderStatusDrafted), string(domain.OrderStatusConfirmed)).Inc()
		log.Info().Str("order_id", order.ID).Str("host_id", hostID).Msg("Заказ подтверждён")
		return OutcomeApplied, nil
	case errors.Is(err, domain.ErrOrderStateConflict):
		// заказ продвинул параллельный вебхук: той же сессии или другой
		current, findErr := s.orders.Find(ctx, repository.OrderFilter{ID: order.ID})
		if findErr != nil {
			return "", findErr
		}
		return s.alreadyPaid(ctx, current, current.ServiceFeeSessionID, sessionID, domain.FeeTypeService)
	case errors.Is(err, domain.ErrNoHostAvailable):
		if recErr := s.requireReconciliation(ctx, order, md.HostID, "no_host_available"); recErr != nil {
			log.Error().Err(recErr).Str("order_id", order.ID).Msg("Не удалось записать событие сверки")
		}
		return "", fmt.Errorf("%w: заказ %s оплачен, свободных хостов нет", domain.ErrReconciliationRequired, order.ID)
	default:
		return "", err
	}
}

func (s *Service) requireReconciliation(ctx context.Context, order *domain.Order, hostID, reason string) error {
	rec, err := outbox.NewRecord(ctx, aggregateOrder, order.ID, domain.EventOrderReconciliation, kafka.TopicReconciliation,
		domain.OrderEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			HostID:     hostID,
			Status:     order.Status,
			Reason:     reason,
			OccurredAt: s.now().UTC(),
		})
	if err != nil {
		return err
	}
	return s.outbox.Create(ctx, rec)
}

// alreadyPaid разбирает оплату этапа, который заказ уже прошёл. Та же сессия —
// повторная доставка. Другая сессия — вторая списанная оплата, её нужно сверить вручную.
// Пустой ID с любой стороны не сравнивается.
func (s *Service) alreadyPaid(ctx context.Context, order *domain.Order, applied *string, sessionID string, fee domain.FeeType) (Outcome, error) {
	log := logger.FromContext(ctx)

	if applied != nil && *applied != "" && sessionID != "" && *applied != sessionID {
		log.Warn().
			Str("order_id", order.ID).
			Str("status", string(order.Status)).
			Str("fee_type", string(fee)).
			Str("session_id", sessionID).
			Str("applied_session_id", *applied).
			Msg("Этап заказа оплачен второй сессией")
		return "", fmt.Errorf("%w: заказ %s, сессия %s", domain.ErrDuplicatePayment, order.ID, sessionID)
	}

	log.Info().
		Str("order_id", order.ID).
		Str("status", string(order.Status)).
		Str("fee_type", string(fee)).
		Msg("Оплата этапа уже учтена, повторное событие пропущено")
	return OutcomeNoop, nil
}
