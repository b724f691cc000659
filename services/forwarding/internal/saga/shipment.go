package saga

import (
	"context"
	"errors"
	"fmt"

	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/repository"
)

// PayShipment создаёт checkout-сессию на итоговую стоимость доставки.
func (s *Service) PayShipment(ctx context.Context, orderID, customerID string) (*domain.CheckoutSession, error) {
	order, err := s.orders.Find(ctx, repository.OrderFilter{ID: orderID, CustomerID: customerID})
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusFinalized || order.FinalShipmentCost == nil {
		return nil, fmt.Errorf("%w: оплата доставки заказа в статусе %s", domain.ErrOrderStateConflict, order.Status)
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, domain.CheckoutRequest{
		LineItem:      domain.LineItem{Description: shipmentFeeDescription, Price: *order.FinalShipmentCost},
		Metadata:      domain.ShipmentFeeMetadata{OrderID: order.ID},
		CustomerEmail: s.customerEmail(ctx, order.CustomerID),
		SuccessURL:    redirectURL(s.cfg.SuccessURL, order.ID),
		CancelURL:     redirectURL(s.cfg.CancelURL, order.ID),
		ExpiresAt:     s.now().Add(s.cfg.CheckoutTTL),
	})
	if err != nil {
		if !errors.Is(err, domain.ErrPaymentGateway) {
			err = fmt.Errorf("%w: %v", domain.ErrPaymentGateway, err)
		}
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("order_id", order.ID).
		Str("checkout_id", sess.ID).
		Int64("amount", order.FinalShipmentCost.MinorUnits()).
		Str("currency", order.FinalShipmentCost.Currency).
		Msg("Создана сессия оплаты доставки")
	return sess, nil
}

// HandleShipmentFeePaid — продолжение после оплаты доставки: FINALIZED -> PAID.
func (s *Service) HandleShipmentFeePaid(ctx context.Context, sessionID string, md domain.ShipmentFeeMetadata) (Outcome, error) {
	log := logger.FromContext(ctx)

	order, err := s.orders.Find(ctx, repository.OrderFilter{ID: md.OrderID})
	if err != nil {
		return "", err
	}
	if order.Status != domain.OrderStatusFinalized {
		return s.alreadyPaid(ctx, order, order.ShipmentFeeSessionID, sessionID, domain.FeeTypeShipment)
	}

	var hostID string
	if order.HostID != nil {
		hostID = *order.HostID
	}
	patch := repository.StatusPatch{Status: domain.OrderStatusPaid}
	if sessionID != "" {
		patch.ShipmentFeeSessionID = &sessionID
	}
	err = s.transition(ctx, order, patch,
		domain.EventOrderPaid,
		domain.OrderEvent{OrderID: order.ID, CustomerID: order.CustomerID, HostID: hostID, Cost: order.FinalShipmentCost},
	)
	if errors.Is(err, domain.ErrOrderStateConflict) {
		current, findErr := s.orders.Find(ctx, repository.OrderFilter{ID: order.ID})
		if findErr != nil {
			return "", findErr
		}
		return s.alreadyPaid(ctx, current, current.ShipmentFeeSessionID, sessionID, domain.FeeTypeShipment)
	}
	if err != nil {
		return "", err
	}

	log.Info().Str("order_id", order.ID).Msg("Доставка оплачена")
	return OutcomeApplied, nil
}
