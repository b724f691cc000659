package saga

import (
	"context"
	"fmt"
	"strings"

	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/repository"
)

// SetAvailability — хост включает или выключает приём новых заказов.
// Уже зарезервированные и назначенные заказы остаются за хостом.
func (s *Service) SetAvailability(ctx context.Context, hostID string, available bool) error {
	if err := s.hosts.SetAvailability(ctx, hostID, available); err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info().Str("host_id", hostID).Bool("available", available).Msg("Хост изменил доступность")
	return nil
}

// confirmedHostOrder — заказ хоста в статусе CONFIRMED, иначе ошибка.
func (s *Service) confirmedHostOrder(ctx context.Context, orderID, hostID string) (*domain.Order, error) {
	order, err := s.orders.Find(ctx, repository.OrderFilter{ID: orderID, HostID: hostID})
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusConfirmed {
		return nil, fmt.Errorf("%w: заказ в статусе %s", domain.ErrOrderStateConflict, order.Status)
	}
	return order, nil
}

// ReceiveItem отмечает посылку полученной. Дату получения нельзя изменить или снять.
func (s *Service) ReceiveItem(ctx context.Context, hostID, orderID, itemID string) error {
	order, err := s.confirmedHostOrder(ctx, orderID, hostID)
	if err != nil {
		return err
	}
	item, err := order.ItemByID(itemID)
	if err != nil {
		return err
	}
	if item.IsReceived() {
		return domain.ErrItemAlreadyReceived
	}
	return s.orders.MarkItemReceived(ctx, orderID, itemID, s.now())
}

// AddItemPhotos добавляет фото полученной посылки.
func (s *Service) AddItemPhotos(ctx context.Context, hostID, orderID, itemID string, urls []string) error {
	var clean []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}
	if len(clean) == 0 {
		return domain.ErrInvalidPhotos
	}

	order, err := s.confirmedHostOrder(ctx, orderID, hostID)
	if err != nil {
		return err
	}
	if _, err := order.ItemByID(itemID); err != nil {
		return err
	}
	return s.orders.AddItemPhotos(ctx, orderID, itemID, clean)
}

// SubmitShipmentInfo — хост получил все посылки и сообщает вес и стоимость доставки:
// CONFIRMED -> FINALIZED. После этого покупатель может оплатить доставку.
func (s *Service) SubmitShipmentInfo(ctx context.Context, hostID, orderID string, info domain.ShipmentInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	info.DeliveryCost.Currency = strings.ToUpper(strings.TrimSpace(info.DeliveryCost.Currency))

	order, err := s.confirmedHostOrder(ctx, orderID, hostID)
	if err != nil {
		return err
	}
	for i := range order.Items {
		if !order.Items[i].IsReceived() {
			return fmt.Errorf("%w: посылка %s ещё не получена", domain.ErrOrderStateConflict, order.Items[i].ID)
		}
	}

	cost := info.DeliveryCost
	if err := s.transition(ctx, order,
		repository.StatusPatch{Status: domain.OrderStatusFinalized, Shipment: &info},
		domain.EventOrderFinalized,
		domain.OrderEvent{OrderID: order.ID, CustomerID: order.CustomerID, HostID: hostID, Cost: &cost},
	); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("order_id", order.ID).
		Float64("total_weight", info.TotalWeight).
		Int64("amount", cost.MinorUnits()).
		Str("currency", cost.Currency).
		Msg("Хост финализировал заказ")
	return nil
}
