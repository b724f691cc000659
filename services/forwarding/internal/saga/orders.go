package saga

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/repository"
)

// DraftInput — данные нового черновика от покупателя.
type DraftInput struct {
	OriginCountry string
	Destination   domain.Address
	Items         []DraftItem
}

type DraftItem struct {
	Title     string
	StoreName string
	Weight    float64
}

// CreateDraft создаёт черновик и добавляет его в список заказов покупателя
// в одной транзакции.
func (s *Service) CreateDraft(ctx context.Context, customerID string, in DraftInput) (*domain.Order, error) {
	order := &domain.Order{
		ID:            uuid.New().String(),
		CustomerID:    customerID,
		Status:        domain.OrderStatusDrafted,
		OriginCountry: domain.NormalizeCountry(in.OriginCountry),
		Destination:   in.Destination,
		Items:         make([]domain.Item, len(in.Items)),
	}
	order.Destination.Country = domain.NormalizeCountry(in.Destination.Country)
	for i, it := range in.Items {
		order.Items[i] = domain.Item{
			ID:        uuid.New().String(),
			Title:     strings.TrimSpace(it.Title),
			StoreName: strings.TrimSpace(it.StoreName),
			Weight:    it.Weight,
		}
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Add(ctx, order); err != nil {
			return err
		}
		return s.customers.AddOrder(ctx, customerID, order.ID)
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("order_id", order.ID).
		Str("customer_id", customerID).
		Int("items", len(order.Items)).
		Msg("Создан черновик заказа")
	return order, nil
}

// GetOrder возвращает заказ покупателя.
func (s *Service) GetOrder(ctx context.Context, orderID, customerID string) (*domain.Order, error) {
	return s.orders.Find(ctx, repository.OrderFilter{ID: orderID, CustomerID: customerID})
}

// GetHostOrder возвращает заказ, назначенный хосту.
func (s *Service) GetHostOrder(ctx context.Context, orderID, hostID string) (*domain.Order, error) {
	return s.orders.Find(ctx, repository.OrderFilter{ID: orderID, HostID: hostID})
}

// DeleteDraft удаляет черновик покупателя. Пока хост зарезервирован под
// открытую checkout-сессию, удаление запрещено: оплата может прийти позже.
func (s *Service) DeleteDraft(ctx context.Context, orderID, customerID string) error {
	filter := repository.OrderFilter{ID: orderID, CustomerID: customerID}
	order, err := s.orders.Find(ctx, filter)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatusDrafted {
		return domain.ErrOrderStateConflict
	}

	now := s.now()
	reservation, err := s.hosts.FindReservation(ctx, orderID)
	switch {
	case errors.Is(err, repository.ErrReservationNotFound):
	case err != nil:
		return err
	case reservation.Active(now):
		return domain.ErrOrderStateConflict
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		// резерв мог появиться после проверки выше: DELETE повторяет её в том же запросе
		filter.Status = domain.OrderStatusDrafted
		filter.ReservationFreeAt = &now
		if err := s.orders.Delete(ctx, filter); err != nil {
			return err
		}
		return s.customers.RemoveOrder(ctx, customerID, orderID)
	})
	if err != nil {
		return err
	}

	if reservation != nil {
		// истёкший резерв, воркер ещё не успел его снять
		if _, err := s.matcher.ReleaseExpired(ctx, orderID, now); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("order_id", orderID).Msg("Не удалось снять истёкший резерв")
		}
	}

	log := logger.FromContext(ctx)
	log.Info().Str("order_id", orderID).Str("customer_id", customerID).Msg("Черновик заказа удалён")
	return nil
}
