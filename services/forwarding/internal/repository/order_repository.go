package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"example.com/shipforward/pkg/db"
	"example.com/shipforward/services/forwarding/internal/domain"
)

// OrderFilter — условия поиска и CAS-обновления. Пустые поля не участвуют.
type OrderFilter struct {
	ID         string
	CustomerID string
	HostID     string
	Status     domain.OrderStatus
	// ReservationFreeAt — у заказа нет назначения и резерва, живого на этот момент.
	ReservationFreeAt *time.Time
}

func (f OrderFilter) apply(q *gorm.DB) *gorm.DB {
	if f.ID != "" {
		q = q.Where("id = ?", f.ID)
	}
	if f.CustomerID != "" {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.HostID != "" {
		q = q.Where("host_id = ?", f.HostID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.ReservationFreeAt != nil {
		q = q.Where("NOT EXISTS (SELECT 1 FROM host_orders WHERE host_orders.order_id = orders.id AND (host_orders.state = ? OR host_orders.reserved_until > ?))",
			string(ReservationAssigned), f.ReservationFreeAt.UTC())
	}
	return q
}

// StatusPatch — изменения, применяемые вместе со сменой статуса.
type StatusPatch struct {
	Status          domain.OrderStatus
	HostID          *string
	RejectionReason *domain.RejectionReason
	Shipment        *domain.ShipmentInfo
	// ID оплаченной checkout-сессии этапа.
	ServiceFeeSessionID  *string
	ShipmentFeeSessionID *string
}

func (p StatusPatch) columns() map[string]any {
	cols := map[string]any{
		"status":     string(p.Status),
		"updated_at": time.Now().UTC(),
	}
	if p.HostID != nil {
		cols["host_id"] = *p.HostID
	}
	if p.RejectionReason != nil {
		cols["rejection_reason"] = string(*p.RejectionReason)
	}
	if p.ServiceFeeSessionID != nil {
		cols["service_fee_session_id"] = *p.ServiceFeeSessionID
	}
	if p.ShipmentFeeSessionID != nil {
		cols["shipment_fee_session_id"] = *p.ShipmentFeeSessionID
	}
	if p.Shipment != nil {
		cols["total_weight"] = p.Shipment.TotalWeight
		cols["shipment_currency"] = p.Shipment.DeliveryCost.Currency
		cols["shipment_amount"] = p.Shipment.DeliveryCost.Amount
		cols["calculator_result_url"] = p.Shipment.CalculatorResultURL
	}
	return cols
}

// OrderRepository — доступ к заказам.
type OrderRepository interface {
	// Add сохраняет заказ вместе с посылками.
	Add(ctx context.Context, order *domain.Order) error

	// Find возвращает единственный заказ под фильтр или ErrOrderNotFound.
	Find(ctx context.Context, filter OrderFilter) (*domain.Order, error)

	// UpdateStatus — compare-and-swap: обновление применяется, только если заказ
	// всё ещё подходит под filter. Промах даёт ErrOrderNotFound, если заказа нет,
	// и ErrOrderStateConflict, если он в другом статусе или у другого владельца.
	UpdateStatus(ctx context.Context, filter OrderFilter, patch StatusPatch) error

	// MarkItemReceived ставит дату получения один раз.
	MarkItemReceived(ctx context.Context, orderID, itemID string, at time.Time) error

	// AddItemPhotos добавляет ссылки на фото к посылке.
	AddItemPhotos(ctx context.Context, orderID, itemID string, urls []string) error

	// Delete удаляет заказ под фильтр вместе с посылками.
	Delete(ctx context.Context, filter OrderFilter) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(gdb *gorm.DB) OrderRepository {
	return &orderRepository{db: gdb}
}

func (r *orderRepository) Add(ctx context.Context, order *domain.Order) error {
	m := orderModelFromDomain(order)
	if err := db.Conn(ctx, r.db).Create(m).Error; err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("заказ %s: %w", order.ID, ErrDuplicate)
		}
		return fmt.Errorf("ошибка сохранения заказа %s: %w", order.ID, err)
	}
	order.CreatedAt = m.CreatedAt
	order.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *orderRepository) Find(ctx context.Context, filter OrderFilter) (*domain.Order, error) {
	var m OrderModel

	q := db.Conn(ctx, r.db).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Items.Photos", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") })

	if err := filter.apply(q).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("ошибка поиска заказа %s: %w", filter.ID, err)
	}
	return m.toDomain(), nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, filter OrderFilter, patch StatusPatch) error {
	if filter.ID == "" {
		return fmt.Errorf("UpdateStatus без id заказа: %w", domain.ErrOrderNotFound)
	}

	res := filter.apply(db.Conn(ctx, r.db).Model(&OrderModel{})).Updates(patch.columns())
	if res.Error != nil {
		return fmt.Errorf("ошибка обновления заказа %s: %w", filter.ID, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return r.explainMiss(ctx, filter.ID)
}

// explainMiss различает «нет заказа» и «заказ в другом состоянии».
func (r *orderRepository) explainMiss(ctx context.Context, orderID string) error {
	var count int64
	if err := db.Conn(ctx, r.db).Model(&OrderModel{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
		return fmt.Errorf("ошибка проверки заказа %s: %w", orderID, err)
	}
	if count == 0 {
		return domain.ErrOrderNotFound
	}
	return domain.ErrOrderStateConflict
}

func (r *orderRepository) MarkItemReceived(ctx context.Context, orderID, itemID string, at time.Time) error {
	res := db.Conn(ctx, r.db).Model(&OrderItemModel{}).
		Where("id = ? AND order_id = ? AND received_date IS NULL", itemID, orderID).
		Update("received_date", at.UTC())
	if res.Error != nil {
		return fmt.Errorf("ошибка отметки посылки %s: %w", itemID, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	exists, err := r.itemExists(ctx, orderID, itemID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrItemNotFound
	}
	return domain.ErrItemAlreadyReceived
}

func (r *orderRepository) AddItemPhotos(ctx context.Context, orderID, itemID string, urls []string) error {
	exists, err := r.itemExists(ctx, orderID, itemID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrItemNotFound
	}

	photos := make([]ItemPhotoModel, len(urls))
	for i, url := range urls {
		photos[i] = ItemPhotoModel{ItemID: itemID, URL: url}
	}
	if err := db.Conn(ctx, r.db).Create(&photos).Error; err != nil {
		return fmt.Errorf("ошибка сохранения фото посылки %s: %w", itemID, err)
	}
	return nil
}

func (r *orderRepository) itemExists(ctx context.Context, orderID, itemID string) (bool, error) {
	var count int64
	if err := db.Conn(ctx, r.db).Model(&OrderItemModel{}).
		Where("id = ? AND order_id = ?", itemID, orderID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("ошибка проверки посылки %s: %w", itemID, err)
	}
	return count > 0, nil
}

func (r *orderRepository) Delete(ctx context.Context, filter OrderFilter) error {
	if filter.ID == "" {
		return fmt.Errorf("Delete без id заказа: %w", domain.ErrOrderNotFound)
	}
	res := filter.apply(db.Conn(ctx, r.db)).Delete(&OrderModel{})
	if res.Error != nil {
		return fmt.Errorf("ошибка удаления заказа %s: %w", filter.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return r.explainMiss(ctx, filter.ID)
	}
	return nil
}
