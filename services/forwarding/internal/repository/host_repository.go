package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/shipforward/pkg/db"
	"example.com/shipforward/services/forwarding/internal/domain"
)

// ReservationState — состояние строки host_orders.
type ReservationState string

const (
	// ReservationReserved — хост держится за заказом, пока идёт оплата сервисного сбора.
	ReservationReserved ReservationState = "reserved"
	// ReservationAssigned — заказ подтверждён и назначен хосту.
	ReservationAssigned ReservationState = "assigned"
)

// Reservation — привязка заказа к хосту.
type Reservation struct {
	OrderID       string
	HostID        string
	State         ReservationState
	ReservedUntil *time.Time
	CreatedAt     time.Time
}

// Active — резерв ещё держит слот хоста.
func (r *Reservation) Active(now time.Time) bool {
	if r.State == ReservationAssigned {
		return true
	}
	return r.ReservedUntil != nil && r.ReservedUntil.After(now)
}

// HostRepository — доступ к хостам и их загрузке.
// Методы, меняющие загрузку, вызываются внутри транзакции вместе с LockAvailableInCountry.
type HostRepository interface {
	Add(ctx context.Context, host *domain.Host) error
	Find(ctx context.Context, hostID string) (*domain.Host, error)
	FindByEmail(ctx context.Context, email string) (*domain.Host, error)

	// SetAvailability — решение самого хоста; снимает отметку о паузе по лимиту.
	SetAvailability(ctx context.Context, hostID string, available bool) error

	// LockAvailableInCountry блокирует доступных хостов страны (SELECT ... FOR UPDATE,
	// по возрастанию id) и возвращает их загрузку: назначенные заказы плюс живые резервы.
	LockAvailableInCountry(ctx context.Context, country string, now time.Time) ([]domain.HostLoad, error)

	// PauseAtCapacity снимает хоста с подбора, когда занят последний слот.
	PauseAtCapacity(ctx context.Context, hostID string) error
	// ResumeFromCapacity возвращает хоста, снятого PauseAtCapacity. Ручную паузу не трогает.
	ResumeFromCapacity(ctx context.Context, hostID string) error

	Reserve(ctx context.Context, r *Reservation) error
	FindReservation(ctx context.Context, orderID string) (*Reservation, error)
	ExtendReservation(ctx context.Context, orderID string, until time.Time) error
	// ConfirmAssignment переводит живой резерв заказа у hostID в назначение.
	// Истёкший резерв не подтверждается: его слот мог уже уйти другому заказу.
	ConfirmAssignment(ctx context.Context, orderID, hostID string, now time.Time) error
	DeleteReservation(ctx context.Context, orderID string) error
	// DeleteExpiredReservation снимает резерв, только если reserved_until <= now.
	// Продлённый резерв не трогается: ErrReservationNotFound.
	DeleteExpiredReservation(ctx context.Context, orderID string, now time.Time) error
	ExpiredReservations(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)
}

type hostRepository struct {
	db *gorm.DB
}

func NewHostRepository(gdb *gorm.DB) HostRepository {
	return &hostRepository{db: gdb}
}

func (r *hostRepository) Add(ctx context.Context, host *domain.Host) error {
	if err := db.Conn(ctx, r.db).Create(hostModelFromDomain(host)).Error; err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("хост %s: %w", host.Email, ErrDuplicate)
		}
		return fmt.Errorf("ошибка сохранения хоста %s: %w", host.ID, err)
	}
	return nil
}

func (r *hostRepository) Find(ctx context.Context, hostID string) (*domain.Host, error) {
	return r.findBy(ctx, "id = ?", hostID)
}

func (r *hostRepository) FindByEmail(ctx context.Context, email string) (*domain.Host, error) {
	return r.findBy(ctx, "email = ?", email)
}

func (r *hostRepository) findBy(ctx context.Context, cond string, arg string) (*domain.Host, error) {
	var m HostModel
	if err := db.Conn(ctx, r.db).Where(cond, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrHostNotFound
		}
		return nil, fmt.Errorf("ошибка поиска хоста: %w", err)
	}

	var orderIDs []string
	if err := db.Conn(ctx, r.db).Model(&HostOrderModel{}).
		Where("host_id = ? AND state = ?", m.ID, string(ReservationAssigned)).
		Order("created_at ASC").
		Pluck("order_id", &orderIDs).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки заказов хоста %s: %w", m.ID, err)
	}
	return m.toDomain(orderIDs), nil
}

func (r *hostRepository) SetAvailability(ctx context.Context, hostID string, available bool) error {
	res := db.Conn(ctx, r.db).Model(&HostModel{}).
		Where("id = ?", hostID).
		Updates(map[string]any{"available": available, "capacity_paused": false})
	if res.Error != nil {
		return fmt.Errorf("ошибка изменения доступности хоста %s: %w", hostID, res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL не считает строку изменённой, если значения совпали
		var count int64
		if err := db.Conn(ctx, r.db).Model(&HostModel{}).Where("id = ?", hostID).Count(&count).Error; err != nil {
			return fmt.Errorf("ошибка проверки хоста %s: %w", hostID, err)
		}
		if count == 0 {
			return domain.ErrHostNotFound
		}
	}
	return nil
}

type hostOrderCount struct {
	HostID string
	Total  int
}

func (r *hostRepository) LockAvailableInCountry(ctx context.Context, country string, now time.Time) ([]domain.HostLoad, error) {
	var hosts []HostModel
	if err := db.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("country = ? AND available = ?", country, true).
		Order("id ASC").
		Find(&hosts).Error; err != nil {
		return nil, fmt.Errorf("ошибка блокировки хостов %s: %w", country, err)
	}
	if len(hosts) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hosts))
	for i := range hosts {
		ids[i] = hosts[i].ID
	}

	// locking read видит резервы, закоммиченные после открытия снимка транзакции
	var counts []hostOrderCount
	if err := db.Conn(ctx, r.db).Model(&HostOrderModel{}).
		Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
		Select("host_id, COUNT(*) AS total").
		Where("host_id IN ?", ids).
		Where("(state = ? OR reserved_until > ?)", string(ReservationAssigned), now.UTC()).
		Group("host_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("ошибка подсчёта заказов хостов: %w", err)
	}

	byHost := make(map[string]int, len(counts))
	for _, c := range counts {
		byHost[c.HostID] = c.Total
	}

	loads := make([]domain.HostLoad, len(hosts))
	for i := range hosts {
		loads[i] = domain.HostLoad{Host: *hosts[i].toDomain(nil), OrderCount: byHost[hosts[i].ID]}
	}
	return loads, nil
}

func (r *hostRepository) PauseAtCapacity(ctx context.Context, hostID string) error {
	return db.Conn(ctx, r.db).Model(&HostModel{}).
		Where("id = ? AND available = ?", hostID, true).
		Updates(map[string]any{"available": false, "capacity_paused": true}).Error
}

func (r *hostRepository) ResumeFromCapacity(ctx context.Context, hostID string) error {
	return db.Conn(ctx, r.db).Model(&HostModel{}).
		Where("id = ? AND capacity_paused = ?", hostID, true).
		Updates(map[string]any{"available": true, "capacity_paused": false}).Error
}

func (r *hostRepository) Reserve(ctx context.Context, res *Reservation) error {
	m := &HostOrderModel{
		OrderID:       res.OrderID,
		HostID:        res.HostID,
		State:         string(res.State),
		ReservedUntil: res.ReservedUntil,
	}
	if err := db.Conn(ctx, r.db).Create(m).Error; err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("заказ %s уже привязан к хосту: %w", res.OrderID, ErrDuplicate)
		}
		return fmt.Errorf("ошибка резерва хоста %s: %w", res.HostID, err)
	}
	res.CreatedAt = m.CreatedAt
	return nil
}

func (r *hostRepository) FindReservation(ctx context.Context, orderID string) (*Reservation, error) {
	var m HostOrderModel
	if err := db.Conn(ctx, r.db).Where("order_id = ?", orderID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("ошибка поиска резерва заказа %s: %w", orderID, err)
	}
	return reservationFromModel(&m), nil
}

func (r *hostRepository) ExtendReservation(ctx context.Context, orderID string, until time.Time) error {
	res := db.Conn(ctx, r.db).Model(&HostOrderModel{}).
		Where("order_id = ? AND state = ?", orderID, string(ReservationReserved)).
		Update("reserved_until", until.UTC())
	if res.Error != nil {
		return fmt.Errorf("ошибка продления резерва заказа %s: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (r *hostRepository) ConfirmAssignment(ctx context.Context, orderID, hostID string, now time.Time) error {
	res := db.Conn(ctx, r.db).Model(&HostOrderModel{}).
		Where("order_id = ? AND host_id = ? AND state = ?", orderID, hostID, string(ReservationReserved)).
		Where("reserved_until > ?", now.UTC()).
		Updates(map[string]any{"state": string(ReservationAssigned), "reserved_until": nil})
	if res.Error != nil {
		return fmt.Errorf("ошибка назначения заказа %s хосту %s: %w", orderID, hostID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (r *hostRepository) DeleteReservation(ctx context.Context, orderID string) error {
	res := db.Conn(ctx, r.db).
		Where("order_id = ? AND state = ?", orderID, string(ReservationReserved)).
		Delete(&HostOrderModel{})
	if res.Error != nil {
		return fmt.Errorf("ошибка снятия резерва заказа %s: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (r *hostRepository) DeleteExpiredReservation(ctx context.Context, orderID string, now time.Time) error {
	res := db.Conn(ctx, r.db).
		Where("order_id = ? AND state = ? AND reserved_until <= ?", orderID, string(ReservationReserved), now.UTC()).
		Delete(&HostOrderModel{})
	if res.Error != nil {
		return fmt.Errorf("ошибка снятия истёкшего резерва заказа %s: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (r *hostRepository) ExpiredReservations(ctx context.Context, now time.Time, limit int) ([]*Reservation, error) {
	var models []HostOrderModel
	if err := db.Conn(ctx, r.db).
		Where("state = ? AND reserved_until <= ?", string(ReservationReserved), now.UTC()).
		Order("reserved_until ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("ошибка поиска истёкших резервов: %w", err)
	}

	result := make([]*Reservation, len(models))
	for i := range models {
		result[i] = reservationFromModel(&models[i])
	}
	return result, nil
}

func reservationFromModel(m *HostOrderModel) *Reservation {
	return &Reservation{
		OrderID:       m.OrderID,
		HostID:        m.HostID,
		State:         ReservationState(m.State),
		ReservedUntil: m.ReservedUntil,
		CreatedAt:     m.CreatedAt,
	}
}
