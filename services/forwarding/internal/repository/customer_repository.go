package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/shipforward/pkg/db"
	"example.com/shipforward/services/forwarding/internal/domain"
)

// CustomerRepository — доступ к покупателям. Список заказов меняется
// только добавлением и удалением отдельных строк customer_orders.
type CustomerRepository interface {
	Add(ctx context.Context, customer *domain.Customer) error
	Find(ctx context.Context, customerID string) (*domain.Customer, error)
	FindByEmail(ctx context.Context, email string) (*domain.Customer, error)
	AddOrder(ctx context.Context, customerID, orderID string) error
	RemoveOrder(ctx context.Context, customerID, orderID string) error
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(gdb *gorm.DB) CustomerRepository {
	return &customerRepository{db: gdb}
}

func (r *customerRepository) Add(ctx context.Context, customer *domain.Customer) error {
	m := &CustomerModel{ID: customer.ID, Email: customer.Email}
	if err := db.Conn(ctx, r.db).Create(m).Error; err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("покупатель %s: %w", customer.Email, ErrDuplicate)
		}
		return fmt.Errorf("ошибка сохранения покупателя: %w", err)
	}
	return nil
}

func (r *customerRepository) Find(ctx context.Context, customerID string) (*domain.Customer, error) {
	return r.findBy(ctx, "id = ?", customerID)
}

func (r *customerRepository) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return r.findBy(ctx, "email = ?", email)
}

func (r *customerRepository) findBy(ctx context.Context, cond, arg string) (*domain.Customer, error) {
	var m CustomerModel
	if err := db.Conn(ctx, r.db).Where(cond, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("ошибка поиска покупателя: %w", err)
	}

	var orderIDs []string
	if err := db.Conn(ctx, r.db).Model(&CustomerOrderModel{}).
		Where("customer_id = ?", m.ID).
		Order("created_at ASC").
		Pluck("order_id", &orderIDs).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки заказов покупателя %s: %w", m.ID, err)
	}
	return &domain.Customer{ID: m.ID, Email: m.Email, OrderIDs: orderIDs}, nil
}

// AddOrder идемпотентен: повторное добавление того же заказа игнорируется.
func (r *customerRepository) AddOrder(ctx context.Context, customerID, orderID string) error {
	err := db.Conn(ctx, r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&CustomerOrderModel{CustomerID: customerID, OrderID: orderID}).Error
	if err != nil {
		return fmt.Errorf("ошибка добавления заказа %s покупателю %s: %w", orderID, customerID, err)
	}
	return nil
}

func (r *customerRepository) RemoveOrder(ctx context.Context, customerID, orderID string) error {
	res := db.Conn(ctx, r.db).
		Where("customer_id = ? AND order_id = ?", customerID, orderID).
		Delete(&CustomerOrderModel{})
	if res.Error != nil {
		return fmt.Errorf("ошибка удаления заказа %s у покупателя %s: %w", orderID, customerID, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
