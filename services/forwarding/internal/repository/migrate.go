package repository

import (
	"fmt"

	"gorm.io/gorm"

	"example.com/shipforward/pkg/outbox"
)

// AutoMigrate создаёт таблицы сервиса. В production схему ведут миграции,
// включается флагом MYSQL_AUTO_MIGRATE.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&CustomerModel{},
		&HostModel{},
		&OrderModel{},
		&OrderItemModel{},
		&ItemPhotoModel{},
		&HostOrderModel{},
		&CustomerOrderModel{},
		&outbox.OutboxModel{},
	); err != nil {
		return fmt.Errorf("ошибка миграции схемы: %w", err)
	}
	return nil
}
