package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrReservationNotFound — у заказа нет привязки к хосту в нужном состоянии.
	ErrReservationNotFound = errors.New("резерв хоста не найден")

	// ErrDuplicate — нарушен уникальный индекс (email, order_id в host_orders).
	ErrDuplicate = errors.New("запись уже существует")
)

// isDuplicateKeyError: MySQL возвращает 1062 при нарушении уникального ключа.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "1062")
}
