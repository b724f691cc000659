package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type txKey struct{}

// Transactor группирует вызовы репозиториев в одну транзакцию MySQL.
// Транзакция живёт в context: репозитории получают её через Conn.
type Transactor struct {
	db *gorm.DB
}

func NewTransactor(gdb *gorm.DB) *Transactor {
	return &Transactor{db: gdb}
}

// WithinTransaction выполняет fn в транзакции. Если ctx уже несёт транзакцию,
// fn выполняется в ней же, а commit/rollback остаются за внешним вызовом.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err != nil {
		return fmt.Errorf("транзакция отменена: %w", err)
	}
	return nil
}

// Conn возвращает транзакцию из ctx или fallback, привязанный к ctx.
func Conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return fallback.WithContext(ctx)
}

// InTransaction сообщает, выполняется ли код внутри WithinTransaction.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}
