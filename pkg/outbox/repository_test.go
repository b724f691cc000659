package outbox

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Ошибка создания sqlmock")
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "Ошибка инициализации GORM")
	return gdb, mock
}

func TestRepository_Create(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewRepository(gdb)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `outbox`")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), confirmedRecord("outbox-1"))

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetUnprocessed(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewRepository(gdb)

	rows := sqlmock.NewRows([]string{"id", "aggregate_type", "aggregate_id", "event_type", "topic", "message_key", "payload", "headers", "created_at", "retry_count"}).
		AddRow("outbox-1", "order", "order-1", "order.confirmed", "forwarding.order-events", "order-1", []byte(`{}`), []byte(`{"event_type":"order.confirmed"}`), time.Now(), 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `outbox` WHERE processed_at IS NULL ORDER BY retry_count ASC, created_at ASC LIMIT")).
		WillReturnRows(rows)

	records, err := repo.GetUnprocessed(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "order.confirmed", records[0].Headers["event_type"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_MarkProcessed_NotFound(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewRepository(gdb)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `outbox` SET `processed_at`=")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkProcessed(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrOutboxNotFound)
}

func TestRepository_MarkFailed(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewRepository(gdb)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `outbox` SET `last_error`=?,`retry_count`=retry_count + 1 WHERE id = ?")).
		WithArgs("timeout", "outbox-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(context.Background(), "outbox-1", errors.New("timeout")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
