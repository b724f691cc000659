package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_PRIVATE_KEY_PATH", "/keys/private.pem")
	t.Setenv("AUTH_PUBLIC_KEY_PATH", "/keys/public.pem")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "shipforward", cfg.App.Name)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, ":8080", cfg.HTTP.Addr())
	assert.Equal(t, 35*time.Minute, cfg.Payment.CheckoutTTL)
	assert.Equal(t, 100.0, cfg.Payment.ServiceFeeAmount)
	assert.Equal(t, "USD", cfg.Payment.ServiceFeeCurrency)
	assert.Equal(t, []string{"USA", "GBR", "DEU"}, cfg.Service.OriginCountries)
	assert.Equal(t, []string{"*"}, cfg.Service.DestinationCountries)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("AUTH_PUBLIC_KEY_PATH", "/keys/public.pem")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ошибка парсинга конфигурации")
}

func TestLoad_CheckoutTTLTooShort(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_CHECKOUT_TTL", "10m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENT_CHECKOUT_TTL")
}

func TestMySQLConfig_DSN(t *testing.T) {
	c := MySQLConfig{User: "u", Password: "p", Host: "db", Port: 3307, Database: "shipforward"}
	assert.Equal(t, "u:p@tcp(db:3307)/shipforward?charset=utf8mb4&parseTime=True&loc=UTC", c.DSN())
}
