// Package config загружает конфигурацию сервиса из переменных окружения (и .env, если он есть).
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config — полная конфигурация сервиса пересылки.
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	MySQL     MySQLConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Payment   PaymentConfig
	SMTP      SMTPConfig
	Service   ServiceConfig
	RateLimit RateLimitConfig
	Jaeger    JaegerConfig
	Metrics   MetricsConfig
}

type AppConfig struct {
	Name      string `env:"APP_NAME" envDefault:"shipforward"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// HTTPConfig — публичный API и вебхуки.
type HTTPConfig struct {
	Port            int           `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	AllowedOrigins  []string      `env:"HTTP_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type MySQLConfig struct {
	Host            string        `env:"MYSQL_HOST" envDefault:"localhost"`
	Port            int           `env:"MYSQL_PORT" envDefault:"3306"`
	User            string        `env:"MYSQL_USER" envDefault:"root"`
	Password        string        `env:"MYSQL_PASSWORD" envDefault:"root"`
	Database        string        `env:"MYSQL_DATABASE" envDefault:"shipforward"`
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"5m"`
	AutoMigrate     bool          `env:"MYSQL_AUTO_MIGRATE" envDefault:"true"`
}

// DSN возвращает строку подключения для драйвера go-sql-driver/mysql.
// loc=UTC: даты получения посылок хранятся и сравниваются в UTC.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"shipforward-notifications"`
}

// AuthConfig — вход по ссылке из письма.
// Ключи RS256: приватный подписывает токены, публичный проверяет.
type AuthConfig struct {
	PrivateKeyPath  string        `env:"AUTH_PRIVATE_KEY_PATH,required"`
	PublicKeyPath   string        `env:"AUTH_PUBLIC_KEY_PATH,required"`
	Issuer          string        `env:"AUTH_ISSUER" envDefault:"shipforward"`
	VerificationTTL time.Duration `env:"AUTH_VERIFICATION_TTL" envDefault:"15m"`
	SessionTTL      time.Duration `env:"AUTH_SESSION_TTL" envDefault:"720h"`
	CookieName      string        `env:"AUTH_COOKIE_NAME" envDefault:"shipforward_token"`
	CookieSecure    bool          `env:"AUTH_COOKIE_SECURE" envDefault:"false"`
	VerifyURL       string        `env:"AUTH_VERIFY_URL" envDefault:"http://localhost:3000/authn/verify"`
	LinkLimit       int           `env:"AUTH_LINK_LIMIT" envDefault:"5"` // писем со ссылкой на один email за LinkWindow
	LinkWindow      time.Duration `env:"AUTH_LINK_WINDOW" envDefault:"15m"`
}

// PaymentConfig — Stripe Checkout.
type PaymentConfig struct {
	SecretKey          string        `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret      string        `env:"STRIPE_WEBHOOK_SECRET,required"`
	SuccessURL         string        `env:"PAYMENT_SUCCESS_URL" envDefault:"http://localhost:3000/payment/success"`
	CancelURL          string        `env:"PAYMENT_CANCEL_URL" envDefault:"http://localhost:3000/payment/cancel"`
	CheckoutTTL        time.Duration `env:"PAYMENT_CHECKOUT_TTL" envDefault:"35m"` // Stripe требует не меньше 30 минут
	ServiceFeeAmount   float64       `env:"SERVICE_FEE_AMOUNT" envDefault:"100"`
	ServiceFeeCurrency string        `env:"SERVICE_FEE_CURRENCY" envDefault:"USD"`
	WebhookDedupTTL    time.Duration `env:"WEBHOOK_DEDUP_TTL" envDefault:"72h"`
}

// SMTPConfig — отправка писем. Пустой Host включает вывод писем в лог.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST" envDefault:""`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME" envDefault:""`
	Password string `env:"SMTP_PASSWORD" envDefault:""`
	From     string `env:"SMTP_FROM" envDefault:"noreply@shipforward.local"`
	// TLSPolicy — opportunistic, mandatory или none.
	TLSPolicy string        `env:"SMTP_TLS_POLICY" envDefault:"opportunistic"`
	Timeout   time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`
}

// ServiceConfig — зоны обслуживания и резервирование хостов.
type ServiceConfig struct {
	OriginCountries      []string      `env:"SERVICE_ORIGIN_COUNTRIES" envDefault:"USA,GBR,DEU" envSeparator:","`
	DestinationCountries []string      `env:"SERVICE_DESTINATION_COUNTRIES" envDefault:"*" envSeparator:","`
	ReservationGrace     time.Duration `env:"HOST_RESERVATION_GRACE" envDefault:"5m"`
	ReservationSweep     time.Duration `env:"HOST_RESERVATION_SWEEP" envDefault:"1m"`
}

type RateLimitConfig struct {
	Enabled  bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Requests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"60"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

type JaegerConfig struct {
	Enabled  bool   `env:"JAEGER_ENABLED" envDefault:"false"`
	Host     string `env:"JAEGER_HOST" envDefault:"localhost"`
	OTLPPort int    `env:"JAEGER_OTLP_PORT" envDefault:"4317"`
}

// OTLPEndpoint возвращает OTLP gRPC endpoint коллектора.
func (c JaegerConfig) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OTLPPort)
}

type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`
}

func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse()
}

// LoadFromFile читает конфигурацию из указанного .env файла.
func LoadFromFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("ошибка загрузки .env файла %s: %w", path, err)
	}
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}
	if cfg.Payment.CheckoutTTL < 30*time.Minute {
		return nil, fmt.Errorf("PAYMENT_CHECKOUT_TTL должен быть не меньше 30m, получено %s", cfg.Payment.CheckoutTTL)
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
