// Package saga — жизненный цикл заказа: подтверждение через оплату сервисного сбора,
// оплата доставки и продолжения, которые запускает вебхук платёжного шлюза.
//
// Статус заказа меняют только продолжения (HandleServiceFeePaid, HandleShipmentFeePaid)
// и операции хоста. Синхронные Confirm и PayShipment не трогают строку заказа
// до успешного ответа шлюза, кроме отказа в обслуживании.
package saga

import (
	"context"
	"net/url"
	"time"

	"example.com/shipforward/pkg/outbox"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/repository"
)

// Transactor — db.Transactor.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PaymentGateway — создание checkout-сессии у внешнего шлюза.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
}

// Coverage — зона обслуживания.
type Coverage interface {
	CheckServiceAvailability(origin, destination string) bool
}

// HostMatcher — подбор и резервирование хоста (matcher.Matcher).
type HostMatcher interface {
	MatchHost(ctx context.Context, order *domain.Order, until time.Time) (*domain.Host, error)
	AssignHost(ctx context.Context, order *domain.Order, hostID string) (string, error)
	Release(ctx context.Context, orderID string) error
	ReleaseExpired(ctx context.Context, orderID string, now time.Time) (bool, error)
}

// Config — адреса возврата со страницы оплаты и время жизни сессии.
// Резерв хоста держится CheckoutTTL + ReservationGrace: вебхук может прийти позже истечения сессии.
type Config struct {
	SuccessURL       string
	CancelURL        string
	CheckoutTTL      time.Duration
	ReservationGrace time.Duration
}

const (
	serviceFeeDescription  = "Locly and Host Service Fee"
	shipmentFeeDescription = "Order Shipment Fee"
)

// Service — сценарии заказа для покупателя, хоста и вебхука.
type Service struct {
	orders    repository.OrderRepository
	hosts     repository.HostRepository
	customers repository.CustomerRepository
	outbox    outbox.Repository
	tx        Transactor
	matcher   HostMatcher
	coverage  Coverage
	gateway   PaymentGateway
	fees      FeePolicy
	cfg       Config
	now       func() time.Time
}

// Deps — зависимости Service. Все поля обязательны.
type Deps struct {
	Orders    repository.OrderRepository
	Hosts     repository.HostRepository
	Customers repository.CustomerRepository
	Outbox    outbox.Repository
	Tx        Transactor
	Matcher   HostMatcher
	Coverage  Coverage
	Gateway   PaymentGateway
	Fees      FeePolicy
}

func NewService(deps Deps, cfg Config) *Service {
	return &Service{
		orders:    deps.Orders,
		hosts:     deps.Hosts,
		customers: deps.Customers,
		outbox:    deps.Outbox,
		tx:        deps.Tx,
		matcher:   deps.Matcher,
		coverage:  deps.Coverage,
		gateway:   deps.Gateway,
		fees:      deps.Fees,
		cfg:       cfg,
		now:       time.Now,
	}
}

// redirectURL добавляет orderId к адресу возврата, чтобы фронтенд открыл нужный заказ.
func redirectURL(base, orderID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("orderId", orderID)
	u.RawQuery = q.Encode()
	return u.String()
}

// customerEmail — email для формы оплаты. Ошибка поиска не мешает оплате.
func (s *Service) customerEmail(ctx context.Context, customerID string) string {
	c, err := s.customers.Find(ctx, customerID)
	if err != nil {
		return ""
	}
	return c.Email
}
