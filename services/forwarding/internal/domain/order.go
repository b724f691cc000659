// Package domain содержит бизнес-сущности сервиса пересылки: заказ, хост, покупатель
// и метаданные checkout-сессий платёжного шлюза.
package domain

import (
	"math"
	"strings"
	"time"
)

// OrderStatus — статус заказа.
type OrderStatus string

const (
	// OrderStatusDrafted — черновик покупателя. Хост может быть зарезервирован,
	// но заказ остаётся черновиком до оплаты сервисного сбора.
	OrderStatusDrafted OrderStatus = "DRAFTED"

	// OrderStatusConfirmed — сервисный сбор оплачен, хост назначен.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"

	// OrderStatusFinalized — хост получил посылки и указал вес и стоимость доставки.
	OrderStatusFinalized OrderStatus = "FINALIZED"

	// OrderStatusPaid — доставка оплачена. Терминальный статус.
	OrderStatusPaid OrderStatus = "PAID"

	// OrderStatusRejected — нет зоны обслуживания или свободного хоста. Терминальный статус.
	OrderStatusRejected OrderStatus = "REJECTED"
)

// allowedTransitions — единственный источник правды о жизненном цикле заказа.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDrafted:   {OrderStatusConfirmed, OrderStatusRejected},
	OrderStatusConfirmed: {OrderStatusFinalized},
	OrderStatusFinalized: {OrderStatusPaid},
}

// CanTransitionTo проверяет переход по allowedTransitions.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal — из статуса нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// RejectionReason — почему заказ отклонён при подтверждении.
type RejectionReason string

const (
	RejectionServiceUnavailable RejectionReason = "service_unavailable"
	RejectionNoHostAvailable    RejectionReason = "no_host_available"
)

// Address — адрес доставки или адрес хоста.
type Address struct {
	Line1    string
	Line2    string
	City     string
	Postcode string
	Country  string // ISO 3166-1 alpha-3
}

// Cost — сумма с валютой в десятичном виде (как её вводит хост).
type Cost struct {
	Currency string  `json:"currency"` // ISO 4217
	Amount   float64 `json:"amount"`
}

// MinorUnits переводит сумму в минимальные единицы с округлением вниз.
// Сначала отбрасывается шум float64 (19.99*100 = 1998.9999...), затем floor.
func (c Cost) MinorUnits() int64 {
	return int64(math.Floor(math.Round(c.Amount*1e6) / 1e4))
}

// Item — посылка, которую покупатель заказал на адрес хоста.
type Item struct {
	ID           string
	Title        string
	StoreName    string
	Weight       float64 // граммы, оценка покупателя
	Photos       []string
	ReceivedDate *time.Time // выставляется хостом один раз
}

// IsReceived — посылку уже получил хост.
func (i *Item) IsReceived() bool {
	return i.ReceivedDate != nil
}

// Order — агрегат заказа.
type Order struct {
	ID                  string
	CustomerID          string
	HostID              *string // nil, пока заказ не подтверждён
	Status              OrderStatus
	RejectionReason     *RejectionReason
	OriginCountry       string // страна магазинов и хоста
	Destination         Address
	Items               []Item
	TotalWeight         float64 // граммы, итоговый вес от хоста
	FinalShipmentCost   *Cost
	CalculatorResultURL *string
	// ID checkout-сессий, оплата которых перевела заказ дальше.
	ServiceFeeSessionID  *string
	ShipmentFeeSessionID *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Validate проверяет черновик перед сохранением.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.CustomerID) == "" {
		return ErrInvalidCustomerID
	}
	if !isCountryCode(o.OriginCountry) || !isCountryCode(o.Destination.Country) {
		return ErrInvalidCountry
	}
	if o.OriginCountry == o.Destination.Country {
		return ErrSameCountry
	}
	if strings.TrimSpace(o.Destination.Line1) == "" || strings.TrimSpace(o.Destination.City) == "" {
		return ErrInvalidAddress
	}
	if len(o.Items) == 0 {
		return ErrEmptyOrderItems
	}
	for i := range o.Items {
		if strings.TrimSpace(o.Items[i].Title) == "" {
			return ErrInvalidItemTitle
		}
		if o.Items[i].Weight < 0 {
			return ErrInvalidItemWeight
		}
	}
	return nil
}

// ItemByID возвращает посылку заказа или ErrItemNotFound.
func (o *Order) ItemByID(itemID string) (*Item, error) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], nil
		}
	}
	return nil, ErrItemNotFound
}

// IsAssignedTo — заказ назначен этому хосту.
func (o *Order) IsAssignedTo(hostID string) bool {
	return o.HostID != nil && *o.HostID == hostID
}

// ShipmentInfo — данные, которые хост сообщает после получения всех посылок.
type ShipmentInfo struct {
	TotalWeight         float64
	DeliveryCost        Cost
	CalculatorResultURL *string
}

func (s ShipmentInfo) Validate() error {
	if s.TotalWeight <= 0 {
		return ErrInvalidWeight
	}
	if s.DeliveryCost.MinorUnits() <= 0 {
		return ErrInvalidCost
	}
	if len(strings.TrimSpace(s.DeliveryCost.Currency)) != 3 {
		return ErrInvalidCurrency
	}
	return nil
}

// NormalizeCountry приводит код страны к верхнему регистру.
func NormalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func isCountryCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
