// Package repository — хранилище сервиса пересылки на MySQL (GORM).
// Все методы берут транзакцию из ctx через db.Conn, поэтому несколько вызовов
// группируются в одну транзакцию снаружи, через db.Transactor.
package repository

import (
	"time"

	"example.com/shipforward/services/forwarding/internal/domain"
)

// OrderModel — строка таблицы orders.
type OrderModel struct {
	ID                   string           `gorm:"column:id;type:varchar(36);primaryKey"`
	CustomerID           string           `gorm:"column:customer_id;type:varchar(36);not null;index"`
	HostID               *string          `gorm:"column:host_id;type:varchar(36);index"`
	Status               string           `gorm:"column:status;type:varchar(20);not null;index"`
	RejectionReason      *string          `gorm:"column:rejection_reason;type:varchar(32)"`
	OriginCountry        string           `gorm:"column:origin_country;type:char(3);not null"`
	DestLine1            string           `gorm:"column:dest_line1;type:varchar(255);not null"`
	DestLine2            string           `gorm:"column:dest_line2;type:varchar(255)"`
	DestCity             string           `gorm:"column:dest_city;type:varchar(100);not null"`
	DestPostcode         string           `gorm:"column:dest_postcode;type:varchar(20)"`
	DestCountry          string           `gorm:"column:dest_country;type:char(3);not null"`
	TotalWeight          float64          `gorm:"column:total_weight;not null;default:0"`
	ShipmentCurrency     *string          `gorm:"column:shipment_currency;type:char(3)"`
	ShipmentAmount       *float64         `gorm:"column:shipment_amount;type:decimal(12,4)"`
	CalculatorResultURL  *string          `gorm:"column:calculator_result_url;type:varchar(2048)"`
	ServiceFeeSessionID  *string          `gorm:"column:service_fee_session_id;type:varchar(255)"`
	ShipmentFeeSessionID *string          `gorm:"column:shipment_fee_session_id;type:varchar(255)"`
	CreatedAt            time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	Items                []OrderItemModel `gorm:"foreignKey:OrderID;references:ID;constraint:OnDelete:CASCADE"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel — строка таблицы order_items.
type OrderItemModel struct {
	ID           string           `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID      string           `gorm:"column:order_id;type:varchar(36);not null;index"`
	Title        string           `gorm:"column:title;type:varchar(255);not null"`
	StoreName    string           `gorm:"column:store_name;type:varchar(255)"`
	Weight       float64          `gorm:"column:weight;not null;default:0"`
	ReceivedDate *time.Time       `gorm:"column:received_date"`
	Position     int              `gorm:"column:position;not null"`
	Photos       []ItemPhotoModel `gorm:"foreignKey:ItemID;references:ID;constraint:OnDelete:CASCADE"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// ItemPhotoModel — ссылка на фото посылки. Фото только добавляются.
type ItemPhotoModel struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	ItemID    string    `gorm:"column:item_id;type:varchar(36);not null;index"`
	URL       string    `gorm:"column:url;type:varchar(2048);not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ItemPhotoModel) TableName() string {
	return "item_photos"
}

// HostModel — строка таблицы hosts.
// CapacityPaused отличает снятие с подбора системой (лимит заказов) от решения самого хоста.
type HostModel struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Email          string    `gorm:"column:email;type:varchar(255);not null;uniqueIndex"`
	Name           string    `gorm:"column:name;type:varchar(255);not null"`
	Line1          string    `gorm:"column:line1;type:varchar(255);not null"`
	Line2          string    `gorm:"column:line2;type:varchar(255)"`
	City           string    `gorm:"column:city;type:varchar(100);not null"`
	Postcode       string    `gorm:"column:postcode;type:varchar(20)"`
	Country        string    `gorm:"column:country;type:char(3);not null;index:idx_hosts_country_available"`
	Available      bool      `gorm:"column:available;not null;default:false;index:idx_hosts_country_available"`
	CapacityPaused bool      `gorm:"column:capacity_paused;not null;default:false"`
	MaxOrders      int       `gorm:"column:max_orders;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (HostModel) TableName() string {
	return "hosts"
}

// HostOrderModel — привязка заказа к хосту: резерв на время оплаты или назначение.
// order_id уникален: у заказа не больше одного хоста.
type HostOrderModel struct {
	OrderID       string     `gorm:"column:order_id;type:varchar(36);primaryKey"`
	HostID        string     `gorm:"column:host_id;type:varchar(36);not null;index"`
	State         string     `gorm:"column:state;type:varchar(16);not null;index:idx_host_orders_expiry"`
	ReservedUntil *time.Time `gorm:"column:reserved_until;index:idx_host_orders_expiry"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (HostOrderModel) TableName() string {
	return "host_orders"
}

// CustomerModel — строка таблицы customers.
type CustomerModel struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Email     string    `gorm:"column:email;type:varchar(255);not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CustomerModel) TableName() string {
	return "customers"
}

// CustomerOrderModel — заказ в списке покупателя.
type CustomerOrderModel struct {
	CustomerID string    `gorm:"column:customer_id;type:varchar(36);primaryKey"`
	OrderID    string    `gorm:"column:order_id;type:varchar(36);primaryKey"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CustomerOrderModel) TableName() string {
	return "customer_orders"
}

func (m *OrderModel) toDomain() *domain.Order {
	o := &domain.Order{
		ID:            m.ID,
		CustomerID:    m.CustomerID,
		HostID:        m.HostID,
		Status:        domain.OrderStatus(m.Status),
		OriginCountry: m.OriginCountry,
		Destination: domain.Address{
			Line1:    m.DestLine1,
			Line2:    m.DestLine2,
			City:     m.DestCity,
			Postcode: m.DestPostcode,
			Country:  m.DestCountry,
		},
		TotalWeight:          m.TotalWeight,
		CalculatorResultURL:  m.CalculatorResultURL,
		ServiceFeeSessionID:  m.ServiceFeeSessionID,
		ShipmentFeeSessionID: m.ShipmentFeeSessionID,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		Items:                make([]domain.Item, len(m.Items)),
	}
	if m.RejectionReason != nil {
		reason := domain.RejectionReason(*m.RejectionReason)
		o.RejectionReason = &reason
	}
	if m.ShipmentCurrency != nil && m.ShipmentAmount != nil {
		o.FinalShipmentCost = &domain.Cost{Currency: *m.ShipmentCurrency, Amount: *m.ShipmentAmount}
	}
	for i := range m.Items {
		o.Items[i] = m.Items[i].toDomain()
	}
	return o
}

func (m *OrderItemModel) toDomain() domain.Item {
	item := domain.Item{
		ID:           m.ID,
		Title:        m.Title,
		StoreName:    m.StoreName,
		Weight:       m.Weight,
		ReceivedDate: m.ReceivedDate,
	}
	for _, p := range m.Photos {
		item.Photos = append(item.Photos, p.URL)
	}
	return item
}

func orderModelFromDomain(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:                   o.ID,
		CustomerID:           o.CustomerID,
		HostID:               o.HostID,
		Status:               string(o.Status),
		OriginCountry:        o.OriginCountry,
		DestLine1:            o.Destination.Line1,
		DestLine2:            o.Destination.Line2,
		DestCity:             o.Destination.City,
		DestPostcode:         o.Destination.Postcode,
		DestCountry:          o.Destination.Country,
		TotalWeight:          o.TotalWeight,
		CalculatorResultURL:  o.CalculatorResultURL,
		ServiceFeeSessionID:  o.ServiceFeeSessionID,
		ShipmentFeeSessionID: o.ShipmentFeeSessionID,
		Items:                make([]OrderItemModel, len(o.Items)),
	}
	if o.RejectionReason != nil {
		reason := string(*o.RejectionReason)
		m.RejectionReason = &reason
	}
	if o.FinalShipmentCost != nil {
		m.ShipmentCurrency = &o.FinalShipmentCost.Currency
		m.ShipmentAmount = &o.FinalShipmentCost.Amount
	}
	for i, item := range o.Items {
		im := OrderItemModel{
			ID:           item.ID,
			OrderID:      o.ID,
			Title:        item.Title,
			StoreName:    item.StoreName,
			Weight:       item.Weight,
			ReceivedDate: item.ReceivedDate,
			Position:     i,
		}
		for _, url := range item.Photos {
			im.Photos = append(im.Photos, ItemPhotoModel{ItemID: item.ID, URL: url})
		}
		m.Items[i] = im
	}
	return m
}

func (m *HostModel) toDomain(orderIDs []string) *domain.Host {
	return &domain.Host{
		ID:    m.ID,
		Email: m.Email,
		Name:  m.Name,
		Address: domain.Address{
			Line1:    m.Line1,
			Line2:    m.Line2,
			City:     m.City,
			Postcode: m.Postcode,
			Country:  m.Country,
		},
		Available: m.Available,
		MaxOrders: m.MaxOrders,
		OrderIDs:  orderIDs,
	}
}

func hostModelFromDomain(h *domain.Host) *HostModel {
	return &HostModel{
		ID:        h.ID,
		Email:     h.Email,
		Name:      h.Name,
		Line1:     h.Address.Line1,
		Line2:     h.Address.Line2,
		City:      h.Address.City,
		Postcode:  h.Address.Postcode,
		Country:   h.Address.Country,
		Available: h.Available,
		MaxOrders: h.MaxOrders,
	}
}
