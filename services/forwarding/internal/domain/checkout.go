package domain

import (
	"fmt"
	"time"
)

// FeeType — дискриминатор в метаданных checkout-сессии.
type FeeType string

const (
	FeeTypeService  FeeType = "Service"
	FeeTypeShipment FeeType = "Shipment"
)

// Ключи метаданных. Должны совпадать байт в байт при записи и чтении.
const (
	MetadataFeeType = "feeType"
	MetadataOrderID = "orderId"
	MetadataHostID  = "hostId"
)

// CheckoutMetadata — закрытое объединение вариантов метаданных.
// Реализуется только ServiceFeeMetadata и ShipmentFeeMetadata.
type CheckoutMetadata interface {
	FeeType() FeeType
	ToMap() map[string]string
	isCheckoutMetadata()
}

// ServiceFeeMetadata — оплата сервисного сбора: подтверждение заказа с хостом.
type ServiceFeeMetadata struct {
	OrderID string
	HostID  string
}

func (ServiceFeeMetadata) FeeType() FeeType    { return FeeTypeService }
func (ServiceFeeMetadata) isCheckoutMetadata() {}

func (m ServiceFeeMetadata) ToMap() map[string]string {
	return map[string]string{
		MetadataFeeType: string(FeeTypeService),
		MetadataOrderID: m.OrderID,
		MetadataHostID:  m.HostID,
	}
}

// ShipmentFeeMetadata — оплата доставки финализированного заказа.
type ShipmentFeeMetadata struct {
	OrderID string
}

func (ShipmentFeeMetadata) FeeType() FeeType    { return FeeTypeShipment }
func (ShipmentFeeMetadata) isCheckoutMetadata() {}

func (m ShipmentFeeMetadata) ToMap() map[string]string {
	return map[string]string{
		MetadataFeeType: string(FeeTypeShipment),
		MetadataOrderID: m.OrderID,
	}
}

// ParseCheckoutMetadata восстанавливает вариант по feeType.
// Неизвестный feeType или неполный payload — ErrUnrecognizedPayload.
func ParseCheckoutMetadata(md map[string]string) (CheckoutMetadata, error) {
	orderID := md[MetadataOrderID]

	switch FeeType(md[MetadataFeeType]) {
	case FeeTypeService:
		hostID := md[MetadataHostID]
		if orderID == "" || hostID == "" {
			return nil, fmt.Errorf("%w: feeType=Service без orderId/hostId", ErrUnrecognizedPayload)
		}
		return ServiceFeeMetadata{OrderID: orderID, HostID: hostID}, nil
	case FeeTypeShipment:
		if orderID == "" {
			return nil, fmt.Errorf("%w: feeType=Shipment без orderId", ErrUnrecognizedPayload)
		}
		return ShipmentFeeMetadata{OrderID: orderID}, nil
	default:
		return nil, fmt.Errorf("%w: feeType=%q", ErrUnrecognizedPayload, md[MetadataFeeType])
	}
}

// LineItem — единственная позиция checkout-сессии.
type LineItem struct {
	Description string
	Price       Cost
}

// CheckoutSession — ответ шлюза: ID сессии и адрес страницы оплаты.
type CheckoutSession struct {
	ID          string
	RedirectURL string
}

// CompletedCheckout — проверенное событие «оплата завершена».
type CompletedCheckout struct {
	EventID   string
	SessionID string
	Metadata  map[string]string
}

// CheckoutRequest — запрос на создание checkout-сессии.
type CheckoutRequest struct {
	LineItem      LineItem
	Metadata      CheckoutMetadata
	CustomerEmail string // подставляется в форму оплаты, если известен
	SuccessURL    string
	CancelURL     string
	ExpiresAt     time.Time
}
