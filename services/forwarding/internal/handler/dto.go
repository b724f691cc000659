package handler

import (
	"time"

	"example.com/shipforward/services/forwarding/internal/domain"
)

type AddressDTO struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country"`
}

type CostDTO struct {
	Currency string  `json:"currency" binding:"required,len=3"`
	Amount   float64 `json:"amount" binding:"required,gt=0"`
}

type ItemResponse struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	StoreName    string     `json:"storeName,omitempty"`
	Weight       float64    `json:"weight"`
	Photos       []string   `json:"photos"`
	ReceivedDate *time.Time `json:"receivedDate,omitempty"`
}

// OrderResponse — заказ в ответе API. Веса в граммах.
type OrderResponse struct {
	ID                  string         `json:"id"`
	CustomerID          string         `json:"customerId"`
	HostID              *string        `json:"hostId,omitempty"`
	Status              string         `json:"status"`
	RejectionReason     *string        `json:"rejectionReason,omitempty"`
	OriginCountry       string         `json:"originCountry"`
	Destination         AddressDTO     `json:"destination"`
	Items               []ItemResponse `json:"items"`
	TotalWeight         float64        `json:"totalWeight,omitempty"`
	FinalShipmentCost   *domain.Cost   `json:"finalShipmentCost,omitempty"`
	CalculatorResultURL *string        `json:"calculatorResultUrl,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// CheckoutResponse — ссылка на страницу оплаты.
type CheckoutResponse struct {
	CheckoutID          string `json:"checkoutId"`
	CheckoutRedirectURL string `json:"checkoutRedirectUrl"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:                  o.ID,
		CustomerID:          o.CustomerID,
		HostID:              o.HostID,
		Status:              string(o.Status),
		OriginCountry:       o.OriginCountry,
		Destination:         AddressDTO(o.Destination),
		Items:               make([]ItemResponse, len(o.Items)),
		TotalWeight:         o.TotalWeight,
		FinalShipmentCost:   o.FinalShipmentCost,
		CalculatorResultURL: o.CalculatorResultURL,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
	if o.RejectionReason != nil {
		reason := string(*o.RejectionReason)
		resp.RejectionReason = &reason
	}
	for i, it := range o.Items {
		photos := it.Photos
		if photos == nil {
			photos = []string{}
		}
		resp.Items[i] = ItemResponse{
			ID:           it.ID,
			Title:        it.Title,
			StoreName:    it.StoreName,
			Weight:       it.Weight,
			Photos:       photos,
			ReceivedDate: it.ReceivedDate,
		}
	}
	return resp
}

func toCheckoutResponse(s *domain.CheckoutSession) CheckoutResponse {
	return CheckoutResponse{CheckoutID: s.ID, CheckoutRedirectURL: s.RedirectURL}
}
