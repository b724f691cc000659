package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/shipforward/pkg/logger"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/httputil"
	"example.com/shipforward/services/forwarding/internal/saga"
)

// OrderHandler — заказы покупателя.
type OrderHandler struct {
	orders OrderService
}

func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// CreateOrderRequest — черновик заказа. Вес в граммах, страны в ISO 3166-1 alpha-3.
type CreateOrderRequest struct {
	OriginCountry string              `json:"originCountry" binding:"required"`
	Destination   AddressRequest      `json:"destination" binding:"required"`
	Items         []CreateItemRequest `json:"items" binding:"required,min=1,dive"`
}

type AddressRequest struct {
	Line1    string `json:"line1" binding:"required"`
	Line2    string `json:"line2"`
	City     string `json:"city" binding:"required"`
	Postcode string `json:"postcode"`
	Country  string `json:"country" binding:"required"`
}

type CreateItemRequest struct {
	Title     string  `json:"title" binding:"required"`
	StoreName string  `json:"storeName"`
	Weight    float64 `json:"weight" binding:"gte=0"`
}

// CreateOrder — POST /api/v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Невалидный запрос на создание заказа")
		badRequest(c, "Невалидные данные запроса")
		return
	}

	in := saga.DraftInput{
		OriginCountry: req.OriginCountry,
		Destination:   domain.Address(req.Destination),
		Items:         make([]saga.DraftItem, len(req.Items)),
	}
	for i, it := range req.Items {
		in.Items[i] = saga.DraftItem{Title: it.Title, StoreName: it.StoreName, Weight: it.Weight}
	}

	order, err := h.orders.CreateDraft(ctx, httputil.SubjectID(c), in)
	if err != nil {
		HandleError(c, err, "CreateOrder")
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

// GetOrder — GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), httputil.SubjectID(c))
	if err != nil {
		HandleError(c, err, "GetOrder")
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// DeleteOrder — DELETE /api/v1/orders/:id
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	if err := h.orders.DeleteDraft(c.Request.Context(), c.Param("id"), httputil.SubjectID(c)); err != nil {
		HandleError(c, err, "DeleteOrder")
		return
	}
	c.Status(http.StatusNoContent)
}

// ConfirmOrder — POST /api/v1/orders/:id/confirm
// Заказ остаётся DRAFTED до оплаты сервисного сбора.
func (h *OrderHandler) ConfirmOrder(c *gin.Context) {
	sess, err := h.orders.Confirm(c.Request.Context(), c.Param("id"), httputil.SubjectID(c))
	if err != nil {
		HandleError(c, err, "ConfirmOrder")
		return
	}
	c.JSON(http.StatusOK, toCheckoutResponse(sess))
}

// PayShipment — POST /api/v1/orders/:id/pay-shipment
func (h *OrderHandler) PayShipment(c *gin.Context) {
	sess, err := h.orders.PayShipment(c.Request.Context(), c.Param("id"), httputil.SubjectID(c))
	if err != nil {
		HandleError(c, err, "PayShipment")
		return
	}
	c.JSON(http.StatusOK, toCheckoutResponse(sess))
}
