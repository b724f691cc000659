package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/httputil"
)

// HostHandler — операции хоста над назначенными ему заказами.
type HostHandler struct {
	hosts HostService
}

func NewHostHandler(hosts HostService) *HostHandler {
	return &HostHandler{hosts: hosts}
}

type SetAvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

type AddPhotosRequest struct {
	Photos []string `json:"photos" binding:"required,min=1"`
}

// ShipmentInfoRequest — итог после получения всех посылок. TotalWeight в граммах.
type ShipmentInfoRequest struct {
	TotalWeight         float64 `json:"totalWeight" binding:"required,gt=0"`
	DeliveryCost        CostDTO `json:"deliveryCost" binding:"required"`
	CalculatorResultURL *string `json:"calculatorResultUrl" binding:"omitempty,url"`
}

// SetAvailability — PUT /api/v1/host/availability
func (h *HostHandler) SetAvailability(c *gin.Context) {
	var req SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Поле available обязательно")
		return
	}
	if err := h.hosts.SetAvailability(c.Request.Context(), httputil.SubjectID(c), *req.Available); err != nil {
		HandleError(c, err, "SetAvailability")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetOrder — GET /api/v1/host/orders/:id
func (h *HostHandler) GetOrder(c *gin.Context) {
	order, err := h.hosts.GetHostOrder(c.Request.Context(), c.Param("id"), httputil.SubjectID(c))
	if err != nil {
		HandleError(c, err, "HostGetOrder")
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// ReceiveItem — POST /api/v1/host/orders/:id/items/:itemId/receive
func (h *HostHandler) ReceiveItem(c *gin.Context) {
	err := h.hosts.ReceiveItem(c.Request.Context(), httputil.SubjectID(c), c.Param("id"), c.Param("itemId"))
	if err != nil {
		HandleError(c, err, "ReceiveItem")
		return
	}
	c.Status(http.StatusNoContent)
}

// AddItemPhotos — POST /api/v1/host/orders/:id/items/:itemId/photos
func (h *HostHandler) AddItemPhotos(c *gin.Context) {
	var req AddPhotosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Нужно передать хотя бы одну ссылку на фото")
		return
	}
	err := h.hosts.AddItemPhotos(c.Request.Context(), httputil.SubjectID(c), c.Param("id"), c.Param("itemId"), req.Photos)
	if err != nil {
		HandleError(c, err, "AddItemPhotos")
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitShipmentInfo — POST /api/v1/host/orders/:id/shipment-info
func (h *HostHandler) SubmitShipmentInfo(c *gin.Context) {
	var req ShipmentInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Невалидные данные отправки")
		return
	}

	info := domain.ShipmentInfo{
		TotalWeight:         req.TotalWeight,
		DeliveryCost:        domain.Cost{Currency: req.DeliveryCost.Currency, Amount: req.DeliveryCost.Amount},
		CalculatorResultURL: req.CalculatorResultURL,
	}
	if err := h.hosts.SubmitShipmentInfo(c.Request.Context(), httputil.SubjectID(c), c.Param("id"), info); err != nil {
		HandleError(c, err, "SubmitShipmentInfo")
		return
	}
	c.Status(http.StatusNoContent)
}
