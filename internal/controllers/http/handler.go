package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/MAOQIZHANG/orders/internal/domain"
	"github.com/MAOQIZHANG/orders/internal/repository"
	"github.com/MAOQIZHANG/orders/internal/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service *services.OrderService
}

func NewHandler(s *services.OrderService) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Index)

	r.POST("/orders", h.CreateOrder)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/:order_id", h.GetOrder)
	r.PUT("/orders/:order_id", h.UpdateOrder)
	r.PUT("/orders/:order_id/cancel", h.CancelOrder)
	r.DELETE("/orders/:order_id", h.DeleteOrder)

	r.POST("/orders/:order_id/items", h.CreateItem)
	r.GET("/orders/:order_id/items", h.ListItems)
	r.GET("/orders/:order_id/items/:item_id", h.GetItem)
	r.PUT("/orders/:order_id/items/:item_id", h.UpdateItem)
	r.DELETE("/orders/:order_id/items/:item_id", h.DeleteItem)
}

func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "Order REST API Service",
		"version": "1.0",
		"paths":   "/orders",
	})
}

func (h *Handler) CreateOrder(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input, err := req.toDomain()
	if err != nil {
		respondError(c, err)
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/orders/%d", order.ID))
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) ListOrders(c *gin.Context) {
	var f repository.Filter

	if v := c.Query("order_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order_id must be an integer"})
			return
		}
		f.OrderID = &id
	}
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be an integer"})
			return
		}
		f.UserID = &id
	}
	if v := c.Query("status"); v != "" {
		status, err := domain.ParseOrderStatus(v)
		if err != nil {
			respondError(c, err)
			return
		}
		f.Status = &status
	}
	if v := c.Query("name"); v != "" {
		name := v
		f.Name = &name
	}

	orders, err := h.service.ListOrders(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) GetOrder(c *gin.Context) {
	orderID, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	order, err := h.service.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) UpdateOrder(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	orderID, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		respondError(c, err)
		return
	}

	order, err := h.service.UpdateOrder(c.Request.Context(), orderID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	orderID, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	order, err := h.service.CancelOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	orderID, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	if err := h.service.DeleteOrder(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateItem(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	orderID, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input, err := req.toDomain()
	if err != nil {
		respondError(c, err)
		return
	}

	item, err := h.service.CreateItem(c.Request.Context(), orderID, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/orders/%d/items/%d", orderID, item.ID))
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) ListItems(c *gin.Context) {
	orderID, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	items, err := h.service.ListItems(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) GetItem(c *gin.Context) {
	orderID, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}
	item, err := h.service.GetItem(c.Request.Context(), orderID, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// UpdateItem handles the partial item update. An optional ?amount= query
// parameter carries the target quantity for the cost-ledger mode,
// separate from the JSON patch.
func (h *Handler) UpdateItem(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	orderID, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}

	var targetAmount *int64
	if v := c.Query("amount"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be an integer"})
			return
		}
		targetAmount = &n
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		respondError(c, err)
		return
	}

	item, order, err := h.service.UpdateItem(c.Request.Context(), orderID, itemID, patch, targetAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "order": order})
}

func (h *Handler) DeleteItem(c *gin.Context) {
	orderID, ok := pathID(c, "order_id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}
	if err := h.service.DeleteItem(c.Request.Context(), orderID, itemID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return id, true
}

func requireJSON(c *gin.Context) bool {
	if c.ContentType() != "application/json" {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Content-Type must be application/json"})
		return false
	}
	return true
}

// respondError maps the domain error taxonomy onto one stable status per
// category: validation 400, policy 403, absence 404, ownership conflict 409.
func respondError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEditWindowExpired):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrItemNotInOrder):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
