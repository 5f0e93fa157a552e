package delivery

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

type OrderHandler struct {
	orders    domain.OrderUseCase
	lifecycle domain.OrderLifecycleUseCase
	log       *logrus.Logger
}

func NewOrderHandler(orders domain.OrderUseCase, lifecycle domain.OrderLifecycleUseCase, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		lifecycle: lifecycle,
		log:       logger,
	}
}

func (h *OrderHandler) RegisterRoutes(router gin.IRouter) {
	orders := router.Group("/orders")
	{
		orders.POST("", h.Checkout)
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrderByID)
		orders.POST("/:id/cancel", h.CancelOrder)
		orders.POST("/:id/reorder", h.Reorder)
	}
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	var data domain.CheckoutData
	if err := c.ShouldBindJSON(&data); err != nil {
		h.log.Warnf("Handler: Failed to bind JSON for checkout (%s): %v", owner, err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	h.log.Infof("Handler: Processing checkout for %s", owner)

	order, err := h.orders.Checkout(c.Request.Context(), owner, data)
	if err != nil {
		handleError(c, h.log, "create order", err)
		return
	}

	h.log.Infof("Handler: Order %s created for %s", order.OrderNumber, owner)
	SuccessResponse(c, http.StatusCreated, "Order created successfully", order)
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, h.log, "order")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id, owner)
	if err != nil {
		handleError(c, h.log, "retrieve order", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Order retrieved successfully", order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	limit, okLimit := queryInt(c, "limit", 0)
	offset, okOffset := queryInt(c, "offset", 0)
	if !okLimit || !okOffset {
		ErrorResponse(c, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), owner, limit, offset)
	if err != nil {
		handleError(c, h.log, "list orders", err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	SuccessResponse(c, http.StatusOK, "Orders retrieved successfully", orders)
}

type cancelRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, h.log, "order")
	if !ok {
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.lifecycle.CancelOrder(c.Request.Context(), id, owner, req.Reason)
	if err != nil {
		handleError(c, h.log, "cancel order", err)
		return
	}
	h.log.Infof("Handler: Order %s cancelled by %s", order.OrderNumber, owner)
	SuccessResponse(c, http.StatusOK, "Order cancelled", order)
}

func (h *OrderHandler) Reorder(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, h.log, "order")
	if !ok {
		return
	}

	result, err := h.orders.Reorder(c.Request.Context(), id, owner)
	if err != nil {
		handleError(c, h.log, "reorder", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Items added to cart", result)
}
