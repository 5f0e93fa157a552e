package delivery

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

// AdminHandler exposes staff-only status changes. Routes must be mounted
// behind middleware.AdminOnly.
type AdminHandler struct {
	lifecycle domain.OrderLifecycleUseCase
	log       *logrus.Logger
}

func NewAdminHandler(lifecycle domain.OrderLifecycleUseCase, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		lifecycle: lifecycle,
		log:       logger,
	}
}

func (h *AdminHandler) RegisterRoutes(router gin.IRouter) {
	orders := router.Group("/admin/orders")
	{
		orders.POST("/:id/pay", h.transition("mark order as paid", h.lifecycle.MarkAsPaid))
		orders.POST("/:id/payment-failed", h.transition("mark payment as failed", h.lifecycle.MarkPaymentFailed))
		orders.POST("/:id/processing", h.transition("start processing order", h.lifecycle.StartProcessing))
		orders.POST("/:id/ship", h.transition("mark order as shipped", h.lifecycle.MarkShipped))
		orders.POST("/:id/deliver", h.transition("mark order as delivered", h.lifecycle.MarkDelivered))
		orders.PATCH("/:id/notes", h.SetNotes)
	}
}

func (h *AdminHandler) transition(action string, apply func(context.Context, int64) (*domain.Order, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, h.log, "order")
		if !ok {
			return
		}
		order, err := apply(c.Request.Context(), id)
		if err != nil {
			handleError(c, h.log, action, err)
			return
		}
		h.log.Infof("Handler: Admin action %q applied to order %s, status=%s payment=%s",
			action, order.OrderNumber, order.Status, order.PaymentStatus)
		SuccessResponse(c, http.StatusOK, "Order updated", order)
	}
}

type notesRequest struct {
	AdminNotes *string `json:"admin_notes" binding:"required"`
}

func (h *AdminHandler) SetNotes(c *gin.Context) {
	id, ok := parseIDParam(c, h.log, "order")
	if !ok {
		return
	}
	var req notesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: 'admin_notes' field is required")
		return
	}

	order, err := h.lifecycle.SetAdminNotes(c.Request.Context(), id, *req.AdminNotes)
	if err != nil {
		handleError(c, h.log, "update admin notes", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Order notes updated", order)
}
