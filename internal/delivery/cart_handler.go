package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

type CartHandler struct {
	carts  domain.CartUseCase
	orders domain.OrderUseCase
	log    *logrus.Logger
}

func NewCartHandler(carts domain.CartUseCase, orders domain.OrderUseCase, logger *logrus.Logger) *CartHandler {
	return &CartHandler{
		carts:  carts,
		orders: orders,
		log:    logger,
	}
}

func (h *CartHandler) RegisterRoutes(router gin.IRouter) {
	cart := router.Group("/cart")
	{
		cart.GET("", h.GetCart)
		cart.DELETE("", h.ClearCart)
		cart.POST("/items", h.AddItem)
		cart.PATCH("/items/:id", h.UpdateItem)
		cart.DELETE("/items/:id", h.RemoveItem)
		cart.GET("/availability", h.CheckAvailability)
		cart.POST("/sync-prices", h.SyncPrices)
		cart.GET("/quote", h.Quote)
		cart.GET("/quotes", h.QuoteAll)
	}
}

type addItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

func (h *CartHandler) GetCart(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	summary, err := h.carts.Summary(c.Request.Context(), owner)
	if err != nil {
		handleError(c, h.log, "load cart", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Cart retrieved successfully", summary)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Handler: Failed to bind JSON for add cart item (%s): %v", owner, err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := h.carts.AddItem(c.Request.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		handleError(c, h.log, "add item to cart", err)
		return
	}
	h.log.Infof("Handler: Product %d added to cart of %s", req.ProductID, owner)
	SuccessResponse(c, http.StatusCreated, "Item added to cart", item)
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, h.log, "cart item")
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := h.carts.UpdateItem(c.Request.Context(), owner, itemID, req.Quantity)
	if err != nil {
		handleError(c, h.log, "update cart item", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Cart item updated", item)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, h.log, "cart item")
	if !ok {
		return
	}

	removed, err := h.carts.RemoveItem(c.Request.Context(), owner, itemID)
	if err != nil {
		handleError(c, h.log, "remove cart item", err)
		return
	}
	if !removed {
		ErrorResponse(c, http.StatusNotFound, "Cart item not found")
		return
	}
	SuccessResponse(c, http.StatusOK, "Cart item removed", nil)
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	n, err := h.carts.Clear(c.Request.Context(), owner)
	if err != nil {
		handleError(c, h.log, "clear cart", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Cart cleared", gin.H{"removed": n})
}

func (h *CartHandler) CheckAvailability(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	availability, err := h.carts.CheckAvailability(c.Request.Context(), owner)
	if err != nil {
		handleError(c, h.log, "check cart availability", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Availability checked", availability)
}

func (h *CartHandler) SyncPrices(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	changed, err := h.carts.SyncPrices(c.Request.Context(), owner)
	if err != nil {
		handleError(c, h.log, "sync cart prices", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Cart prices synchronized", gin.H{"updated": changed})
}

func (h *CartHandler) Quote(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	method := domain.DeliveryMethod(c.DefaultQuery("delivery_method", string(domain.DeliveryPickup)))

	quote, err := h.orders.QuoteCart(c.Request.Context(), owner, method)
	if err != nil {
		handleError(c, h.log, "quote cart", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Quote calculated", quote)
}

func (h *CartHandler) QuoteAll(c *gin.Context) {
	owner, ok := requireIdentity(c, h.log)
	if !ok {
		return
	}
	quotes, err := h.orders.QuoteAllMethods(c.Request.Context(), owner)
	if err != nil {
		handleError(c, h.log, "quote cart", err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Quotes calculated", quotes)
}
