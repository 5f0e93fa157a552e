package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
	"github.com/Rubin-11/coffee-tea-shop/internal/middleware"
)

type Response struct {
	Status  string      `json:"Status"`
	Message string      `json:"Message"`
	Data    interface{} `json:"Data,omitempty"`
}

func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Status:  "Success",
		Message: message,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Status:  "Fail",
		Message: message,
	})
}

func errorResponseWithData(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Status:  "Fail",
		Message: message,
		Data:    data,
	})
}

func mapErrorToStatus(err error) int {
	var (
		validationErr  *domain.ValidationError
		stockErr       *domain.InsufficientStockError
		unavailableErr *domain.ItemsUnavailableError
		notCancellable *domain.NotCancellableError
		transitionErr  *domain.InvalidTransitionError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidIdentity), errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrCartItemNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.As(err, &stockErr),
		errors.As(err, &unavailableErr),
		errors.As(err, &notCancellable),
		errors.As(err, &transitionErr),
		errors.Is(err, domain.ErrProductUnavailable),
		errors.Is(err, domain.ErrPaymentSettled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOrderNumberConflict):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorData exposes the structured part of an error to the client.
func errorData(err error) interface{} {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return gin.H{"fields": validationErr.Fields}
	}
	var unavailableErr *domain.ItemsUnavailableError
	if errors.As(err, &unavailableErr) {
		return gin.H{"unavailable_items": unavailableErr.Items}
	}
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		return gin.H{
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		}
	}
	return nil
}

// handleError logs err and writes the matching envelope. Internal errors are
// not echoed back to the client.
func handleError(c *gin.Context, log *logrus.Logger, action string, err error) {
	statusCode := mapErrorToStatus(err)
	if statusCode >= http.StatusInternalServerError {
		log.Errorf("Handler: Failed to %s: %v", action, err)
		ErrorResponse(c, statusCode, "Failed to "+action)
		return
	}
	log.Warnf("Handler: Failed to %s: %v", action, err)
	errorResponseWithData(c, statusCode, "Failed to "+action+": "+err.Error(), errorData(err))
}

func requireIdentity(c *gin.Context, log *logrus.Logger) (domain.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		log.Error("Handler: Identity missing from request context")
		ErrorResponse(c, http.StatusUnauthorized, "Customer identification missing")
		return domain.Identity{}, false
	}
	return id, true
}

func parseIDParam(c *gin.Context, log *logrus.Logger, what string) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		log.Warnf("Handler: Invalid %s ID parameter: %s", what, raw)
		ErrorResponse(c, http.StatusBadRequest, "Invalid "+what+" ID format")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
