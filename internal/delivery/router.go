package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
	"github.com/Rubin-11/coffee-tea-shop/internal/middleware"
)

type RouterDeps struct {
	Carts      domain.CartUseCase
	Orders     domain.OrderUseCase
	Lifecycle  domain.OrderLifecycleUseCase
	AdminToken string
}

func NewRouter(deps RouterDeps, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		SuccessResponse(c, http.StatusOK, "OK", nil)
	})

	shop := router.Group("/")
	shop.Use(middleware.Identity(logger))
	NewCartHandler(deps.Carts, deps.Orders, logger).RegisterRoutes(shop)
	NewOrderHandler(deps.Orders, deps.Lifecycle, logger).RegisterRoutes(shop)

	admin := router.Group("/")
	admin.Use(middleware.AdminOnly(deps.AdminToken, logger))
	NewAdminHandler(deps.Lifecycle, logger).RegisterRoutes(admin)

	return router
}
