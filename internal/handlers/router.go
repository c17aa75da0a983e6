// Package handlers contains the HTTP handlers and routing.
package handlers

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter configures the Gin router with all routes.
func SetupRouter(handler *PaymentHandler, ginMode, serviceAPIKey string) *gin.Engine {
	gin.SetMode(ginMode)

	router := gin.New()
	router.Use(LoggerMiddleware())
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(RequestIDMiddleware())

	// Health check (public)
	router.GET("/health", handler.Health)

	v1 := router.Group("/api/v1")
	{
		// Gateway listing (public, shown on the checkout page)
		v1.GET("/gateways", handler.ListGateways)

		// Checkout (requires Bearer auth)
		payments := v1.Group("/payments")
		payments.Use(ServiceAuthMiddleware(serviceAPIKey))
		{
			payments.POST("/checkout", handler.CreateCheckout)
		}
	}

	// Buyer return from the hosted payment page (public)
	router.GET("/payments/return/:gateway", handler.HandleReturn)

	// Processor callbacks (public, authenticated by callback_secret)
	router.POST("/webhooks/:gateway", handler.HandleWebhook)

	return router
}
