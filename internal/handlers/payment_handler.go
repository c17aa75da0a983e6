// Package handlers contains the HTTP handlers for the payment service.
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fitstack/coinpay/internal/core/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	gateways  *service.Gateways
	settings  *service.SettingsService
	initiator *service.Initiator
	callbacks *service.CallbackService
	returns   *service.ReturnService
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(
	gateways *service.Gateways,
	settings *service.SettingsService,
	initiator *service.Initiator,
	callbacks *service.CallbackService,
	returns *service.ReturnService,
) *PaymentHandler {
	return &PaymentHandler{
		gateways:  gateways,
		settings:  settings,
		initiator: initiator,
		callbacks: callbacks,
		returns:   returns,
	}
}

// CheckoutRequest is the JSON body of the checkout endpoint.
type CheckoutRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Gateway string `json:"gateway" binding:"required"`
}

// CheckoutResponse is returned when a payment request was created.
type CheckoutResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"order_id"`
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
}

// GatewayView is one entry of the gateway listing.
type GatewayView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateCheckout handles POST /api/v1/payments/checkout
// Creates a payment request at the chosen processor for an existing order.
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "Invalid request: " + err.Error(),
			Code:    "VALIDATION_ERROR",
		})
		return
	}

	redirect, err := h.initiator.Initiate(c.Request.Context(), req.Gateway, req.OrderID)
	if err != nil {
		log.Printf("[Checkout] order %s via %s: %v", req.OrderID, req.Gateway, err)
		handleServiceError(c, err, http.StatusNotFound)
		return
	}

	c.JSON(http.StatusOK, CheckoutResponse{
		Success:     true,
		OrderID:     redirect.OrderID,
		Reference:   redirect.Reference,
		RedirectURL: redirect.RedirectURL,
	})
}

// maxWebhookBody caps processor callback bodies.
const maxWebhookBody = 64 << 10

// HandleWebhook handles POST /webhooks/:gateway
// Receives payment status callbacks. The callback secret travels in the
// callback_secret query parameter of the notify URL.
func (h *PaymentHandler) HandleWebhook(c *gin.Context) {
	gatewayID := c.Param("gateway")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := c.GetRawData()
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		log.Printf("[Callback] %s webhook body over %d bytes rejected", gatewayID, maxWebhookBody)
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Success: false,
			Error:   "request body too large",
			Code:    "PAYLOAD_TOO_LARGE",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "could not read request body",
			Code:    "VALIDATION_ERROR",
		})
		return
	}

	result, err := h.callbacks.HandleCallback(c.Request.Context(), service.CallbackRequest{
		GatewayID:       gatewayID,
		PresentedSecret: c.Query("callback_secret"),
		Body:            body,
	})
	if err != nil {
		log.Printf("[Callback] %s webhook error: %v", gatewayID, err)
		handleServiceError(c, err, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "processed",
		"action":   result.Action,
		"order_id": result.OrderID,
	})
}

// HandleReturn handles GET /payments/return/:gateway
// Buyers land here from the processor's hosted page and are redirected to the
// storefront.
func (h *PaymentHandler) HandleReturn(c *gin.Context) {
	gatewayID := c.Param("gateway")

	target, err := h.returns.HandleReturn(c.Request.Context(), gatewayID, c.Request.URL.Query())
	if err != nil {
		log.Printf("[Return] %s return error: %v", gatewayID, err)
		handleServiceError(c, err, http.StatusNotFound)
		return
	}

	c.Redirect(http.StatusFound, target)
}

// ListGateways handles GET /api/v1/gateways
// Lists the enabled gateways for the storefront checkout page.
func (h *PaymentHandler) ListGateways(c *gin.Context) {
	enabled, err := h.settings.ListEnabled(c.Request.Context())
	if err != nil {
		log.Printf("[Settings] failed to list gateways: %v", err)
		handleServiceError(c, err, http.StatusNotFound)
		return
	}

	views := make([]GatewayView, 0, len(enabled))
	for _, s := range enabled {
		processor, err := h.gateways.Lookup(s.GatewayID)
		if err != nil {
			continue
		}
		views = append(views, GatewayView{
			ID:          s.GatewayID,
			Name:        processor.Brand().DisplayName,
			Title:       s.Title,
			Description: s.Description,
		})
	}

	c.JSON(http.StatusOK, gin.H{"gateways": views})
}

// Health handles GET /health
func (h *PaymentHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "coinpay",
		"version": "1.0.0",
	})
}
