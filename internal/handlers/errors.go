package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fitstack/coinpay/internal/core/domain"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// statusFor maps a classified error to an HTTP status. unknownOrder is the
// status used when the order does not exist.
func statusFor(err error, unknownOrder int) int {
	switch domain.KindOf(err) {
	case domain.KindAuthentication:
		return http.StatusUnauthorized
	case domain.KindValidation:
		switch {
		case errors.Is(err, domain.ErrUnknownGateway):
			return http.StatusNotFound
		case errors.Is(err, domain.ErrOrderNotFound) && domain.CodeOf(err) != "VALIDATION_ERROR":
			return unknownOrder
		}
		return http.StatusBadRequest
	case domain.KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// handleServiceError maps domain errors to HTTP responses. Internal details and
// authentication reasons are not echoed back.
func handleServiceError(c *gin.Context, err error, unknownOrder int) {
	status := statusFor(err, unknownOrder)

	resp := ErrorResponse{Success: false, Code: domain.CodeOf(err)}
	switch status {
	case http.StatusUnauthorized:
		resp.Error = "Unauthorized"
	case http.StatusInternalServerError:
		resp.Error = "Internal server error"
	default:
		resp.Error = err.Error()
		var svcErr *domain.ServiceError
		if errors.As(err, &svcErr) && svcErr.Message != "" {
			resp.Error = svcErr.Message
		}
	}
	c.JSON(status, resp)
}
