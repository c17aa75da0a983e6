// Package handlers contains middleware for the payment service.
package handlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CORSMiddleware handles Cross-Origin Resource Sharing.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware logs requests like gin.Logger but never writes the
// callback secret carried in notify URLs.
func LoggerMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[GIN] %v | %3d | %13v | %15s | %-7s %#v\n%s",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.StatusCode,
			param.Latency.Truncate(time.Microsecond),
			param.ClientIP,
			param.Method,
			redactPath(param.Path),
			param.ErrorMessage,
		)
	})
}

// redactPath masks the callback_secret query parameter of a logged path.
func redactPath(path string) string {
	base, rawQuery, ok := strings.Cut(path, "?")
	if !ok {
		return path
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return base
	}
	if q.Has("callback_secret") {
		q.Set("callback_secret", "REDACTED")
	}
	return base + "?" + q.Encode()
}

// RequestIDMiddleware adds a unique request ID to each request.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// ServiceAuthMiddleware validates the Bearer token of server-to-server calls
// from the storefront. With no key configured every request is refused.
func ServiceAuthMiddleware(apiKey string) gin.HandlerFunc {
	if apiKey == "" {
		log.Println("Warning: SERVICE_API_KEY not set, checkout API refuses all requests")
	}
	expected := sha256.Sum256([]byte(apiKey))

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(401, ErrorResponse{
				Success: false,
				Error:   "Authorization header required",
				Code:    "UNAUTHORIZED",
			})
			return
		}

		// Expect: Bearer <token>
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(401, ErrorResponse{
				Success: false,
				Error:   "Invalid authorization format",
				Code:    "UNAUTHORIZED",
			})
			return
		}

		presented := sha256.Sum256([]byte(parts[1]))
		if apiKey == "" || subtle.ConstantTimeCompare(presented[:], expected[:]) != 1 {
			c.AbortWithStatusJSON(401, ErrorResponse{
				Success: false,
				Error:   "Invalid service token",
				Code:    "UNAUTHORIZED",
			})
			return
		}

		c.Next()
	}
}
