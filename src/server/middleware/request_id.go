package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDKey is the context key for the request ID
	RequestIDKey = "request_id"

	// HeaderXRequestID is also used on responses
	HeaderXRequestID     = "X-Request-ID"
	HeaderXCorrelationID = "X-Correlation-ID"
	HeaderXB3TraceID     = "X-B3-TraceId"
)

// RequestID reuses an incoming request ID or generates a UUID v4, stores it
// on the context and echoes it in the response headers
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := extractRequestID(c)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(HeaderXRequestID, requestID)

		c.Next()
	}
}

// extractRequestID checks the supported headers in priority order
func extractRequestID(c *gin.Context) string {
	for _, header := range []string{HeaderXRequestID, HeaderXCorrelationID, HeaderXB3TraceID} {
		if id := c.GetHeader(header); id != "" && len(id) <= 128 {
			return id
		}
	}
	return ""
}

// GetRequestID retrieves the request ID from the context
// Returns empty string if not found
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
