package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDKey is the context key for the request ID
	RequestIDKey = "request_id"
	// RequestIDHeader is the HTTP header name for the request ID
	RequestIDHeader = "X-Request-ID"

	// maxHeaderIDLength caps caller-supplied IDs so they cannot bloat logs.
	maxHeaderIDLength = 128
)

// RequestID tags every request with an ID, reusing a sane upstream
// X-Request-ID header and generating a UUIDv4 otherwise.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := sanitizeHeaderID(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		c.Next()
	}
}

// GetRequestID retrieves the request ID from the Gin context.
// Returns an empty string if not found.
func GetRequestID(c *gin.Context) string {
	return contextString(c, RequestIDKey)
}

// sanitizeHeaderID returns id when it is short and printable ASCII,
// otherwise an empty string.
func sanitizeHeaderID(id string) string {
	if len(id) > maxHeaderIDLength {
		return ""
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return ""
		}
	}
	return id
}

func contextString(c *gin.Context, key string) string {
	if value, exists := c.Get(key); exists {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return ""
}
