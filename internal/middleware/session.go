package middleware

import "github.com/gin-gonic/gin"

const (
	// SessionIDKey is the context key for the estimation session ID
	SessionIDKey = "session_id"
	// SessionIDHeader identifies the browser session issuing estimations.
	// A newer estimation in the same session supersedes older ones.
	SessionIDHeader = "X-Session-ID"
)

// Session copies the caller's X-Session-ID header into the context and echoes
// it back. Requests without the header are not tied to a session.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionID := sanitizeHeaderID(c.GetHeader(SessionIDHeader)); sessionID != "" {
			c.Set(SessionIDKey, sessionID)
			c.Writer.Header().Set(SessionIDHeader, sessionID)
		}
		c.Next()
	}
}

// GetSessionID returns the session ID, or an empty string if none was sent.
func GetSessionID(c *gin.Context) string {
	return contextString(c, SessionIDKey)
}
