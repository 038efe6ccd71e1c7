package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"

	ctxRequestID = "request_id"
	ctxCaller    = "caller"
)

// validRequestID matches ids that fit the audit log's request_id column.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,50}$`)

// RequestID propagates the client's X-Request-ID or assigns a new one when the
// header is missing, too long or carries unexpected characters.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}
