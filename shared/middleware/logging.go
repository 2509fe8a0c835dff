package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware tags each request with an id (reusing an inbound
// X-Request-ID) and logs one line per request once it completes.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("requestId", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		log.Printf("%s %s %d %s request_id=%s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Microsecond), requestID)
		for _, err := range c.Errors {
			log.Printf("request_id=%s error: %v", requestID, err.Err)
		}
	}
}
