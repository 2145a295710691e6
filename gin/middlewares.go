package gin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bobinette/coursedocs/log"
)

// cors lets the LMS pages call the endpoints from the browser.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// requestLogger logs one entry per request.
func requestLogger(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  status,
			"latency": time.Since(start).String(),
		})
		if status >= http.StatusInternalServerError {
			entry.Errorf("%s %s", c.Request.Method, c.Request.URL.Path)
			return
		}
		entry.Debugf("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}
