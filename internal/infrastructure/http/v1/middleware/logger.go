package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fieldledger/pkg/logger"
)

// Logger middleware logs one line per request. Probe traffic under /health
// is logged at debug level.
func Logger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}

		l := log.WithContext(c.Request.Context())
		if strings.HasPrefix(path, "/health") {
			l.Debugw("http request", fields...)
			return
		}
		l.Infow("http request", fields...)
	}
}
