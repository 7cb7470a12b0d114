package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/territory-mapper/internal/logger"
)

const loggerKey = "logger"

// quietPaths are polled by orchestrators and scrapers; successful hits log at debug.
var quietPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
	"/metrics":      true,
}

// Logger creates a middleware that logs HTTP requests using structured logging
// and stores a request-scoped logger in the context.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestLogger := log.WithRequestID(GetRequestID(c))
		c.Set(loggerKey, requestLogger)

		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}
		if route := c.FullPath(); route != "" {
			fields["route"] = route
		}
		if len(c.Request.URL.RawQuery) > 0 {
			fields["query"] = c.Request.URL.RawQuery
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			requestLogger.Error("Request completed with server error", nil, fields)
		case statusCode >= 400:
			requestLogger.Warn("Request completed with client error", fields)
		case quietPaths[c.Request.URL.Path]:
			requestLogger.Debug("Request completed", fields)
		default:
			requestLogger.Info("Request completed", fields)
		}
	}
}

// GetLogger retrieves the request-scoped logger from the Gin context.
// Returns nil if not found.
func GetLogger(c *gin.Context) *logger.Logger {
	if log, exists := c.Get(loggerKey); exists {
		if l, ok := log.(*logger.Logger); ok {
			return l
		}
	}
	return nil
}

// SetLogger stores a logger in the Gin context. Used by tests and by handlers
// mounted outside the Logger middleware.
func SetLogger(c *gin.Context, log *logger.Logger) {
	c.Set(loggerKey, log)
}
