package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/yieldvault-backend/internal/platform/ctxutil"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. Vault routes also log the vault
// id so a deposit or harvest can be traced without parsing the path.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		ctx := c.Request.Context()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if td := ctxutil.GetTraceData(ctx); td != nil {
			fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, "vault_id", id)
		}
		if caller := ctxutil.CallerID(ctx); caller != "" {
			fields = append(fields, "caller_id", caller)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Debug("http request", fields...)
		}
	}
}
