// Package middleware contains the gin middleware of the bot HTTP surface.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
)

// RequestID reuses the caller's X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one access log line per request, at a level derived from the status.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()

		attrs := []any{
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"remote_ip", c.ClientIP(),
			"bytes_out", c.Writer.Size(),
		}
		ctx := c.Request.Context()

		switch {
		case len(c.Errors) > 0:
			slog.ErrorContext(ctx, "request", append(attrs, "errors", c.Errors.String())...)
		case status >= http.StatusInternalServerError:
			slog.ErrorContext(ctx, "request", attrs...)
		case status >= http.StatusBadRequest:
			slog.WarnContext(ctx, "request", attrs...)
		default:
			slog.DebugContext(ctx, "request", attrs...)
		}
	}
}

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid := c.GetString(requestIDKey)
				slog.ErrorContext(c.Request.Context(), "panic recovered",
					"panic", rec,
					"stack", string(debug.Stack()),
					"request_id", rid,
				)

				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LimitBody caps request bodies at maxBytes.
func LimitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
