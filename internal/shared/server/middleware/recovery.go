package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"cvbot-backend/internal/shared/metrics"
	"cvbot-backend/internal/shared/server/respond"
	"cvbot-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500. A panicking webhook is answered
// with 500 too, so the platform redelivers the event.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      rec,
				"stack":      string(debug.Stack()),
				"path":       c.FullPath(),
				"method":     c.Request.Method,
			}
			if userID := UserIDFromContext(c); userID != "" {
				fields["user_id"] = userID
			}
			if kind := c.GetString("eventKind"); kind != "" {
				fields["event_kind"] = kind
			}
			telemetry.Error("http.panic", fields)
			metrics.IncHandlerFailure("http")
			respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
		}()
		c.Next()
	}
}
