package middleware

import (
	"net/http"
	"strings"

	"myGreenStorefront/business/personalization"
	"myGreenStorefront/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	HeaderSessionID = "X-Session-ID"
	HeaderRequestID = echo.HeaderXRequestID

	// SessionKey holds the session id in the echo context.
	SessionKey = "session_id"

	maxSessionIDLen = 128
)

// SessionMiddleware resolves the browser session of the request. A missing
// session id is replaced by a fresh uuid, which is echoed back so the client
// can keep it. Every request also gets a trace id for the engine logs.
func SessionMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			sessionID := strings.TrimSpace(req.Header.Get(HeaderSessionID))
			if len(sessionID) > maxSessionIDLen || strings.ContainsAny(sessionID, ": \t") {
				logger.Warn("rejecting malformed session id", "length", len(sessionID))
				return c.JSON(http.StatusBadRequest, map[string]string{
					"message": "invalid session id",
				})
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			traceID := req.Header.Get(HeaderRequestID)
			if traceID == "" {
				traceID = uuid.NewString()
			}

			ctx := personalization.WithTraceID(req.Context(), traceID)
			c.SetRequest(req.WithContext(ctx))

			c.Set(SessionKey, sessionID)
			c.Response().Header().Set(HeaderSessionID, sessionID)
			c.Response().Header().Set(HeaderRequestID, traceID)

			return next(c)
		}
	}
}

// SessionID returns the session resolved by SessionMiddleware.
func SessionID(c echo.Context) string {
	id, _ := c.Get(SessionKey).(string)
	return id
}
