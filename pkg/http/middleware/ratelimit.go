package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	applogger "PlanSentry/pkg/logger"
)

// KeyedLimiter admits or rejects one request for a key.
type KeyedLimiter interface {
	Allow(key string) bool
}

// RateLimit rejects requests with 429 once the caller's bucket is empty.
// Buckets are keyed by client IP and route template.
func RateLimit(lim KeyedLimiter, l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP() + ":" + c.Path()
			if !lim.Allow(key) {
				l.Warn("http rate_limited",
					applogger.String("remote", c.RealIP()),
					applogger.String("route", c.Path()),
				)
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": "rate limited",
				})
			}
			return next(c)
		}
	}
}
