package http

import (
	"time"

	"github.com/labstack/echo/v4"

	xutil "PlanSentry/pkg/util"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// QueryTime parses an optional RFC3339 or unix-seconds query parameter.
// A missing parameter yields the zero time.
func QueryTime(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, ok := xutil.ParseTime(raw)
	if !ok {
		return time.Time{}, BadRequestError(name + " must be RFC3339 or unix seconds")
	}
	return t.UTC(), nil
}
