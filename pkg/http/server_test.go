package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes func(e *echo.Echo)

func (r routes) RegisterRoutes(e *echo.Echo) { r(e) }

type createReq struct {
	Symbol string  `json:"symbol" validate:"required,symbol"`
	At     string  `json:"at" validate:"omitempty,rfc3339"`
	TTL    string  `json:"ttl" validate:"omitempty,duration"`
	Volume float64 `json:"volume" default:"0.01" validate:"gt=0"`
}

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	h := routes(func(e *echo.Echo) {
		e.POST("/things", func(c echo.Context) error {
			req := new(createReq)
			if verr := ReadAndValidateRequest(c, req); verr != nil {
				return BadRequestResponse(c, verr)
			}
			return CreatedResponse(c, req)
		})
		e.GET("/missing", func(c echo.Context) error {
			return AppErrorResponse(c, NotFoundError("no such thing"))
		})
		e.GET("/boom", func(c echo.Context) error {
			return AppErrorResponse(c, errors.New("secret detail"))
		})
	})
	return NewServer(h, nil, append([]ServerOption{WithRegistry(reg, reg)}, opts...)...)
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestReadAndValidateRequest(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodPost, "/things", `{"symbol":"xauusd"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"volume":0.01`)

	tests := []struct {
		name, body, code string
	}{
		{"missing symbol", `{}`, "ERR_REQUIRED"},
		{"bad symbol", `{"symbol":"XAU/USD"}`, "ERR_SYMBOL"},
		{"bad time", `{"symbol":"XAUUSD","at":"noon"}`, "ERR_RFC3339"},
		{"bad ttl", `{"symbol":"XAUUSD","ttl":"-1h"}`, "ERR_DURATION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, http.MethodPost, "/things", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
}

func TestAppErrorResponse(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")

	rec = serve(s, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestReadiness(t *testing.T) {
	var down error
	s := newTestServer(t, WithReadiness("bar_source", func(context.Context) error { return down }))

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/readyz", "").Code)

	down = errors.New("connection refused")
	rec := serve(s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "bar_source")

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/healthz", "").Code)
}
