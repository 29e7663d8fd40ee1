package barsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PlanSentry/internal/domain/models"
	applogger "PlanSentry/pkg/logger"
)

const klines = `[
 [1760000060000,"101.0","102.0","100.5","101.5","12.5",1760000119999],
 [1760000000000,"100.0","101.2","99.8","101.0","10",1760000059999],
 [1760000120000,"101.5","101.0","101.9","101.7","3",1760000179999],
 [1760000180000,101.7,102.4,101.6,102.2,4,1760000239999]
]`

func TestDecodeKlines(t *testing.T) {
	bars, skipped, err := DecodeKlines("BTCUSD", []byte(klines))
	require.NoError(t, err)
	assert.Equal(t, 1, skipped, "high below low is rejected")
	require.Len(t, bars, 3)
	assert.Equal(t, time.UnixMilli(1760000000000).UTC(), bars[0].Timestamp)
	assert.Equal(t, 101.0, bars[0].Close)
	assert.Equal(t, 102.2, bars[2].Close)
	assert.Equal(t, "BTCUSD", bars[2].Symbol)
}

func TestDecodeKlines_Malformed(t *testing.T) {
	_, _, err := DecodeKlines("BTCUSD", []byte(`{"code":-1121}`))
	assert.Error(t, err)
}

func TestHTTPSource_FetchBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/klines":
			assert.Equal(t, "XAUUSD", r.URL.Query().Get("symbol"))
			assert.Equal(t, "200", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(klines))
		case "/api/v3/ping":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/", "1m", applogger.Nop())
	bars, err := src.FetchBars(context.Background(), "XAUUSD", 200)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.NoError(t, src.Health(context.Background()))
}

func TestHTTPSource_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, "1m", applogger.Nop()).FetchBars(context.Background(), "XAUUSD", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTransientFetch))
}

func TestHTTPSource_ClientErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, "1m", applogger.Nop()).FetchBars(context.Background(), "NOPE", 10)
	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrTransientFetch))
}
