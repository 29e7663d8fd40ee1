package learning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PlanSentry/internal/domain/models"
)

func TestHTTPAdvisor_OptimalParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parameters", r.URL.Path)
		assert.Equal(t, "XAUUSD", r.URL.Query().Get("symbol"))
		assert.Equal(t, "london", r.URL.Query().Get("session"))
		_, _ = w.Write([]byte(`{"threshold_shift": -3.5, "sample_size": 42}`))
	}))
	defer srv.Close()

	adv, err := NewHTTPAdvisor(srv.URL, time.Second).OptimalParameters(context.Background(), "XAUUSD", models.SessionLondon)
	require.NoError(t, err)
	assert.Equal(t, -3.5, adv.ThresholdShift)
	assert.Equal(t, 42, adv.SampleSize)
	assert.Equal(t, models.SessionLondon, adv.Session)
}

func TestHTTPAdvisor_RecordOutcomeRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "p-1", body["plan_id"])
		assert.Equal(t, float64(1500), body["latency_ms"])
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewHTTPAdvisor(srv.URL, time.Second).RecordOutcome(context.Background(), models.SignalOutcome{
		PlanID:  "p-1",
		Symbol:  "XAUUSD",
		Result:  models.OutcomeWin,
		Latency: 1500 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPAdvisor_Unconfigured(t *testing.T) {
	_, err := NewHTTPAdvisor("", time.Second).OptimalParameters(context.Background(), "X", models.SessionAsian)
	assert.Error(t, err)
}
