package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordRefresh("BTCUSD", "ok")
	r.RecordRefresh("BTCUSD", "ok")
	r.RecordPlanTransition("executed")
	r.RecordEvaluation("BTCUSD", 71, 70)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.refreshTotal.WithLabelValues("BTCUSD", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.planTransitions.WithLabelValues("executed")))
	assert.Equal(t, 71.0, testutil.ToFloat64(r.confluence.WithLabelValues("BTCUSD")))
	assert.Equal(t, 70.0, testutil.ToFloat64(r.threshold.WithLabelValues("BTCUSD")))
}
