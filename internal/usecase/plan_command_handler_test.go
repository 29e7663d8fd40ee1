package usecase

import (
	"bytes"
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "PlanSentry/pkg/kafka"
	applogger "PlanSentry/pkg/logger"
	"PlanSentry/pkg/metrics"
)

func TestPlanCommandHandlerLogsTraceID(t *testing.T) {
	var buf bytes.Buffer
	registry := NewPlanRegistry(8)
	h := NewPlanCommandHandler("plan.commands", NewPlanService(registry, fixedClock(testNow)), metrics.Nop{}, applogger.NewWriter(&buf, "info"))

	body := []byte(`{"op":"create","plan_id":"p-1","plan":{"symbol":"XAUUSDm","side":"buy","entry":2400,"stop_loss":2390,"take_profit":2430}}`)
	msg := kafka.Message{Topic: "plan.commands", Value: body, Headers: []kafka.Header{{Key: "trace_id", Value: []byte("chat-7f3a")}}}

	ctx, data, err := pkgkafka.TraceHook.BeforeHandle(context.Background(), msg.Topic, msg, msg.Value)
	require.NoError(t, err)
	require.NoError(t, h.Handle(ctx, data))

	assert.Contains(t, buf.String(), `"trace_id":"chat-7f3a"`)
	p, err := registry.Get("p-1")
	require.NoError(t, err)
	assert.Equal(t, "XAUUSD", p.Symbol)
}
