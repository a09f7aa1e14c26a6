package obs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/isaacphi/mcpchat/internal/config"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := NewWithReader(reader)
	require.NoError(t, err)

	ctx := context.Background()
	m.TurnFinished(ctx, OutcomeCompleted, time.Second)
	m.TurnFinished(ctx, OutcomeCompleted, time.Second)
	m.TurnFinished(ctx, OutcomeCancelled, time.Second)
	m.ToolCall(ctx, "fs", "read", false)
	m.ProtocolViolation(ctx)

	data := collect(t, reader)

	turns, ok := data["mcpchat.turns"].(metricdata.Sum[int64])
	require.True(t, ok)
	byOutcome := make(map[string]int64)
	for _, dp := range turns.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("outcome"))
		byOutcome[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{OutcomeCompleted: 2, OutcomeCancelled: 1}, byOutcome)

	tools, ok := data["mcpchat.tool_calls"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, tools.DataPoints, 1)
	assert.EqualValues(t, 1, tools.DataPoints[0].Value)

	violations, ok := data["mcpchat.protocol_violations"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.EqualValues(t, 1, violations.DataPoints[0].Value)

	_, ok = data["mcpchat.turn.duration"].(metricdata.Histogram[float64])
	assert.True(t, ok)

	require.NoError(t, m.Shutdown(ctx))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.TurnFinished(ctx, OutcomeFailed, 0)
	m.ToolCall(ctx, "a", "b", true)
	m.ProtocolViolation(ctx)
	assert.NoError(t, m.Shutdown(ctx))
}

func TestNewDisabled(t *testing.T) {
	m, err := New(config.Metrics{Enabled: false})
	require.NoError(t, err)
	m.TurnFinished(context.Background(), OutcomeCompleted, time.Millisecond)
	assert.NoError(t, m.Shutdown(context.Background()))
}
