// Package obs exposes the OpenTelemetry instruments recorded by chat turns
// and tool calls.
package obs

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/isaacphi/mcpchat/internal/config"
)

const meterName = "github.com/isaacphi/mcpchat"

// Turn outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the meter provider and instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	provider   *sdkmetric.MeterProvider
	turns      metric.Int64Counter
	turnTime   metric.Float64Histogram
	toolCalls  metric.Int64Counter
	violations metric.Int64Counter
}

// New builds metrics exported periodically to stdout when enabled. When
// disabled the instruments still exist but nothing is exported.
func New(cfg config.Metrics) (*Metrics, error) {
	if !cfg.Enabled {
		return NewWithReader(nil)
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return NewWithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
}

// NewWithReader builds metrics on top of an explicit reader, or none
func NewWithReader(reader sdkmetric.Reader) (*Metrics, error) {
	var opts []sdkmetric.Option
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	provider := sdkmetric.NewMeterProvider(opts...)
	meter := provider.Meter(meterName)

	m := &Metrics{provider: provider}
	var err error
	if m.turns, err = meter.Int64Counter("mcpchat.turns",
		metric.WithDescription("Chat turns by outcome")); err != nil {
		return nil, err
	}
	if m.turnTime, err = meter.Float64Histogram("mcpchat.turn.duration",
		metric.WithDescription("Wall time of a chat turn"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.toolCalls, err = meter.Int64Counter("mcpchat.tool_calls",
		metric.WithDescription("MCP tool invocations")); err != nil {
		return nil, err
	}
	if m.violations, err = meter.Int64Counter("mcpchat.protocol_violations",
		metric.WithDescription("Transport events that broke the event protocol")); err != nil {
		return nil, err
	}
	return m, nil
}

// TurnFinished records one turn with its outcome and duration
func (m *Metrics) TurnFinished(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.turns.Add(ctx, 1, attrs)
	m.turnTime.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) ToolCall(ctx context.Context, server, tool string, failed bool) {
	if m == nil {
		return
	}
	m.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("server", server),
		attribute.String("tool", tool),
		attribute.Bool("error", failed),
	))
}

func (m *Metrics) ProtocolViolation(ctx context.Context) {
	if m == nil {
		return
	}
	m.violations.Add(ctx, 1)
}

// Shutdown flushes and stops the meter provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
