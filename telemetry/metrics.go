package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName scopes the bridge instruments.
const MeterName = "gameservices"

// Metrics holds the bridge counters. A nil *Metrics records nothing.
type Metrics struct {
	operations metric.Int64Counter
	signals    metric.Int64Counter
	stale      metric.Int64Counter
	failures   metric.Int64Counter
}

// NewMetrics registers the counters on meter. Instruments that fail to register are skipped.
func NewMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}
	if counter, err := meter.Int64Counter("gameservices.operations",
		metric.WithDescription("Bridge operations invoked by scripts"),
		metric.WithUnit("{call}")); err == nil {
		m.operations = counter
	}
	if counter, err := meter.Int64Counter("gameservices.signals",
		metric.WithDescription("Signals emitted to the scripting layer"),
		metric.WithUnit("{signal}")); err == nil {
		m.signals = counter
	}
	if counter, err := meter.Int64Counter("gameservices.stale_completions",
		metric.WithDescription("Platform completions discarded because a newer query replaced theirs"),
		metric.WithUnit("{completion}")); err == nil {
		m.stale = counter
	}
	if counter, err := meter.Int64Counter("gameservices.platform_failures",
		metric.WithDescription("Platform completions that reported an error"),
		metric.WithUnit("{completion}")); err == nil {
		m.failures = counter
	}
	return m
}

func (m *Metrics) Operation(op string) {
	if m == nil {
		return
	}
	add(m.operations, attribute.String("operation", op))
}

func (m *Metrics) Signal(signal string) {
	if m == nil {
		return
	}
	add(m.signals, attribute.String("signal", signal))
}

func (m *Metrics) StaleCompletion(op string) {
	if m == nil {
		return
	}
	add(m.stale, attribute.String("operation", op))
}

func (m *Metrics) PlatformFailure(op, code string) {
	if m == nil {
		return
	}
	add(m.failures, attribute.String("operation", op), attribute.String("code", code))
}

func add(counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
