package metrics

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilCounter is returned when a counter builder has no instrument.
	ErrNilCounter = errors.New("counter instrument is nil")
	// ErrNilGauge is returned when a gauge builder has no instrument.
	ErrNilGauge = errors.New("gauge instrument is nil")
	// ErrNilHistogram is returned when a histogram builder has no instrument.
	ErrNilHistogram = errors.New("histogram instrument is nil")
)

func mergeLabels(base []attribute.KeyValue, labels map[string]string) []attribute.KeyValue {
	merged := make([]attribute.KeyValue, 0, len(base)+len(labels))
	merged = append(merged, base...)

	for key, value := range labels {
		merged = append(merged, attribute.String(key, value))
	}

	return merged
}

func mergeAttributes(base []attribute.KeyValue, attrs []attribute.KeyValue) []attribute.KeyValue {
	merged := make([]attribute.KeyValue, 0, len(base)+len(attrs))
	merged = append(merged, base...)

	return append(merged, attrs...)
}

// CounterBuilder records increments on a counter. Builders are immutable;
// WithLabels and WithAttributes return copies.
type CounterBuilder struct {
	counter metric.Int64Counter
	name    string
	attrs   []attribute.KeyValue
}

// WithLabels returns a copy of the builder carrying the extra string labels.
func (c *CounterBuilder) WithLabels(labels map[string]string) *CounterBuilder {
	return &CounterBuilder{counter: c.counter, name: c.name, attrs: mergeLabels(c.attrs, labels)}
}

// WithAttributes returns a copy of the builder carrying the extra attributes.
func (c *CounterBuilder) WithAttributes(attrs ...attribute.KeyValue) *CounterBuilder {
	return &CounterBuilder{counter: c.counter, name: c.name, attrs: mergeAttributes(c.attrs, attrs)}
}

// Add records a counter increment.
func (c *CounterBuilder) Add(ctx context.Context, value int64) error {
	if c == nil || c.counter == nil {
		return ErrNilCounter
	}

	c.counter.Add(ctx, value, metric.WithAttributes(c.attrs...))

	return nil
}

// AddOne increments the counter by one.
func (c *CounterBuilder) AddOne(ctx context.Context) error {
	return c.Add(ctx, 1)
}

// GaugeBuilder records instantaneous values such as idle connection counts.
type GaugeBuilder struct {
	gauge metric.Int64Gauge
	name  string
	attrs []attribute.KeyValue
}

// WithLabels returns a copy of the builder carrying the extra string labels.
func (g *GaugeBuilder) WithLabels(labels map[string]string) *GaugeBuilder {
	return &GaugeBuilder{gauge: g.gauge, name: g.name, attrs: mergeLabels(g.attrs, labels)}
}

// WithAttributes returns a copy of the builder carrying the extra attributes.
func (g *GaugeBuilder) WithAttributes(attrs ...attribute.KeyValue) *GaugeBuilder {
	return &GaugeBuilder{gauge: g.gauge, name: g.name, attrs: mergeAttributes(g.attrs, attrs)}
}

// Set records the current value of the gauge.
func (g *GaugeBuilder) Set(ctx context.Context, value int64) error {
	if g == nil || g.gauge == nil {
		return ErrNilGauge
	}

	g.gauge.Record(ctx, value, metric.WithAttributes(g.attrs...))

	return nil
}

// HistogramBuilder records distributions such as acquire latency.
type HistogramBuilder struct {
	histogram metric.Int64Histogram
	name      string
	attrs     []attribute.KeyValue
}

// WithLabels returns a copy of the builder carrying the extra string labels.
func (h *HistogramBuilder) WithLabels(labels map[string]string) *HistogramBuilder {
	return &HistogramBuilder{histogram: h.histogram, name: h.name, attrs: mergeLabels(h.attrs, labels)}
}

// WithAttributes returns a copy of the builder carrying the extra attributes.
func (h *HistogramBuilder) WithAttributes(attrs ...attribute.KeyValue) *HistogramBuilder {
	return &HistogramBuilder{histogram: h.histogram, name: h.name, attrs: mergeAttributes(h.attrs, attrs)}
}

// Record records a histogram value.
func (h *HistogramBuilder) Record(ctx context.Context, value int64) error {
	if h == nil || h.histogram == nil {
		return ErrNilHistogram
	}

	h.histogram.Record(ctx, value, metric.WithAttributes(h.attrs...))

	return nil
}
