package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/salespulse/lib-dbguard/dbguard/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MetricsFactory creates OpenTelemetry instruments on first use and caches
// them by name, so hot paths only pay for a map lookup.
type MetricsFactory struct {
	meter      metric.Meter
	counters   sync.Map // string -> metric.Int64Counter
	gauges     sync.Map // string -> metric.Int64Gauge
	histograms sync.Map // string -> metric.Int64Histogram
	logger     log.Logger
}

// ErrNilMeter indicates that a nil OTEL meter was provided.
var ErrNilMeter = errors.New("metric meter cannot be nil")

// Metric describes an instrument.
type Metric struct {
	Name        string
	Description string
	Unit        string
	// Buckets are explicit histogram boundaries; ignored for other kinds.
	Buckets []float64
}

// DefaultLatencyBuckets covers sub-millisecond pool hits up to a full
// operation timeout, in milliseconds.
var DefaultLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// DefaultAttemptBuckets suits per-operation retry counts.
var DefaultAttemptBuckets = []float64{1, 2, 3, 4, 5, 8}

// NewMetricsFactory creates a new MetricsFactory instance.
func NewMetricsFactory(meter metric.Meter, logger log.Logger) (*MetricsFactory, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}

	return &MetricsFactory{
		meter:  meter,
		logger: log.OrNop(logger),
	}, nil
}

// NewNopFactory returns a MetricsFactory backed by OpenTelemetry's no-op meter.
func NewNopFactory() *MetricsFactory {
	return &MetricsFactory{
		meter:  noop.NewMeterProvider().Meter("nop"),
		logger: log.NewNop(),
	}
}

// Counter creates or retrieves a counter metric and returns a builder for it.
func (f *MetricsFactory) Counter(m Metric) (*CounterBuilder, error) {
	counter, err := cachedInstrument(f, &f.counters, m.Name, func() (metric.Int64Counter, error) {
		return f.meter.Int64Counter(m.Name, counterOptions(m)...)
	})
	if err != nil {
		return nil, err
	}

	return &CounterBuilder{counter: counter, name: m.Name}, nil
}

// Gauge creates or retrieves a gauge metric and returns a builder for it.
func (f *MetricsFactory) Gauge(m Metric) (*GaugeBuilder, error) {
	gauge, err := cachedInstrument(f, &f.gauges, m.Name, func() (metric.Int64Gauge, error) {
		return f.meter.Int64Gauge(m.Name, gaugeOptions(m)...)
	})
	if err != nil {
		return nil, err
	}

	return &GaugeBuilder{gauge: gauge, name: m.Name}, nil
}

// Histogram creates or retrieves a histogram metric and returns a builder for it.
// Different bucket layouts under the same name are cached separately.
func (f *MetricsFactory) Histogram(m Metric) (*HistogramBuilder, error) {
	if m.Buckets == nil {
		m.Buckets = selectDefaultBuckets(m.Name)
	}

	histogram, err := cachedInstrument(f, &f.histograms, histogramCacheKey(m.Name, m.Buckets), func() (metric.Int64Histogram, error) {
		return f.meter.Int64Histogram(m.Name, histogramOptions(m)...)
	})
	if err != nil {
		return nil, err
	}

	return &HistogramBuilder{histogram: histogram, name: m.Name}, nil
}

func cachedInstrument[T any](f *MetricsFactory, cache *sync.Map, key string, create func() (T, error)) (T, error) {
	var zero T

	if cached, ok := cache.Load(key); ok {
		if instrument, ok := cached.(T); ok {
			return instrument, nil
		}

		return zero, fmt.Errorf("instrument cache contains invalid type for %q", key)
	}

	instrument, err := create()
	if err != nil {
		f.logger.Log(context.Background(), log.LevelError, "failed to create metric instrument",
			log.String("metric_name", key), log.Err(err))

		return zero, fmt.Errorf("create instrument %q: %w", key, err)
	}

	actual, _ := cache.LoadOrStore(key, instrument)

	stored, ok := actual.(T)
	if !ok {
		return zero, fmt.Errorf("instrument cache contains invalid type for %q", key)
	}

	return stored, nil
}

func selectDefaultBuckets(name string) []float64 {
	if strings.Contains(strings.ToLower(name), "attempt") {
		return DefaultAttemptBuckets
	}

	return DefaultLatencyBuckets
}

func histogramCacheKey(name string, buckets []float64) string {
	if len(buckets) == 0 {
		return name
	}

	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)

	parts := make([]string, len(sorted))
	for i, b := range sorted {
		parts[i] = strconv.FormatFloat(b, 'g', -1, 64)
	}

	return name + ":" + strings.Join(parts, ",")
}

func counterOptions(m Metric) []metric.Int64CounterOption {
	var opts []metric.Int64CounterOption
	if m.Description != "" {
		opts = append(opts, metric.WithDescription(m.Description))
	}

	if m.Unit != "" {
		opts = append(opts, metric.WithUnit(m.Unit))
	}

	return opts
}

func gaugeOptions(m Metric) []metric.Int64GaugeOption {
	var opts []metric.Int64GaugeOption
	if m.Description != "" {
		opts = append(opts, metric.WithDescription(m.Description))
	}

	if m.Unit != "" {
		opts = append(opts, metric.WithUnit(m.Unit))
	}

	return opts
}

func histogramOptions(m Metric) []metric.Int64HistogramOption {
	var opts []metric.Int64HistogramOption
	if m.Description != "" {
		opts = append(opts, metric.WithDescription(m.Description))
	}

	if m.Unit != "" {
		opts = append(opts, metric.WithUnit(m.Unit))
	}

	if m.Buckets != nil {
		opts = append(opts, metric.WithExplicitBucketBoundaries(m.Buckets...))
	}

	return opts
}
