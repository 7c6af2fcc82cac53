package metrics

import (
	"context"
	"errors"

	constant "github.com/salespulse/lib-dbguard/dbguard/constants"
)

// Pre-configured instruments for the pool, breaker and executor.
var (
	MetricPoolConnectionsTotal = Metric{
		Name:        constant.MetricPoolConnectionsTotal,
		Unit:        "1",
		Description: "Connections currently open in the pool, idle or checked out.",
	}

	MetricPoolConnectionsIdle = Metric{
		Name:        constant.MetricPoolConnectionsIdle,
		Unit:        "1",
		Description: "Open connections not checked out by any caller.",
	}

	MetricPoolWaitingRequests = Metric{
		Name:        constant.MetricPoolWaitingRequests,
		Unit:        "1",
		Description: "Callers queued for a connection.",
	}

	MetricPoolAcquireDuration = Metric{
		Name:        constant.MetricPoolAcquireDuration,
		Unit:        "ms",
		Description: "Time spent waiting to acquire a pooled connection.",
	}

	MetricPoolEventsTotal = Metric{
		Name:        constant.MetricPoolEventsTotal,
		Unit:        "1",
		Description: "Pool lifecycle events by kind.",
	}

	MetricQueryAttemptsTotal = Metric{
		Name:        constant.MetricQueryAttemptsTotal,
		Unit:        "1",
		Description: "Database attempts made by the resilient executor.",
	}

	MetricQueryFallbacksTotal = Metric{
		Name:        constant.MetricQueryFallbacksTotal,
		Unit:        "1",
		Description: "Reads answered with the empty fallback result because the circuit was open.",
	}

	MetricBreakerStateTransitions = Metric{
		Name:        constant.MetricBreakerStateTransitions,
		Unit:        "1",
		Description: "Circuit breaker state transitions.",
	}

	MetricBreakerExecutions = Metric{
		Name:        constant.MetricBreakerExecutions,
		Unit:        "1",
		Description: "Calls routed through the circuit breaker by outcome.",
	}
)

// PoolStats is the gauge snapshot RecordPoolStats publishes.
type PoolStats struct {
	Total   int
	Idle    int
	Waiting int
}

// RecordPoolStats publishes the pool gauges for the named pool.
func (f *MetricsFactory) RecordPoolStats(ctx context.Context, pool string, stats PoolStats) error {
	labels := map[string]string{"pool": constant.SanitizeMetricLabel(pool)}

	var errs []error

	for _, g := range []struct {
		metric Metric
		value  int
	}{
		{MetricPoolConnectionsTotal, stats.Total},
		{MetricPoolConnectionsIdle, stats.Idle},
		{MetricPoolWaitingRequests, stats.Waiting},
	} {
		b, err := f.Gauge(g.metric)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		errs = append(errs, b.WithLabels(labels).Set(ctx, int64(g.value)))
	}

	return errors.Join(errs...)
}

// RecordPoolEvent counts a pool lifecycle event such as "connect" or "remove".
func (f *MetricsFactory) RecordPoolEvent(ctx context.Context, pool, event string) error {
	b, err := f.Counter(MetricPoolEventsTotal)
	if err != nil {
		return err
	}

	return b.WithLabels(map[string]string{
		"pool":  constant.SanitizeMetricLabel(pool),
		"event": constant.SanitizeMetricLabel(event),
	}).AddOne(ctx)
}

// RecordAcquireDuration records how long a caller waited for a connection.
func (f *MetricsFactory) RecordAcquireDuration(ctx context.Context, pool string, ms int64, outcome string) error {
	b, err := f.Histogram(MetricPoolAcquireDuration)
	if err != nil {
		return err
	}

	return b.WithLabels(map[string]string{
		"pool":    constant.SanitizeMetricLabel(pool),
		"outcome": constant.SanitizeMetricLabel(outcome),
	}).Record(ctx, ms)
}

// RecordQueryAttempts adds the attempts one resilient call used.
func (f *MetricsFactory) RecordQueryAttempts(ctx context.Context, kind, outcome string, attempts int) error {
	b, err := f.Counter(MetricQueryAttemptsTotal)
	if err != nil {
		return err
	}

	return b.WithLabels(map[string]string{
		"kind":    constant.SanitizeMetricLabel(kind),
		"outcome": constant.SanitizeMetricLabel(outcome),
	}).Add(ctx, int64(attempts))
}

// RecordQueryFallback counts a degraded read.
func (f *MetricsFactory) RecordQueryFallback(ctx context.Context, breaker string) error {
	b, err := f.Counter(MetricQueryFallbacksTotal)
	if err != nil {
		return err
	}

	return b.WithLabels(map[string]string{"breaker": constant.SanitizeMetricLabel(breaker)}).AddOne(ctx)
}

// RecordBreakerTransition counts a breaker moving between states.
func (f *MetricsFactory) RecordBreakerTransition(ctx context.Context, breaker, from, to string) error {
	b, err := f.Counter(MetricBreakerStateTransitions)
	if err != nil {
		return err
	}

	return b.WithLabels(map[string]string{
		"breaker":    constant.SanitizeMetricLabel(breaker),
		"from_state": from,
		"to_state":   to,
	}).AddOne(ctx)
}

// RecordBreakerExecution counts one call routed through a breaker.
func (f *MetricsFactory) RecordBreakerExecution(ctx context.Context, breaker, outcome string) error {
	b, err := f.Counter(MetricBreakerExecutions)
	if err != nil {
		return err
	}

	return b.WithLabels(map[string]string{
		"breaker": constant.SanitizeMetricLabel(breaker),
		"outcome": outcome,
	}).AddOne(ctx)
}
