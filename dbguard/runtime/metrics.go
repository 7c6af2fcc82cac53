package runtime

import (
	"context"
	"sync"

	constant "github.com/salespulse/lib-dbguard/dbguard/constants"
	"github.com/salespulse/lib-dbguard/dbguard/log"
	"github.com/salespulse/lib-dbguard/dbguard/opentelemetry/metrics"
)

var panicRecoveredMetric = metrics.Metric{
	Name:        constant.MetricPanicRecoveredTotal,
	Unit:        "1",
	Description: "Total number of recovered panics",
}

type panicMetrics struct {
	factory *metrics.MetricsFactory
	logger  log.Logger
}

var (
	panicMetricsInstance *panicMetrics
	panicMetricsMu       sync.RWMutex
)

// InitPanicMetrics enables the panic_recovered_total counter. Later calls are
// no-ops until ResetPanicMetrics.
func InitPanicMetrics(factory *metrics.MetricsFactory, logger log.Logger) {
	panicMetricsMu.Lock()
	defer panicMetricsMu.Unlock()

	if factory == nil || panicMetricsInstance != nil {
		return
	}

	panicMetricsInstance = &panicMetrics{factory: factory, logger: log.OrNop(logger)}
}

// ResetPanicMetrics clears the registered factory. Intended for tests.
func ResetPanicMetrics() {
	panicMetricsMu.Lock()
	defer panicMetricsMu.Unlock()

	panicMetricsInstance = nil
}

func recordPanicMetric(ctx context.Context, component, goroutineName string) {
	panicMetricsMu.RLock()
	pm := panicMetricsInstance
	panicMetricsMu.RUnlock()

	if pm == nil {
		return
	}

	counter, err := pm.factory.Counter(panicRecoveredMetric)
	if err != nil {
		pm.logger.Log(ctx, log.LevelWarn, "failed to create panic metric counter", log.Err(err))
		return
	}

	err = counter.WithLabels(map[string]string{
		"component":      constant.SanitizeMetricLabel(component),
		"goroutine_name": constant.SanitizeMetricLabel(goroutineName),
	}).AddOne(ctx)
	if err != nil {
		pm.logger.Log(ctx, log.LevelWarn, "failed to record panic metric", log.Err(err))
	}
}
