// Package zap implements dbguard's log.Logger on top of go.uber.org/zap, teed
// into the OpenTelemetry log bridge so pool and breaker lifecycle entries reach
// the collector alongside traces.
package zap
