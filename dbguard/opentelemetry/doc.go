// Package opentelemetry bootstraps tracing, metrics and log export for the
// resilience layer and offers the small span helpers the executor and health
// endpoint use.
package opentelemetry
