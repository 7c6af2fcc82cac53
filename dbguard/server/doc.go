// Package server runs the fiber HTTP server and shuts the process down in
// dependency order: HTTP first, then the database pool, then telemetry, then
// the logger.
package server
