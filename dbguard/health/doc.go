// Package health reads pool and breaker state for monitoring and assembles
// the health document served by the HTTP layer. Nothing here changes the
// behavior of the pool or the breaker.
package health
