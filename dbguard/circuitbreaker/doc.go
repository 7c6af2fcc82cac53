// Package circuitbreaker guards a dependency with a closed/open/half-open
// state machine built on sony/gobreaker.
//
// The breaker trips when a failure brings the failure percentage of the
// current window to ErrorThresholdPercentage. A window with fewer than
// VolumeThreshold settled calls is measured as if the rest had succeeded.
// Excluded outcomes are left out of the statistics entirely. While open every
// call is rejected without running. After
// ResetTimeout one trial call is let through: success closes the breaker and
// clears its statistics, failure reopens it and restarts the timer.
package circuitbreaker
