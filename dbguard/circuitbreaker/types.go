package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// State is the breaker state. The zero value is not a valid state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

func convertGobreakerState(state gobreaker.State) State {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}

// Counts are the statistics of the current window. They reset whenever the
// breaker changes state and, while closed, at the end of each window.
// Requests includes calls still running and excluded calls.
type Counts struct {
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"successes"`
	TotalFailures        uint32 `json:"failures"`
	TotalExclusions      uint32 `json:"exclusions"`
	ConsecutiveSuccesses uint32 `json:"consecutiveSuccesses"`
	ConsecutiveFailures  uint32 `json:"consecutiveFailures"`
}

// Settled is the number of calls that finished as a success or a failure.
func (c Counts) Settled() uint32 {
	return c.TotalSuccesses + c.TotalFailures
}

// FailurePercentage returns failures as a percentage of settled calls, 0 when
// none settled.
func (c Counts) FailurePercentage() float64 {
	settled := c.Settled()
	if settled == 0 {
		return 0
	}

	return float64(c.TotalFailures) * 100 / float64(settled)
}

func convertCounts(c gobreaker.Counts) Counts {
	return Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		TotalExclusions:      c.TotalExclusions,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}

// Snapshot is a read of the breaker for health reporting.
type Snapshot struct {
	Name  string `json:"name"`
	State State  `json:"state"`
	Stats Stats  `json:"stats"`
}

// Stats are the numbers reported alongside the state.
type Stats struct {
	Counts
	FailurePercentage float64   `json:"failurePercentage"`
	Rejections        uint64    `json:"rejections"`
	Fallbacks         uint64    `json:"fallbacks"`
	LastStateChange   time.Time `json:"lastStateChange"`
}

// StateChangeListener is notified, asynchronously, after every transition.
type StateChangeListener interface {
	OnStateChange(name string, from State, to State)
}

// StateChangeFunc adapts a function to StateChangeListener.
type StateChangeFunc func(name string, from State, to State)

// OnStateChange calls f.
func (f StateChangeFunc) OnStateChange(name string, from State, to State) {
	f(name, from, to)
}
