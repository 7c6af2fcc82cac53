package runtime

// PanicPolicy decides what happens after a panic has been recovered and recorded.
type PanicPolicy int

const (
	// KeepRunning swallows the panic once it is logged.
	KeepRunning PanicPolicy = iota
	// CrashProcess re-panics after logging.
	CrashProcess
)

// String returns the string representation of the policy.
func (p PanicPolicy) String() string {
	switch p {
	case KeepRunning:
		return "KeepRunning"
	case CrashProcess:
		return "CrashProcess"
	default:
		return "Unknown"
	}
}
