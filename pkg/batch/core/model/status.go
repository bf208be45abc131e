package model

// Status represents the lifecycle state of a job or step execution.
type Status string

const (
	StatusStarting  Status = "STARTING"
	StatusStarted   Status = "STARTED"
	StatusStopping  Status = "STOPPING"
	StatusStopped   Status = "STOPPED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusAbandoned Status = "ABANDONED"
)

// String returns the string form of the Status.
func (s Status) String() string {
	return string(s)
}

// IsFinished reports whether the Status is terminal.
func (s Status) IsFinished() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped, StatusAbandoned:
		return true
	default:
		return false
	}
}

// ExitStatus is the detailed outcome reported on completion.
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
	ExitStatusAbandoned ExitStatus = "ABANDONED"
)

// String returns the string form of the ExitStatus.
func (s ExitStatus) String() string {
	return string(s)
}

// isValidTransition checks the allowed state machine for executions.
func isValidTransition(current, next Status) bool {
	switch current {
	case StatusStarting:
		return next == StatusStarted || next == StatusFailed || next == StatusStopped || next == StatusAbandoned
	case StatusStarted:
		return next == StatusStopping || next == StatusCompleted || next == StatusFailed || next == StatusStopped || next == StatusAbandoned
	case StatusStopping:
		return next == StatusStopped || next == StatusFailed || next == StatusAbandoned
	case StatusFailed, StatusStopped:
		return next == StatusAbandoned
	case StatusCompleted, StatusAbandoned:
		return false
	default:
		return false
	}
}
