package process

import "time"

// Status is a point-in-time snapshot of one service's runtime state, as
// returned by the supervisor's status query and used to render the CLI's
// service list.
type Status struct {
	Service      string
	State        State
	PID          int
	StartedAt    time.Time
	RestartCount int
	LastExit     *ExitResult
}

// Uptime returns how long the service has been in its current run since
// StartedAt, or zero if it is not active.
func (s Status) Uptime(now time.Time) time.Duration {
	if !s.State.Active() || s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}
