package process

import (
	"time"

	"github.com/captjt/devproc/internal/domain/config"
)

// DefaultStabilityWindow is how long a service must run without exiting
// before its restart attempt counter resets.
const DefaultStabilityWindow = 5 * time.Minute

// FixedRestartDelay is the backoff applied between a process exit and its
// restart. The module does not implement exponential backoff; see the
// project's design notes for why a fixed delay was chosen instead.
const FixedRestartDelay = 1 * time.Second

// RestartTracker decides whether an exited service should be respawned and
// counts restart attempts since the last stability window. The count is
// for observation only: ShouldRestart does not consult it, so a flapping
// service keeps restarting for as long as its policy allows. Shaped after
// the teacher's RestartTracker, but NextDelay is fixed rather than
// exponential.
type RestartTracker struct {
	policy   config.RestartPolicy
	attempts int
	window   time.Duration
}

// NewRestartTracker builds a tracker for a service with the given restart
// policy.
func NewRestartTracker(policy config.RestartPolicy) *RestartTracker {
	return &RestartTracker{policy: policy, window: DefaultStabilityWindow}
}

// ShouldRestart reports whether a restart should be attempted given the
// exit code that just occurred.
func (rt *RestartTracker) ShouldRestart(exitCode int) bool {
	switch rt.policy {
	case config.RestartAlways:
		return true
	case config.RestartOnFailure:
		return exitCode != 0
	case config.RestartNo:
		return false
	default:
		return false
	}
}

// NextDelay returns the backoff to wait before respawning. Always
// FixedRestartDelay; kept as a method (rather than inlining the constant
// at call sites) so callers don't need to change if that changes later.
func (rt *RestartTracker) NextDelay() time.Duration {
	return FixedRestartDelay
}

// RecordAttempt increments the attempt counter for this restart cycle.
func (rt *RestartTracker) RecordAttempt() {
	rt.attempts++
}

// Attempts returns the number of restart attempts recorded since the last
// reset.
func (rt *RestartTracker) Attempts() int {
	return rt.attempts
}

// Reset zeroes the attempt counter.
func (rt *RestartTracker) Reset() {
	rt.attempts = 0
}

// MaybeReset resets the counter once the service has run stably for at
// least the stability window.
func (rt *RestartTracker) MaybeReset(uptime time.Duration) {
	if uptime >= rt.window {
		rt.Reset()
	}
}
