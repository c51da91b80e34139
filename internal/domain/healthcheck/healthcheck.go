// Package healthcheck defines the value objects and port shared by gate
// mode and poll mode (§4.F). The actual probe execution lives in
// internal/application/healthcheck, which spawns probes through the same
// process.Executor port used for services.
package healthcheck

import "time"

// Result is the outcome of a single probe attempt.
type Result struct {
	Healthy   bool
	Err       error
	Attempt   int
	Timestamp time.Time
}

// PollCallback receives each poll-mode probe result as it completes.
type PollCallback func(Result)

// Poller is the handle returned by starting poll mode; Stop cancels it and
// does not return until no further callback can fire.
type Poller interface {
	Stop()
}
