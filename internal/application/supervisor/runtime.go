package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/captjt/devproc/internal/domain/apperr"
	"github.com/captjt/devproc/internal/domain/config"
	"github.com/captjt/devproc/internal/domain/healthcheck"
	"github.com/captjt/devproc/internal/domain/process"
)

// runtime holds a single service's mutable lifecycle state. Two locks
// guard it for different purposes:
//
//   - opMu is held for the full duration of a Start or Stop call, giving
//     the per-service serialization §5 requires: no two lifecycle
//     transitions for the same service ever interleave, and a start
//     arriving while a stop is in flight simply blocks until it completes
//     (§4.I.4).
//   - mu guards the fields themselves plus the notify broadcast channel,
//     and is only ever held briefly (read a field, flip a field, swap
//     notify) — never across a blocking wait. Background goroutines that
//     must not risk deadlocking with an in-flight opMu holder (the exit
//     watcher, the poll-mode callback) touch only mu, never opMu.
type runtime struct {
	opMu sync.Mutex

	mu     sync.Mutex
	svc    config.Service
	state  process.State
	notify chan struct{}

	pid          int
	startedAt    time.Time
	stoppedAt    time.Time
	restartCount int
	lastExit     *process.ExitResult

	handle  process.Handle
	poller  healthcheck.Poller
	tracker *process.RestartTracker
	// exited is closed by watchExit when the current handle's process exits;
	// stopLocked waits on it (with escalation) instead of reading
	// handle.Wait() itself, since a channel may only be safely drained by
	// one reader. Replaced on every spawn.
	exited chan struct{}

	// stopGeneration increments every time a stop is explicitly requested;
	// a pending restart timer checks it before firing so a manual stop
	// cancels an in-flight restart (§4.I.1: "provided the service is
	// still in crashed when the timer fires").
	stopGeneration int

	stats serviceStats
}

func newRuntime(svc config.Service) *runtime {
	return &runtime{
		svc:     svc,
		state:   process.Stopped,
		notify:  make(chan struct{}),
		tracker: process.NewRestartTracker(svc.Restart),
	}
}

// currentState returns the runtime's state without blocking.
func (r *runtime) currentState() process.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// setState moves the runtime to next and broadcasts the change to every
// goroutine blocked in waitFor. Returns the prior state.
func (r *runtime) setState(next process.State) process.State {
	r.mu.Lock()
	prev := r.state
	r.state = next
	close(r.notify)
	r.notify = make(chan struct{})
	r.mu.Unlock()
	return prev
}

// waitFor blocks until satisfies(state) is true, the service reaches a
// failure state (returning apperr.ErrDependencyFailed), or ctx is done
// (returning apperr.ErrDependencyTimeout).
func (r *runtime) waitFor(ctx context.Context, satisfies func(process.State) bool) error {
	for {
		r.mu.Lock()
		st := r.state
		ch := r.notify
		r.mu.Unlock()

		if satisfies(st) {
			return nil
		}
		if st == process.Failed || st == process.Crashed {
			return apperr.ErrDependencyFailed
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return apperr.ErrDependencyTimeout
		}
	}
}

func (r *runtime) snapshotStatus(name string) process.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return process.Status{
		Service:      name,
		State:        r.state,
		PID:          r.pid,
		StartedAt:    r.startedAt,
		RestartCount: r.restartCount,
		LastExit:     r.lastExit,
	}
}
