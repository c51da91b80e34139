package supervisor

import (
	"os"
	"time"
)

// DependencyWaitTimeout bounds how long Start waits for a single
// dependency edge's wait-condition before failing with
// apperr.ErrDependencyTimeout (§4.I.2, §5).
const DependencyWaitTimeout = 60 * time.Second

// StartOptions configures a single Start call (§4.I.2).
type StartOptions struct {
	// Force stops the service first even if it is already running.
	Force bool
	// SkipDeps bypasses dependency resolution and waiting. Restarts use
	// this because dependencies are assumed to still be up.
	SkipDeps bool
}

// StopOptions configures a single Stop call (§4.I.2).
type StopOptions struct {
	// SkipDependents bypasses recursively stopping services that declare
	// this one as a dependency.
	SkipDependents bool
	// Signal overrides the service's configured stop_signal when non-empty.
	Signal string
	// Timeout overrides process.StopTimeout when positive.
	Timeout time.Duration
}

// SignalResolver maps a configured stop_signal name to an os.Signal. The
// concrete mapping (POSIX signal table) lives in
// internal/infrastructure/process/signal; the supervisor only consumes the
// port so the application layer stays free of a syscall dependency.
type SignalResolver func(name string) (os.Signal, error)
