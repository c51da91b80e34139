package process

import (
	"context"
	"io"
	"os"
	"time"
)

// ExitResult carries the outcome of a child process's exit: its exit code,
// or the error that made the exit status unobtainable (killed, exec failed
// after start, etc).
type ExitResult struct {
	Code  int
	Error error
}

// Handle is returned by Executor.Start and exposes everything the
// supervisor needs from a live child: its PID, the two output streams to
// attach stream readers to, a future for its exit, and direct signaling.
type Handle interface {
	// PID returns the child's process ID.
	PID() int
	// Stdout returns the child's stdout pipe. Readers must drain it to EOF.
	Stdout() io.Reader
	// Stderr returns the child's stderr pipe. Readers must drain it to EOF.
	Stderr() io.Reader
	// Wait returns a channel that receives exactly one ExitResult when the
	// child exits, then is closed.
	Wait() <-chan ExitResult
	// Signal delivers sig to the child.
	Signal(sig os.Signal) error
	// Kill forcibly terminates the child (SIGKILL on POSIX).
	Kill() error
}

// Executor abstracts OS process execution; the only port the domain layer
// exposes for spawning and controlling a child process (§4.D).
type Executor interface {
	// Start launches spec as a child process with stdin closed and
	// stdout/stderr captured via pipes.
	//
	// Returns SpawnError-class failures (executable-not-found,
	// permission-denied, cwd-missing) already wrapped in
	// apperr.ErrSpawnError.
	Start(ctx context.Context, spec Spec) (Handle, error)
}

// StopTimeout is the default grace period stop() waits for a child to exit
// after the graceful signal before escalating to hard-kill (§4.I.2).
const StopTimeout = 10 * time.Second
