//go:build unix

// Package signal maps a service's configured stop-signal name (and the
// hard-kill signal) to an os.Signal (§6).
package signal

import (
	"fmt"
	"os"
	"syscall"

	"github.com/captjt/devproc/internal/domain/apperr"
)

// byName is the POSIX signal name table looked up by stop_signal.
var byName = map[string]os.Signal{
	"SIGHUP":  syscall.SIGHUP,
	"SIGINT":  syscall.SIGINT,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGTERM": syscall.SIGTERM,
	"SIGKILL": syscall.SIGKILL,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
}

// Hardkill is the signal Stop escalates to once the grace timeout elapses.
const Hardkill = syscall.SIGKILL

// ByName resolves a configured stop_signal name to an os.Signal.
func ByName(name string) (os.Signal, error) {
	sig, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown stop_signal %q", apperr.ErrInvalidConfig, name)
	}
	return sig, nil
}
