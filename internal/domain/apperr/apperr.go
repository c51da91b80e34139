// Package apperr defines the sentinel error taxonomy shared across the
// configuration, dependency, healthcheck, and supervisor layers, following
// the same errors.New-plus-%w-wrapping convention the rest of this module
// (and its teacher) uses in place of a custom error type hierarchy.
package apperr

import "errors"

// Sentinel errors. Callers match kind with errors.Is; call sites wrap these
// with fmt.Errorf("%w: detail") to attach context.
var (
	// ErrInvalidConfig is raised by parsing, schema, duration, dependency,
	// cycle, group-membership, and healthy-without-healthcheck validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrSpawnError is raised when a child process fails to start.
	ErrSpawnError = errors.New("spawn error")

	// ErrHealthcheckExhausted is raised when gate-mode healthchecking
	// exceeds its configured retries without a single success.
	ErrHealthcheckExhausted = errors.New("healthcheck exhausted")

	// ErrDependencyTimeout is raised when waiting on a peer's status
	// exceeds the dependency-wait ceiling.
	ErrDependencyTimeout = errors.New("dependency timeout")

	// ErrDependencyFailed is raised when a peer reaches failed or crashed
	// while another service is waiting on it.
	ErrDependencyFailed = errors.New("dependency failed")

	// ErrStopTimeout names the case of a child that does not exit after
	// the graceful signal within the configured timeout. Stop recovers
	// from that case locally via hard-kill and never returns this error.
	ErrStopTimeout = errors.New("stop timeout")

	// ErrSamplerError is raised when the process-table probe fails for a
	// sampling tick; it is dropped for that tick and never surfaced.
	ErrSamplerError = errors.New("sampler error")
)
