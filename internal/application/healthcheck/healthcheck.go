// Package healthcheck runs external probe commands in gate mode (retry
// until healthy or exhausted) and poll mode (continuous post-ready
// monitoring) over the process.Executor port (§4.F).
package healthcheck

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/captjt/devproc/internal/application/spawner"
	"github.com/captjt/devproc/internal/domain/config"
	"github.com/captjt/devproc/internal/domain/healthcheck"
	"github.com/captjt/devproc/internal/domain/process"
)

// AttemptLogFunc receives a synthetic log line describing one gate-mode
// probe attempt, appended to the owning service's stderr channel (§4.F).
type AttemptLogFunc func(process.LogLine)

// Runner executes probes for a single service's ProbeSpec via an Executor.
type Runner struct {
	service  string
	spec     config.ProbeSpec
	executor process.Executor
}

// NewRunner builds a Runner for the given service and probe spec.
func NewRunner(service string, spec config.ProbeSpec, executor process.Executor) *Runner {
	return &Runner{service: service, spec: spec, executor: executor}
}

// probeOnce spawns the probe command, waits for exit or the configured
// timeout (force-killing the probe on timeout), and returns whether it
// succeeded.
func (r *Runner) probeOnce(ctx context.Context) healthcheck.Result {
	now := time.Now()
	argv, err := spawner.Tokenize(r.spec.Cmd)
	if err != nil {
		return healthcheck.Result{Healthy: false, Err: err, Timestamp: now}
	}

	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(r.spec.TimeoutMs)*time.Millisecond)
	defer cancel()

	handle, err := r.executor.Start(probeCtx, process.Spec{Argv: argv})
	if err != nil {
		return healthcheck.Result{Healthy: false, Err: err, Timestamp: now}
	}
	// Probe stdio is drained and discarded; only the exit status matters.
	go io.Copy(io.Discard, handle.Stdout())
	go io.Copy(io.Discard, handle.Stderr())

	select {
	case result := <-handle.Wait():
		return healthcheck.Result{Healthy: result.Code == 0, Err: result.Error, Timestamp: now}
	case <-probeCtx.Done():
		_ = handle.Kill()
		<-handle.Wait()
		return healthcheck.Result{Healthy: false, Err: probeCtx.Err(), Timestamp: now}
	}
}

// WaitForHealthy runs the probe up to r.spec.Retries times, sleeping
// IntervalMs between attempts, logging each attempt via logAttempt.
// Returns true on first success, false once retries are exhausted (§4.F).
func (r *Runner) WaitForHealthy(ctx context.Context, logAttempt AttemptLogFunc) bool {
	interval := time.Duration(r.spec.IntervalMs) * time.Millisecond

	for attempt := 1; attempt <= r.spec.Retries; attempt++ {
		result := r.probeOnce(ctx)
		logAttempt(attemptLine(r.service, attempt, r.spec.Retries, result))
		if result.Healthy {
			return true
		}

		if attempt == r.spec.Retries {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return false
		}
	}
	return false
}

func attemptLine(service string, attempt, retries int, result healthcheck.Result) process.LogLine {
	var text string
	if result.Healthy {
		text = fmt.Sprintf("healthcheck attempt %d/%d: healthy", attempt, retries)
	} else if result.Err != nil {
		text = fmt.Sprintf("healthcheck attempt %d/%d: failed (%v)", attempt, retries, result.Err)
	} else {
		text = fmt.Sprintf("healthcheck attempt %d/%d: failed", attempt, retries)
	}
	return process.LogLine{Service: service, Stream: process.StreamStderr, Text: text, Timestamp: result.Timestamp}
}

// poller is the Poller handle returned by StartPoller.
type poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *poller) Stop() {
	p.cancel()
	<-p.done
}

// StartPoller begins continuous post-ready probing: it runs r's probe
// repeatedly, measuring the interval from each attempt's completion (not
// its start), delivering every result to cb, and guaranteeing at most one
// probe in flight. Stop does not return until no further callback can
// fire (§4.F).
func (r *Runner) StartPoller(ctx context.Context, cb healthcheck.PollCallback) healthcheck.Poller {
	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		interval := time.Duration(r.spec.IntervalMs) * time.Millisecond
		for {
			result := r.probeOnce(pollCtx)
			select {
			case <-pollCtx.Done():
				return
			default:
				cb(result)
			}

			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
			case <-pollCtx.Done():
				timer.Stop()
				return
			}
		}
	}()

	return &poller{cancel: cancel, done: done}
}
