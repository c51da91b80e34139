package supervisor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	apphealthcheck "github.com/captjt/devproc/internal/application/healthcheck"
	"github.com/captjt/devproc/internal/application/spawner"
	"github.com/captjt/devproc/internal/application/streamline"
	"github.com/captjt/devproc/internal/domain/apperr"
	"github.com/captjt/devproc/internal/domain/config"
	domainhealthcheck "github.com/captjt/devproc/internal/domain/healthcheck"
	"github.com/captjt/devproc/internal/domain/graph"
	domainprocess "github.com/captjt/devproc/internal/domain/process"
)

// Start brings a service up (§4.I.2). It is a no-op if the service is
// already running or healthy unless opts.Force is set, in which case it is
// stopped first. Unless opts.SkipDeps, every declared dependency is
// (recursively) started and waited on before this service's own process is
// spawned — the dependent's status stays Stopped for the whole wait, only
// moving to Starting once every dependency condition is satisfied, so the
// two-service gating scenario (§8 scenario 1) observes
// a.starting, a.healthy, b.starting, b.running in that order.
func (s *Supervisor) Start(ctx context.Context, name string, opts StartOptions) error {
	rt, ok := s.runtime(name)
	if !ok {
		return s.unknownService(name)
	}

	rt.opMu.Lock()
	defer rt.opMu.Unlock()

	current := rt.currentState()
	if current == domainprocess.Running || current == domainprocess.Healthy {
		if !opts.Force {
			return nil
		}
		if err := s.stopLocked(ctx, rt, name, StopOptions{}); err != nil {
			return err
		}
	}

	if !opts.SkipDeps {
		if err := s.awaitDependencies(ctx, rt.svc); err != nil {
			return err
		}
	}

	return s.spawnLocked(ctx, rt, name)
}

// awaitDependencies starts (if needed) and waits on every dependency edge
// of svc, enforcing the 60s ceiling of §5 per edge.
func (s *Supervisor) awaitDependencies(ctx context.Context, svc config.Service) error {
	for _, edge := range svc.DependsOn {
		depRT, ok := s.runtime(edge.Name)
		if !ok {
			return s.unknownService(edge.Name)
		}

		depState := depRT.currentState()
		if depState != domainprocess.Running && depState != domainprocess.Healthy {
			if err := s.Start(ctx, edge.Name, StartOptions{}); err != nil {
				return fmt.Errorf("starting dependency %q: %w", edge.Name, err)
			}
		}

		waitCtx, cancel := context.WithTimeout(ctx, DependencyWaitTimeout)
		err := depRT.waitFor(waitCtx, func(st domainprocess.State) bool {
			if edge.Condition == config.WaitHealthy {
				return st == domainprocess.Healthy
			}
			return st == domainprocess.Running || st == domainprocess.Healthy
		})
		cancel()
		if err != nil {
			return fmt.Errorf("waiting on dependency %q: %w", edge.Name, err)
		}
	}
	return nil
}

// spawnLocked performs the actual spawn: tokenize, exec, attach streams,
// track resources, then gate on the healthcheck (if any) before handing
// off to continuous poll mode. The caller must hold rt.opMu.
func (s *Supervisor) spawnLocked(ctx context.Context, rt *runtime, name string) error {
	s.transition(rt, name, domainprocess.Starting)

	argv, err := spawner.Tokenize(rt.svc.Cmd)
	if err != nil {
		s.failStart(rt, name, err)
		return err
	}

	spec := domainprocess.Spec{Argv: argv, Dir: rt.svc.Cwd, Env: rt.svc.Env}
	handle, err := s.executor.Start(s.ctx, spec)
	if err != nil {
		s.failStart(rt, name, err)
		return err
	}

	exitedCh := make(chan struct{})
	rt.mu.Lock()
	rt.handle = handle
	rt.pid = handle.PID()
	rt.startedAt = time.Now()
	rt.stoppedAt = time.Time{}
	rt.lastExit = nil
	rt.exited = exitedCh
	rt.stats.StartCount++
	rt.mu.Unlock()

	s.attachStreams(name, handle)
	s.sampler.Track(name, handle.PID())
	go s.watchExit(name, rt, handle)

	if rt.svc.Healthcheck == nil {
		s.transition(rt, name, domainprocess.Running)
		return nil
	}

	runner := apphealthcheck.NewRunner(name, *rt.svc.Healthcheck, s.executor)
	healthy := runner.WaitForHealthy(s.ctx, func(line domainprocess.LogLine) {
		s.logs.Append(line)
		s.publishLog(line)
	})
	if !healthy {
		hcErr := fmt.Errorf("%w: service %q", apperr.ErrHealthcheckExhausted, name)
		rt.mu.Lock()
		rt.stats.FailCount++
		rt.mu.Unlock()
		s.transition(rt, name, domainprocess.Failed)
		s.publishError(name, hcErr)
		return hcErr
	}

	s.transition(rt, name, domainprocess.Healthy)

	poller := runner.StartPoller(s.ctx, func(result domainhealthcheck.Result) {
		s.onPollResult(name, rt, result)
	})
	rt.mu.Lock()
	rt.poller = poller
	rt.mu.Unlock()

	return nil
}

// failStart transitions rt to Failed and publishes the async error (§7:
// SpawnError is visible via state-change + error events).
func (s *Supervisor) failStart(rt *runtime, name string, err error) {
	rt.mu.Lock()
	rt.stats.FailCount++
	rt.mu.Unlock()
	s.transition(rt, name, domainprocess.Failed)
	s.publishError(name, err)
}

// attachStreams spawns the two stream readers (§4.E) that feed a service's
// captured stdout/stderr into the log buffers and the log event channel.
func (s *Supervisor) attachStreams(name string, handle domainprocess.Handle) {
	emit := func(line domainprocess.LogLine) {
		s.logs.Append(line)
		s.publishLog(line)
	}
	go func() {
		_ = streamline.Read(handle.Stdout(), name, domainprocess.StreamStdout, emit)
	}()
	go func() {
		_ = streamline.Read(handle.Stderr(), name, domainprocess.StreamStderr, emit)
	}()
}

// onPollResult applies a poll-mode probe result as a status flap (§4.I.1:
// running <-> healthy), ignoring stale results delivered after the service
// has already stopped or crashed.
func (s *Supervisor) onPollResult(name string, rt *runtime, result domainhealthcheck.Result) {
	current := rt.currentState()
	switch {
	case current == domainprocess.Running && result.Healthy:
		s.transition(rt, name, domainprocess.Healthy)
	case current == domainprocess.Healthy && !result.Healthy:
		s.transition(rt, name, domainprocess.Running)
	}
}

// watchExit is the sole reader of handle.Wait(); it is started once per
// spawn and drives every transition that results from the child exiting on
// its own, rather than from an explicit Stop call. When a stopLocked call
// is in flight for this service (state already Stopping), watchExit only
// records the result and signals exitedCh — stopLocked itself finalizes the
// state so the two paths never race to transition the same runtime.
func (s *Supervisor) watchExit(name string, rt *runtime, handle domainprocess.Handle) {
	result := <-handle.Wait()

	rt.mu.Lock()
	rt.lastExit = &result
	wasStopping := rt.state == domainprocess.Stopping
	exitedCh := rt.exited
	rt.mu.Unlock()
	close(exitedCh)

	if wasStopping {
		return
	}

	rt.mu.Lock()
	poller := rt.poller
	rt.poller = nil
	rt.pid = 0
	rt.stoppedAt = time.Now()
	rt.mu.Unlock()
	if poller != nil {
		poller.Stop()
	}
	s.sampler.Untrack(name)

	if result.Code == 0 {
		s.transition(rt, name, domainprocess.Stopped)
		s.maybeEmitAllStopped()
		s.maybeScheduleRestart(name, rt, result.Code, domainprocess.Stopped)
		return
	}

	rt.mu.Lock()
	rt.stats.CrashCount++
	uptime := time.Since(rt.startedAt)
	rt.tracker.MaybeReset(uptime)
	rt.mu.Unlock()
	s.transition(rt, name, domainprocess.Crashed)
	s.maybeScheduleRestart(name, rt, result.Code, domainprocess.Crashed)
}

// maybeScheduleRestart applies the restart policy (§4.I.1) after the child
// exited on its own, whether that exit was unclean (fromState Crashed) or
// clean (fromState Stopped — only reachable here for policy `always`, which
// "additionally restarts on clean exit"). The fixed 1s back-off timer
// re-checks that the service is still in fromState under the same stop
// generation before respawning, so an explicit Stop call issued while the
// timer is pending cancels the restart (§4.I.1: "provided the service is
// still in crashed when the timer fires").
func (s *Supervisor) maybeScheduleRestart(name string, rt *runtime, exitCode int, fromState domainprocess.State) {
	rt.mu.Lock()
	tracker := rt.tracker
	gen := rt.stopGeneration
	rt.mu.Unlock()

	if !tracker.ShouldRestart(exitCode) {
		return
	}

	delay := tracker.NextDelay()
	time.AfterFunc(delay, func() {
		rt.opMu.Lock()
		defer rt.opMu.Unlock()

		rt.mu.Lock()
		stillEligible := rt.state == fromState && rt.stopGeneration == gen
		rt.mu.Unlock()
		if !stillEligible {
			return
		}

		tracker.RecordAttempt()
		rt.mu.Lock()
		rt.restartCount++
		rt.stats.RestartCount++
		rt.mu.Unlock()

		_ = s.spawnLocked(context.Background(), rt, name)
	})
}

// stopLocked is Stop's body, callable by Start's force-stop path without
// re-acquiring rt.opMu (the caller already holds it). Incrementing
// stopGeneration unconditionally, even for the no-op early return, means an
// explicit Stop call on a Crashed service (which Stop otherwise treats as a
// no-op) still cancels any restart timer waiting on that generation.
func (s *Supervisor) stopLocked(ctx context.Context, rt *runtime, name string, opts StopOptions) error {
	rt.mu.Lock()
	rt.stopGeneration++
	rt.mu.Unlock()

	current := rt.currentState()
	if current != domainprocess.Running && current != domainprocess.Healthy && current != domainprocess.Starting {
		return nil
	}

	if !opts.SkipDependents {
		s.stopDependents(ctx, name)
	}

	s.transition(rt, name, domainprocess.Stopping)

	rt.mu.Lock()
	poller := rt.poller
	rt.poller = nil
	handle := rt.handle
	exitedCh := rt.exited
	rt.mu.Unlock()
	if poller != nil {
		poller.Stop()
	}

	if handle == nil {
		// Starting but the spawn itself hasn't produced a handle yet
		// (e.g. tokenize/exec failed synchronously before this call could
		// observe it) — nothing to signal; finalize directly.
		s.finalizeStop(rt, name)
		return nil
	}

	sig := s.resolveStopSignal(rt, opts)
	_ = handle.Signal(sig)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = domainprocess.StopTimeout
	}

	timer := time.NewTimer(timeout)
	select {
	case <-exitedCh:
		timer.Stop()
	case <-timer.C:
		_ = handle.Kill()
		<-exitedCh
	}

	s.finalizeStop(rt, name)
	return nil
}

// stopDependents recursively stops every service that declares name as a
// dependency, in parallel (§4.I.2).
func (s *Supervisor) stopDependents(ctx context.Context, name string) {
	s.mu.RLock()
	project := s.project
	s.mu.RUnlock()

	dependents := graph.Dependents(project, name)
	var wg sync.WaitGroup
	for _, dep := range dependents {
		dep := dep
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Stop(ctx, dep, StopOptions{})
		}()
	}
	wg.Wait()
}

// finalizeStop applies the terminal bookkeeping common to both the
// graceful and hard-kill exit paths: untrack resources, clear pid, mark
// stopped, and emit all-stopped if this was the last active service.
func (s *Supervisor) finalizeStop(rt *runtime, name string) {
	s.sampler.Untrack(name)
	rt.mu.Lock()
	rt.pid = 0
	rt.stoppedAt = time.Now()
	rt.stats.StopCount++
	rt.mu.Unlock()
	s.transition(rt, name, domainprocess.Stopped)
	s.maybeEmitAllStopped()
}

// resolveStopSignal picks opts.Signal if set, else the service's
// configured stop_signal, falling back to the hard-kill signal if the name
// doesn't resolve (should not happen for a validated config).
func (s *Supervisor) resolveStopSignal(rt *runtime, opts StopOptions) os.Signal {
	name := opts.Signal
	if name == "" {
		name = rt.svc.StopSignal
	}
	sig, err := s.resolveSignal(name)
	if err != nil {
		return s.hardKill
	}
	return sig
}

// Stop brings a service down (§4.I.2). It is a no-op unless the service is
// currently running, healthy, or starting. Dependents are stopped first
// unless opts.SkipDependents.
func (s *Supervisor) Stop(ctx context.Context, name string, opts StopOptions) error {
	rt, ok := s.runtime(name)
	if !ok {
		return s.unknownService(name)
	}

	rt.opMu.Lock()
	defer rt.opMu.Unlock()
	return s.stopLocked(ctx, rt, name, opts)
}

// Restart stops then starts a service (§4.I.2).
func (s *Supervisor) Restart(ctx context.Context, name string) error {
	if err := s.Stop(ctx, name, StopOptions{}); err != nil {
		return err
	}
	return s.Start(ctx, name, StartOptions{})
}

// transition moves rt to next, logging (but not rejecting) an edge the
// state machine table doesn't list, and publishes the state-change event.
func (s *Supervisor) transition(rt *runtime, name string, next domainprocess.State) domainprocess.State {
	prev := rt.setState(next)
	if !domainprocess.CanTransition(prev, next) {
		s.logger.Printf("supervisor: %s: unexpected transition %s -> %s", name, prev, next)
	}
	s.publishStateChange(name, prev, next)
	return prev
}

// maybeEmitAllStopped publishes all-stopped once every tracked service's
// status has become terminal (§4.I.2, §4.I.3).
func (s *Supervisor) maybeEmitAllStopped() {
	s.mu.RLock()
	runtimes := make([]*runtime, 0, len(s.runtimes))
	for _, rt := range s.runtimes {
		runtimes = append(runtimes, rt)
	}
	s.mu.RUnlock()

	for _, rt := range runtimes {
		if !rt.currentState().Terminal() {
			return
		}
	}
	s.publishAllStopped()
}

// StartAll starts every service in dependency order (§4.I.2). Per-service
// errors are collected but do not abort the batch.
func (s *Supervisor) StartAll(ctx context.Context) []error {
	s.mu.RLock()
	order := append([]string(nil), s.order...)
	s.mu.RUnlock()

	var errs []error
	for _, name := range order {
		if err := s.Start(ctx, name, StartOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}

// StopAll stops every service in reverse dependency order (§4.I.2, P4):
// each service is told to skip its own dependent-cascade since iterating
// in reverse order already guarantees dependents are visited first.
func (s *Supervisor) StopAll(ctx context.Context) []error {
	s.mu.RLock()
	order := graph.ReverseOrder(s.order)
	s.mu.RUnlock()

	var errs []error
	for _, name := range order {
		if err := s.Stop(ctx, name, StopOptions{SkipDependents: true}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}

// RestartAll stops then starts every service (§4.I.2).
func (s *Supervisor) RestartAll(ctx context.Context) []error {
	errs := s.StopAll(ctx)
	return append(errs, s.StartAll(ctx)...)
}

// groupMembersInOrder returns group's members filtered from the
// supervisor's topological order, so group operations respect the same
// dependency ordering as the full-project ones.
func (s *Supervisor) groupMembersInOrder(group string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make(map[string]bool, len(s.project.Groups[group]))
	for _, n := range s.project.Groups[group] {
		members[n] = true
	}
	out := make([]string, 0, len(members))
	for _, name := range s.order {
		if members[name] {
			out = append(out, name)
		}
	}
	return out
}

// StartGroup starts only group's members, in dependency order (§4.I.2, §6).
func (s *Supervisor) StartGroup(ctx context.Context, group string) []error {
	var errs []error
	for _, name := range s.groupMembersInOrder(group) {
		if err := s.Start(ctx, name, StartOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}

// StopGroup stops only group's members, in reverse dependency order.
func (s *Supervisor) StopGroup(ctx context.Context, group string) []error {
	members := s.groupMembersInOrder(group)
	var errs []error
	for i := len(members) - 1; i >= 0; i-- {
		if err := s.Stop(ctx, members[i], StopOptions{SkipDependents: true}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", members[i], err))
		}
	}
	return errs
}
