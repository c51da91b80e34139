package supervisor

import (
	"context"

	appconfig "github.com/captjt/devproc/internal/application/config"
	"github.com/captjt/devproc/internal/domain/graph"
	"github.com/captjt/devproc/internal/domain/process"
)

// ReloadConfig re-loads the project from its original ConfigPath, diffs it
// against the live config, and applies the minimal set of stop/start calls
// to converge (§4.I.2, P8/P9): removed services are stopped and dropped,
// added services get an initial stopped runtime, and modified services are
// stopped, swapped, and restarted only if they were running before the
// swap. A load or validation failure leaves every runtime untouched and
// emits config-error instead of config-reloaded.
func (s *Supervisor) ReloadConfig(ctx context.Context) error {
	s.mu.RLock()
	path := s.project.ConfigPath
	prev := s.project
	s.mu.RUnlock()

	next, err := s.loader.Load(path)
	if err != nil {
		s.publishConfigError(err)
		return err
	}
	if err := next.Validate(); err != nil {
		s.publishConfigError(err)
		return err
	}
	order, err := graph.Resolve(next)
	if err != nil {
		s.publishConfigError(err)
		return err
	}

	diff := appconfig.ComputeDiff(prev, next)

	for _, name := range diff.Removed {
		if rt, ok := s.runtime(name); ok && rt.currentState().Active() {
			_ = s.Stop(ctx, name, StopOptions{})
		}
		s.mu.Lock()
		delete(s.runtimes, name)
		s.mu.Unlock()
	}

	for _, name := range diff.Added {
		svc := next.FindService(name)
		if svc == nil {
			continue
		}
		s.mu.Lock()
		s.runtimes[name] = newRuntime(*svc)
		s.mu.Unlock()
	}

	for _, name := range diff.Modified {
		rt, ok := s.runtime(name)
		if !ok {
			continue
		}
		wasRunning := isRunningOrHealthy(rt.currentState())
		if wasRunning {
			_ = s.Stop(ctx, name, StopOptions{})
		}

		svc := next.FindService(name)
		if svc == nil {
			continue
		}
		s.mu.Lock()
		s.runtimes[name] = newRuntime(*svc)
		s.mu.Unlock()

		if wasRunning {
			if err := s.Start(ctx, name, StartOptions{}); err != nil {
				s.publishError(name, err)
			}
		}
	}

	s.mu.Lock()
	s.project = next
	s.order = order
	s.mu.Unlock()

	s.publishConfigReloaded(diff)
	return nil
}

func isRunningOrHealthy(st process.State) bool {
	return st == process.Running || st == process.Healthy
}
