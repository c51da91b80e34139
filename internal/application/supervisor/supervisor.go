// Package supervisor is the orchestrator (§4.I): it owns every service's
// runtime state, drives the per-service lifecycle state machine, attaches
// stream readers and resource tracking at spawn time, gates starts on
// dependency wait-conditions, and fans out transitions over a typed event
// bus. It is the heart of the core (§2: "48% of the core").
package supervisor

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	appconfig "github.com/captjt/devproc/internal/application/config"
	"github.com/captjt/devproc/internal/application/resources"
	"github.com/captjt/devproc/internal/domain/config"
	"github.com/captjt/devproc/internal/domain/graph"
	domainprocess "github.com/captjt/devproc/internal/domain/process"
	domainresources "github.com/captjt/devproc/internal/domain/resources"
	"github.com/captjt/devproc/internal/domain/logbuffer"
)

// Supervisor is the single owned value the CLI layer constructs, hands to
// observers (the TUI, in the source system), and disposes on exit — never
// a process-global singleton (§9 design note: "Global manager -> one owner
// object").
type Supervisor struct {
	mu      sync.RWMutex
	project *config.Project
	order   []string
	runtimes map[string]*runtime

	loader   appconfig.Loader
	executor domainprocess.Executor

	resolveSignal SignalResolver
	hardKill      os.Signal

	logs    *logbuffer.Store
	sampler *resources.Sampler
	events  *EventBus
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Config bundles New's collaborators. executor, resolveSignal,
// and hardKill are infrastructure adapters the CLI wires in (the unix
// process executor, internal/infrastructure/process/signal.ByName, and
// .Hardkill respectively); prober likewise comes from
// internal/infrastructure/resources/ps.
type Config struct {
	Project       *config.Project
	Loader        appconfig.Loader
	Executor      domainprocess.Executor
	Prober        domainresources.Prober
	ResolveSignal SignalResolver
	HardKill      os.Signal
	Logger        *log.Logger
}

// New builds a Supervisor over project, with every service starting in the
// stopped state. The supervisor owns the resource sampler and starts it
// immediately; it stops when Close is called.
func New(cfg Config) (*Supervisor, error) {
	if err := cfg.Project.Validate(); err != nil {
		return nil, err
	}
	order, err := graph.Resolve(cfg.Project)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Supervisor{
		project:       cfg.Project,
		order:         order,
		runtimes:      make(map[string]*runtime, len(cfg.Project.Services)),
		loader:        cfg.Loader,
		executor:      cfg.Executor,
		resolveSignal: cfg.ResolveSignal,
		hardKill:      cfg.HardKill,
		logs:          logbuffer.NewStore(),
		events:        newEventBus(),
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
	}

	for i := range cfg.Project.Services {
		svc := cfg.Project.Services[i]
		s.runtimes[svc.Name] = newRuntime(svc)
	}

	s.sampler = resources.New(cfg.Prober, resources.DefaultInterval, s.onResourceUpdate)
	s.sampler.Start()

	return s, nil
}

// Close stops the resource sampler and cancels the supervisor's internal
// context, which unblocks any in-flight probes or pollers spawned with it.
// It does not stop running services — call StopAll first.
func (s *Supervisor) Close() {
	s.sampler.Stop()
	s.cancel()
}

// Events returns the supervisor's typed event bus (§4.I.3).
func (s *Supervisor) Events() *EventBus {
	return s.events
}

// runtime looks up the named service's runtime, or (nil, false).
func (s *Supervisor) runtime(name string) (*runtime, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.runtimes[name]
	return rt, ok
}

// GetState returns a point-in-time snapshot of one service's runtime state.
func (s *Supervisor) GetState(name string) (domainprocess.Status, bool) {
	rt, ok := s.runtime(name)
	if !ok {
		return domainprocess.Status{}, false
	}
	return rt.snapshotStatus(name), true
}

// GetAllStates returns every service's status in topological order (§6).
func (s *Supervisor) GetAllStates() []domainprocess.Status {
	s.mu.RLock()
	order := append([]string(nil), s.order...)
	s.mu.RUnlock()

	out := make([]domainprocess.Status, 0, len(order))
	for _, name := range order {
		if rt, ok := s.runtime(name); ok {
			out = append(out, rt.snapshotStatus(name))
		}
	}
	return out
}

// GetServiceConfig returns the normalized configuration for a service.
func (s *Supervisor) GetServiceConfig(name string) (config.Service, bool) {
	rt, ok := s.runtime(name)
	if !ok {
		return config.Service{}, false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.svc, true
}

// GetGroups returns the project's named service groups.
func (s *Supervisor) GetGroups() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.project.Groups))
	for name, members := range s.project.Groups {
		out[name] = append([]string(nil), members...)
	}
	return out
}

// GetResourceHistory returns a snapshot of a service's retained resource
// samples, oldest first (§4.G).
func (s *Supervisor) GetResourceHistory(name string) []domainresources.Sample {
	return s.sampler.History(name)
}

// Stats returns the lifetime lifecycle counters for a service.
func (s *Supervisor) Stats(name string) (ServiceStats, bool) {
	rt, ok := s.runtime(name)
	if !ok {
		return ServiceStats{}, false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	stats := rt.stats.snapshot()
	stats.FlapAttempts = rt.tracker.Attempts()
	return stats, true
}

// ServiceLogs returns a snapshot of the last n log lines for a service (all
// retained lines if n <= 0).
func (s *Supervisor) ServiceLogs(name string, n int) []domainprocess.LogLine {
	return s.logs.Service(name, n)
}

// GlobalLogs returns a snapshot of the last n log lines across every
// service (all retained lines if n <= 0).
func (s *Supervisor) GlobalLogs(n int) []domainprocess.LogLine {
	return s.logs.Global(n)
}

// ClearLogs empties one service's log buffer, or every buffer if name is
// empty (§4.H).
func (s *Supervisor) ClearLogs(name string) {
	if name == "" {
		s.logs.ClearAll()
		return
	}
	s.logs.Clear(name)
}

func (s *Supervisor) unknownService(name string) error {
	return fmt.Errorf("unknown service %q", name)
}
