// Package config defines the normalized, immutable description of a
// project: its services, global environment, groups, and dependency edges
// (§3). Values here are produced by a Loader (see
// internal/application/config and internal/infrastructure/config/yaml) and
// are never mutated after construction — runtime state lives in the
// supervisor, not here.
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/captjt/devproc/internal/domain/apperr"
)

// WaitCondition is the condition a dependent waits for on a dependency
// before it is allowed to start (§3, §4.I.2).
type WaitCondition string

// Wait conditions a dependsOn edge may declare.
const (
	WaitStarted WaitCondition = "started"
	WaitHealthy WaitCondition = "healthy"
)

// RestartPolicy controls whether a service is respawned after its process
// exits (§3).
type RestartPolicy string

// Restart policies.
const (
	RestartNo        RestartPolicy = "no"
	RestartOnFailure RestartPolicy = "on-failure"
	RestartAlways    RestartPolicy = "always"
)

// ProbeSpec is a healthcheck probe definition (§3): a command, and the
// interval/timeout/retries governing both gate mode and poll mode.
type ProbeSpec struct {
	Cmd        string
	IntervalMs int64
	TimeoutMs  int64
	Retries    int
}

// Default probe values used when a service's healthcheck is given in its
// bare-string shorthand (§4.B).
const (
	DefaultProbeIntervalMs int64 = 2000
	DefaultProbeTimeoutMs  int64 = 5000
	DefaultProbeRetries    int   = 10
)

// DependencyEdge is one entry of a service's dependsOn mapping: the peer
// name and the condition the dependent requires of it.
type DependencyEdge struct {
	Name      string
	Condition WaitCondition
}

// Service is the normalized, declarative description of one managed
// service (§3).
type Service struct {
	// Name is the unique, insertion-ordered key for this service.
	Name string
	// Cmd is the raw command string, tokenized at spawn time (§4.D).
	Cmd string
	// Cwd is an absolute working directory, or empty when none is
	// configured (the child then inherits the supervisor's own).
	Cwd string
	// Env is already merged: service overrides global, both override
	// dotenv (§4.B).
	Env map[string]string
	// DependsOn keeps the order the loader produced. The YAML loader sorts
	// the edges by dependency name, so the order in which the file declared
	// them is not preserved.
	DependsOn []DependencyEdge
	// Healthcheck is nil when the service has no probe configured.
	Healthcheck *ProbeSpec
	// Restart is the restart policy applied on process exit.
	Restart RestartPolicy
	// StopSignal is the signal name sent to request graceful shutdown,
	// e.g. "SIGTERM".
	StopSignal string
	// Color is an opaque display hint, never interpreted by the core.
	Color string
	// Group is an opaque display hint; a service belongs to at most one.
	Group string
}

// DefaultStopSignal is used when a service does not specify one (§3).
const DefaultStopSignal = "SIGTERM"

// Project is the normalized, immutable description of the whole project
// (§3): its services in declaration order, and named groups of them.
type Project struct {
	Name string
	// Env is the global environment, already merged with dotenv at load
	// time (service-level Env in each Service further overrides this).
	Env map[string]string
	// Services preserves declaration order; this order is the input to the
	// dependency resolver (§4.C).
	Services []Service
	// Groups maps a group name to its ordered member service names.
	Groups map[string][]string
	// ConfigPath is the source path, used by Supervisor.ReloadConfig.
	ConfigPath string
}

// FindService returns the service with the given name, or nil.
func (p *Project) FindService(name string) *Service {
	for i := range p.Services {
		if p.Services[i].Name == name {
			return &p.Services[i]
		}
	}
	return nil
}

// Validate checks every invariant in §3: the project has services, each
// has a non-empty unique name and a cmd, dependsOn targets exist, a
// healthy-condition edge targets a service with a healthcheck, every group
// member exists, and every service belongs to at most one group. It does not check for cycles — cycle detection is the
// dependency resolver's job (internal/domain/graph) since it must also
// report the offending path.
func (p *Project) Validate() error {
	if len(p.Services) == 0 {
		return fmt.Errorf("%w: project has no services", apperr.ErrInvalidConfig)
	}

	byName := make(map[string]*Service, len(p.Services))
	for i := range p.Services {
		svc := &p.Services[i]
		if svc.Name == "" {
			return fmt.Errorf("%w: service at index %d has no name", apperr.ErrInvalidConfig, i)
		}
		if svc.Cmd == "" {
			return fmt.Errorf("%w: service %q has no cmd", apperr.ErrInvalidConfig, svc.Name)
		}
		if _, dup := byName[svc.Name]; dup {
			return fmt.Errorf("%w: duplicate service name %q", apperr.ErrInvalidConfig, svc.Name)
		}
		byName[svc.Name] = svc
	}

	for i := range p.Services {
		svc := &p.Services[i]
		for _, edge := range svc.DependsOn {
			dep, ok := byName[edge.Name]
			if !ok {
				return fmt.Errorf("%w: service %q depends on unknown service %q", apperr.ErrInvalidConfig, svc.Name, edge.Name)
			}
			if edge.Condition == WaitHealthy && dep.Healthcheck == nil {
				return fmt.Errorf("%w: service %q depends on %q being healthy, but %q has no healthcheck", apperr.ErrInvalidConfig, svc.Name, edge.Name, edge.Name)
			}
		}
	}

	if err := p.validateGroups(byName); err != nil {
		return err
	}

	return nil
}

// validateGroups checks that every named group member exists and that no
// service is claimed by more than one group.
func (p *Project) validateGroups(byName map[string]*Service) error {
	owner := make(map[string]string, len(byName))
	// Sort group names for a deterministic error message across runs.
	names := make([]string, 0, len(p.Groups))
	for g := range p.Groups {
		names = append(names, g)
	}
	sort.Strings(names)

	for _, g := range names {
		for _, member := range p.Groups[g] {
			if _, ok := byName[member]; !ok {
				return fmt.Errorf("%w: group %q references unknown service %q", apperr.ErrInvalidConfig, g, member)
			}
			if prev, claimed := owner[member]; claimed && prev != g {
				return fmt.Errorf("%w: service %q belongs to both group %q and %q", apperr.ErrInvalidConfig, member, prev, g)
			}
			owner[member] = g
		}
	}
	return nil
}

// mergeEnv layers service env over global env over dotenv, the precedence
// order specified in §4.B. Each map may be nil.
func mergeEnv(dotenv, global, service map[string]string) map[string]string {
	merged := make(map[string]string, len(dotenv)+len(global)+len(service))
	for k, v := range dotenv {
		merged[k] = v
	}
	for k, v := range global {
		merged[k] = v
	}
	for k, v := range service {
		merged[k] = v
	}
	return merged
}

// MergeEnv is the exported form of mergeEnv used by the config loader when
// normalizing raw YAML into a Project.
func MergeEnv(dotenv, global, service map[string]string) map[string]string {
	return mergeEnv(dotenv, global, service)
}

// CurrentEnviron returns the current process environment as a map, for
// building a display view of a child's final environment; it plays no part
// in spawning, since the executor does the actual merge onto os.Environ()
// at spawn time.
func CurrentEnviron() map[string]string {
	raw := os.Environ()
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}
