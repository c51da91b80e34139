package config

import (
	"reflect"

	"github.com/captjt/devproc/internal/domain/config"
)

// Diff is the three-way change set computed by reloading a project
// against its previous version (§4.I.2, P8/P9).
type Diff struct {
	Added    []string
	Removed  []string
	Modified []string
}

// Empty reports whether the diff represents no change at all.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// ComputeDiff compares prev against next and classifies every service
// name as added, removed, or modified. A service present in both is
// "modified" if its cmd, cwd, env, dependsOn, restart, or group changed.
// Healthcheck is intentionally excluded from this comparison — see the
// project's open-question notes on why the modified detector does not
// consider it.
func ComputeDiff(prev, next *config.Project) Diff {
	prevByName := indexByName(prev)
	nextByName := indexByName(next)

	var diff Diff
	// Iterate the projects' own declaration order rather than the lookup
	// maps so the result is deterministic across runs (P3-style stability
	// applied to reload diffing, not just the dependency resolver).
	for i := range next.Services {
		name := next.Services[i].Name
		if _, ok := prevByName[name]; !ok {
			diff.Added = append(diff.Added, name)
		}
	}
	for i := range prev.Services {
		name := prev.Services[i].Name
		if _, ok := nextByName[name]; !ok {
			diff.Removed = append(diff.Removed, name)
		}
	}
	for i := range next.Services {
		name := next.Services[i].Name
		prevSvc, ok := prevByName[name]
		if !ok {
			continue
		}
		if serviceChanged(prevSvc, nextByName[name]) {
			diff.Modified = append(diff.Modified, name)
		}
	}
	return diff
}

func indexByName(p *config.Project) map[string]*config.Service {
	out := make(map[string]*config.Service, len(p.Services))
	for i := range p.Services {
		out[p.Services[i].Name] = &p.Services[i]
	}
	return out
}

func serviceChanged(prev, next *config.Service) bool {
	if prev.Cmd != next.Cmd || prev.Cwd != next.Cwd || prev.Restart != next.Restart || prev.Group != next.Group {
		return true
	}
	if !reflect.DeepEqual(prev.Env, next.Env) {
		return true
	}
	if !reflect.DeepEqual(prev.DependsOn, next.DependsOn) {
		return true
	}
	return false
}
