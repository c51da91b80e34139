// Package graph resolves a project's service dependency edges into a
// start order (dependencies before dependents) and detects cycles,
// reporting the offending path rather than a bare "cycle detected" (§4.C).
package graph

import (
	"fmt"
	"strings"

	"github.com/captjt/devproc/internal/domain/apperr"
	"github.com/captjt/devproc/internal/domain/config"
)

// visitState is the per-node coloring used by the DFS cycle check: white
// (unvisited), grey (on the current recursion stack), black (finished).
type visitState int

const (
	white visitState = iota
	grey
	black
)

// Resolve returns the services of p in dependency order: every service
// appears after all services it depends on, and ties are broken by
// declaration order (a stable topological sort). It returns
// apperr.ErrInvalidConfig wrapping the cycle path (joined with " -> ") if
// the dependency graph is not a DAG.
func Resolve(p *config.Project) ([]string, error) {
	order := make([]string, 0, len(p.Services))
	state := make(map[string]visitState, len(p.Services))
	stack := make([]string, 0, len(p.Services))

	byName := make(map[string]*config.Service, len(p.Services))
	for i := range p.Services {
		byName[p.Services[i].Name] = &p.Services[i]
	}

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case black:
			return nil
		case grey:
			stack = append(stack, name)
			return fmt.Errorf("%w: dependency cycle: %s", apperr.ErrInvalidConfig, strings.Join(cyclePath(stack), " -> "))
		}

		state[name] = grey
		stack = append(stack, name)

		svc := byName[name]
		for _, edge := range svc.DependsOn {
			if err := visit(edge.Name); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = black
		order = append(order, name)
		return nil
	}

	for i := range p.Services {
		name := p.Services[i].Name
		if state[name] == white {
			if err := visit(name); err != nil {
				return nil, err
			}
		}
	}

	return order, nil
}

// cyclePath trims the recursion stack down to just the cycle: from the
// first repeated occurrence of the final (back-edge) node to the end.
func cyclePath(stack []string) []string {
	if len(stack) == 0 {
		return stack
	}
	target := stack[len(stack)-1]
	for i, name := range stack {
		if name == target {
			return stack[i:]
		}
	}
	return stack
}

// ReverseOrder returns order reversed, the order stop-all uses so that
// dependents are stopped before the services they depend on.
func ReverseOrder(order []string) []string {
	reversed := make([]string, len(order))
	for i, name := range order {
		reversed[len(order)-1-i] = name
	}
	return reversed
}

// Dependents returns the names of every service in p that directly
// depends on name, in declaration order. Used by stop() to decide which
// peers must also stop when skipDependents is not requested.
func Dependents(p *config.Project, name string) []string {
	var deps []string
	for i := range p.Services {
		svc := &p.Services[i]
		for _, edge := range svc.DependsOn {
			if edge.Name == name {
				deps = append(deps, svc.Name)
				break
			}
		}
	}
	return deps
}
