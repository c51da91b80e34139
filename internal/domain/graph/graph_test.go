package graph_test

import (
	"testing"

	"github.com/captjt/devproc/internal/domain/apperr"
	"github.com/captjt/devproc/internal/domain/config"
	"github.com/captjt/devproc/internal/domain/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func svc(name string, deps ...string) config.Service {
	edges := make([]config.DependencyEdge, len(deps))
	for i, d := range deps {
		edges[i] = config.DependencyEdge{Name: d, Condition: config.WaitStarted}
	}
	return config.Service{Name: name, Cmd: "x", DependsOn: edges}
}

func TestResolve_OrdersDependenciesBeforeDependents(t *testing.T) {
	p := &config.Project{Services: []config.Service{
		svc("api", "db", "cache"),
		svc("db"),
		svc("cache"),
	}}

	order, err := graph.Resolve(p)
	require.NoError(t, err)
	require.Len(t, order, 3)

	pos := map[string]int{}
	for i, name := range order {
		pos[name] = i
	}
	assert.Less(t, pos["db"], pos["api"])
	assert.Less(t, pos["cache"], pos["api"])
}

func TestResolve_StableForIndependentServices(t *testing.T) {
	p := &config.Project{Services: []config.Service{svc("a"), svc("b"), svc("c")}}
	order, err := graph.Resolve(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestResolve_DetectsDirectCycle(t *testing.T) {
	p := &config.Project{Services: []config.Service{svc("a", "b"), svc("b", "a")}}
	_, err := graph.Resolve(p)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestResolve_DetectsTransitiveCycle(t *testing.T) {
	p := &config.Project{Services: []config.Service{svc("a", "b"), svc("b", "c"), svc("c", "a")}}
	_, err := graph.Resolve(p)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidConfig)
}

func TestReverseOrder(t *testing.T) {
	assert.Equal(t, []string{"c", "b", "a"}, graph.ReverseOrder([]string{"a", "b", "c"}))
}

func TestDependents(t *testing.T) {
	p := &config.Project{Services: []config.Service{
		svc("api", "db"),
		svc("worker", "db"),
		svc("db"),
	}}
	assert.ElementsMatch(t, []string{"api", "worker"}, graph.Dependents(p, "db"))
	assert.Empty(t, graph.Dependents(p, "api"))
}
