//go:build unix

package supervisor_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/captjt/devproc/internal/application/supervisor"
	"github.com/captjt/devproc/internal/domain/config"
	"github.com/captjt/devproc/internal/domain/process"
	domainresources "github.com/captjt/devproc/internal/domain/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fake Executor / Handle plumbing shared by every scenario below ---

var pidSeq atomic.Int32

func nextPID() int { return int(pidSeq.Add(1)) }

// instantHandle exits with a fixed code the moment it is asked to Wait.
type instantHandle struct {
	pid  int
	wait chan process.ExitResult
}

func newInstantHandle(code int) *instantHandle {
	wait := make(chan process.ExitResult, 1)
	wait <- process.ExitResult{Code: code}
	close(wait)
	return &instantHandle{pid: nextPID(), wait: wait}
}

func (h *instantHandle) PID() int                      { return h.pid }
func (h *instantHandle) Stdout() io.Reader             { return strings.NewReader("") }
func (h *instantHandle) Stderr() io.Reader             { return strings.NewReader("") }
func (h *instantHandle) Wait() <-chan process.ExitResult { return h.wait }
func (h *instantHandle) Signal(sig os.Signal) error    { return nil }
func (h *instantHandle) Kill() error                   { return nil }

// hangingHandle never exits on its own; Signal exits it unless ignoreTerm
// is set (simulating a trap), Kill always exits it (§8 scenario 5).
type hangingHandle struct {
	pid        int
	ignoreTerm bool
	mu         sync.Mutex
	exited     bool
	wait       chan process.ExitResult
}

func newHangingHandle(ignoreTerm bool) *hangingHandle {
	return &hangingHandle{pid: nextPID(), ignoreTerm: ignoreTerm, wait: make(chan process.ExitResult, 1)}
}

func (h *hangingHandle) PID() int          { return h.pid }
func (h *hangingHandle) Stdout() io.Reader { return strings.NewReader("") }
func (h *hangingHandle) Stderr() io.Reader { return strings.NewReader("") }
func (h *hangingHandle) Wait() <-chan process.ExitResult { return h.wait }

func (h *hangingHandle) Signal(sig os.Signal) error {
	if h.ignoreTerm {
		return nil
	}
	h.exit(0)
	return nil
}

func (h *hangingHandle) Kill() error {
	h.exit(137)
	return nil
}

func (h *hangingHandle) exit(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return
	}
	h.exited = true
	h.wait <- process.ExitResult{Code: code}
	close(h.wait)
}

// fakeExecutor dispatches Start calls by the command's first token, so a
// test can give each service and each healthcheck probe its own scripted
// behavior without touching a real OS process.
type fakeExecutor struct {
	mu       sync.Mutex
	handlers map[string]func() (process.Handle, error)
	calls    map[string]int
	lastEnv  map[string]map[string]string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		handlers: make(map[string]func() (process.Handle, error)),
		calls:    make(map[string]int),
		lastEnv:  make(map[string]map[string]string),
	}
}

func (e *fakeExecutor) on(token string, handler func() (process.Handle, error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[token] = handler
}

func (e *fakeExecutor) callCount(token string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[token]
}

func (e *fakeExecutor) envFor(token string) map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastEnv[token]
}

func (e *fakeExecutor) Start(ctx context.Context, spec process.Spec) (process.Handle, error) {
	token := spec.Argv[0]
	e.mu.Lock()
	e.calls[token]++
	e.lastEnv[token] = spec.Env
	handler := e.handlers[token]
	e.mu.Unlock()
	if handler == nil {
		return nil, fmt.Errorf("fakeExecutor: no handler registered for %q", token)
	}
	return handler()
}

func exitAlways(code int) func() (process.Handle, error) {
	return func() (process.Handle, error) { return newInstantHandle(code), nil }
}

func hang(ignoreTerm bool) func() (process.Handle, error) {
	return func() (process.Handle, error) { return newHangingHandle(ignoreTerm), nil }
}

func resolveSignal(name string) (os.Signal, error) {
	switch name {
	case "SIGTERM", "":
		return syscall.SIGTERM, nil
	case "SIGKILL":
		return syscall.SIGKILL, nil
	default:
		return syscall.SIGTERM, nil
	}
}

func newTestSupervisor(t *testing.T, project *config.Project, exec *fakeExecutor) *supervisor.Supervisor {
	t.Helper()
	sup, err := supervisor.New(supervisor.Config{
		Project:       project,
		Loader:        &fakeLoader{},
		Executor:      exec,
		Prober:        noopProber{},
		ResolveSignal: resolveSignal,
		HardKill:      syscall.SIGKILL,
	})
	require.NoError(t, err)
	t.Cleanup(sup.Close)
	return sup
}

type noopProber struct{}

func (noopProber) Probe(pids []int) ([]domainresources.Reading, error) {
	return nil, nil
}

// fakeLoader implements appconfig.Loader for reload tests; each test
// supplies its own next-project sequence via the loads field.
type fakeLoader struct {
	mu    sync.Mutex
	loads []*config.Project
	idx   int
}

func (l *fakeLoader) Load(path string) (*config.Project, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.idx >= len(l.loads) {
		if len(l.loads) == 0 {
			return nil, fmt.Errorf("fakeLoader: no project configured")
		}
		return l.loads[len(l.loads)-1], nil
	}
	p := l.loads[l.idx]
	l.idx++
	return p, nil
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

// --- scenarios from §8 ---

func TestScenario_TwoServiceHealthyGating(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("svc-a", hang(false))
	exec.on("probe-a", exitAlways(0))
	exec.on("svc-b", hang(false))

	project := &config.Project{
		Name: "demo",
		Services: []config.Service{
			{
				Name:       "a",
				Cmd:        "svc-a",
				StopSignal: config.DefaultStopSignal,
				Healthcheck: &config.ProbeSpec{
					Cmd: "probe-a", IntervalMs: 5, TimeoutMs: 500, Retries: 5,
				},
			},
			{
				Name:       "b",
				Cmd:        "svc-b",
				StopSignal: config.DefaultStopSignal,
				DependsOn:  []config.DependencyEdge{{Name: "a", Condition: config.WaitHealthy}},
			},
		},
	}

	sup := newTestSupervisor(t, project, exec)
	ctx := context.Background()

	errs := sup.StartAll(ctx)
	require.Empty(t, errs)

	aState, ok := sup.GetState("a")
	require.True(t, ok)
	bState, ok := sup.GetState("b")
	require.True(t, ok)

	assert.Equal(t, process.Healthy, aState.State)
	assert.Equal(t, process.Running, bState.State)
	assert.True(t, bState.StartedAt.After(aState.StartedAt), "b must start after a")
}

func TestScenario_CycleRejection(t *testing.T) {
	project := &config.Project{
		Name: "demo",
		Services: []config.Service{
			{Name: "a", Cmd: "x", StopSignal: config.DefaultStopSignal, DependsOn: []config.DependencyEdge{{Name: "b", Condition: config.WaitStarted}}},
			{Name: "b", Cmd: "x", StopSignal: config.DefaultStopSignal, DependsOn: []config.DependencyEdge{{Name: "a", Condition: config.WaitStarted}}},
		},
	}

	_, err := supervisor.New(supervisor.Config{
		Project:       project,
		Loader:        &fakeLoader{},
		Executor:      newFakeExecutor(),
		Prober:        noopProber{},
		ResolveSignal: resolveSignal,
		HardKill:      syscall.SIGKILL,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestScenario_HealthcheckExhaustion(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("svc-a", hang(false))
	exec.on("probe-a", exitAlways(1))

	project := &config.Project{
		Name: "demo",
		Services: []config.Service{
			{
				Name:       "a",
				Cmd:        "svc-a",
				StopSignal: config.DefaultStopSignal,
				Healthcheck: &config.ProbeSpec{
					Cmd: "probe-a", IntervalMs: 5, TimeoutMs: 200, Retries: 3,
				},
			},
		},
	}

	sup := newTestSupervisor(t, project, exec)
	err := sup.Start(context.Background(), "a", supervisor.StartOptions{})
	require.Error(t, err)

	st, ok := sup.GetState("a")
	require.True(t, ok)
	assert.Equal(t, process.Failed, st.State)
	assert.NotZero(t, st.PID, "pid stays set; the probe failure doesn't imply the process is gone")

	lines := sup.ServiceLogs("a", 0)
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.Equal(t, process.StreamStderr, l.Stream)
	}
}

func TestScenario_RestartOnFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("svc-w", exitAlways(1))

	project := &config.Project{
		Name: "demo",
		Services: []config.Service{
			{Name: "w", Cmd: "svc-w", Restart: config.RestartOnFailure, StopSignal: config.DefaultStopSignal},
		},
	}

	sup := newTestSupervisor(t, project, exec)
	require.NoError(t, sup.Start(context.Background(), "w", supervisor.StartOptions{}))

	waitUntil(t, 500*time.Millisecond, func() bool {
		st, _ := sup.GetState("w")
		return st.State == process.Crashed
	})

	waitUntil(t, 2*time.Second, func() bool {
		st, _ := sup.Stats("w")
		return st.RestartCount >= 1
	})

	stats, ok := sup.Stats("w")
	require.True(t, ok)
	assert.GreaterOrEqual(t, stats.RestartCount, 1)

	st, _ := sup.GetState("w")
	assert.GreaterOrEqual(t, st.RestartCount, 1)
}

func TestScenario_RestartPolicyNo_StaysCrashed(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("svc-w", exitAlways(1))

	project := &config.Project{
		Name: "demo",
		Services: []config.Service{
			{Name: "w", Cmd: "svc-w", Restart: config.RestartNo, StopSignal: config.DefaultStopSignal},
		},
	}

	sup := newTestSupervisor(t, project, exec)
	require.NoError(t, sup.Start(context.Background(), "w", supervisor.StartOptions{}))

	waitUntil(t, 500*time.Millisecond, func() bool {
		st, _ := sup.GetState("w")
		return st.State == process.Crashed
	})

	time.Sleep(1200 * time.Millisecond)

	st, _ := sup.GetState("w")
	assert.Equal(t, process.Crashed, st.State, "restart policy no must never restart")
}

func TestScenario_GracefulStopWithHang(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("svc-z", hang(true))

	project := &config.Project{
		Name: "demo",
		Services: []config.Service{
			{Name: "z", Cmd: "svc-z", StopSignal: "SIGTERM"},
		},
	}

	sup := newTestSupervisor(t, project, exec)
	ctx := context.Background()
	require.NoError(t, sup.Start(ctx, "z", supervisor.StartOptions{}))

	start := time.Now()
	err := sup.Stop(ctx, "z", supervisor.StopOptions{Timeout: 200 * time.Millisecond})
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 1*time.Second)

	st, _ := sup.GetState("z")
	assert.Equal(t, process.Stopped, st.State)
	require.NotNil(t, st.LastExit)
	assert.Equal(t, 137, st.LastExit.Code, "hard-kill exit code")
}

func TestReloadConfig_ReplacesModifiedServiceAndRestartsIt(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("svc-a", hang(false))

	v1 := &config.Project{
		Name:       "demo",
		ConfigPath: "demo.yaml",
		Services: []config.Service{
			{Name: "a", Cmd: "svc-a", Env: map[string]string{"X": "1"}, StopSignal: config.DefaultStopSignal},
		},
	}
	v2 := &config.Project{
		Name:       "demo",
		ConfigPath: "demo.yaml",
		Services: []config.Service{
			{Name: "a", Cmd: "svc-a", Env: map[string]string{"X": "2"}, StopSignal: config.DefaultStopSignal},
		},
	}

	loader := &fakeLoader{loads: []*config.Project{v2}}
	sup, err := supervisor.New(supervisor.Config{
		Project:       v1,
		Loader:        loader,
		Executor:      exec,
		Prober:        noopProber{},
		ResolveSignal: resolveSignal,
		HardKill:      syscall.SIGKILL,
	})
	require.NoError(t, err)
	t.Cleanup(sup.Close)

	ctx := context.Background()
	require.NoError(t, sup.Start(ctx, "a", supervisor.StartOptions{}))
	require.Equal(t, 1, exec.callCount("svc-a"))

	require.NoError(t, sup.ReloadConfig(ctx))

	assert.Equal(t, 2, exec.callCount("svc-a"), "modified+running service is stopped then started once")

	env := exec.envFor("svc-a")
	assert.Equal(t, "2", env["X"])

	st, ok := sup.GetState("a")
	require.True(t, ok)
	assert.Equal(t, process.Running, st.State)

	cfg, ok := sup.GetServiceConfig("a")
	require.True(t, ok)
	assert.Equal(t, "2", cfg.Env["X"])
}

func TestReloadConfig_UnchangedConfigIsIdempotent(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("svc-a", hang(false))

	same := &config.Project{
		Name:       "demo",
		ConfigPath: "demo.yaml",
		Services: []config.Service{
			{Name: "a", Cmd: "svc-a", StopSignal: config.DefaultStopSignal},
		},
	}

	loader := &fakeLoader{loads: []*config.Project{same}}
	sup, err := supervisor.New(supervisor.Config{
		Project:       same,
		Loader:        loader,
		Executor:      exec,
		Prober:        noopProber{},
		ResolveSignal: resolveSignal,
		HardKill:      syscall.SIGKILL,
	})
	require.NoError(t, err)
	t.Cleanup(sup.Close)

	ctx := context.Background()
	require.NoError(t, sup.Start(ctx, "a", supervisor.StartOptions{}))
	require.Equal(t, 1, exec.callCount("svc-a"))

	require.NoError(t, sup.ReloadConfig(ctx))

	assert.Equal(t, 1, exec.callCount("svc-a"), "an unchanged config must not restart anything")
}

func TestStopAll_ReverseOrder_DependentsStopBeforeDependencies(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("svc-db", hang(false))
	exec.on("svc-api", hang(false))

	project := &config.Project{
		Name: "demo",
		Services: []config.Service{
			{Name: "db", Cmd: "svc-db", StopSignal: config.DefaultStopSignal},
			{Name: "api", Cmd: "svc-api", StopSignal: config.DefaultStopSignal, DependsOn: []config.DependencyEdge{{Name: "db", Condition: config.WaitStarted}}},
		},
	}

	sup := newTestSupervisor(t, project, exec)
	ctx := context.Background()
	require.Empty(t, sup.StartAll(ctx))

	errs := sup.StopAll(ctx)
	require.Empty(t, errs)

	dbState, _ := sup.GetState("db")
	apiState, _ := sup.GetState("api")
	assert.Equal(t, process.Stopped, dbState.State)
	assert.Equal(t, process.Stopped, apiState.State)
}
