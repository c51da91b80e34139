package healthcheck_test

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apphc "github.com/captjt/devproc/internal/application/healthcheck"
	"github.com/captjt/devproc/internal/domain/config"
	domainhc "github.com/captjt/devproc/internal/domain/healthcheck"
	"github.com/captjt/devproc/internal/domain/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedExecutor returns a fixed sequence of exit codes, one per Start
// call, cycling the last one if more calls arrive than codes given.
type scriptedExecutor struct {
	codes []int
	calls int32
}

func (e *scriptedExecutor) Start(ctx context.Context, spec process.Spec) (process.Handle, error) {
	i := int(atomic.AddInt32(&e.calls, 1)) - 1
	code := e.codes[len(e.codes)-1]
	if i < len(e.codes) {
		code = e.codes[i]
	}
	wait := make(chan process.ExitResult, 1)
	wait <- process.ExitResult{Code: code}
	close(wait)
	return &fakeHandle{wait: wait}, nil
}

type fakeHandle struct {
	wait chan process.ExitResult
}

func (h *fakeHandle) PID() int                  { return 1 }
func (h *fakeHandle) Stdout() io.Reader          { return strings.NewReader("") }
func (h *fakeHandle) Stderr() io.Reader          { return strings.NewReader("") }
func (h *fakeHandle) Wait() <-chan process.ExitResult { return h.wait }
func (h *fakeHandle) Signal(sig os.Signal) error { return nil }
func (h *fakeHandle) Kill() error                { return nil }

func TestRunner_WaitForHealthy_SucceedsImmediately(t *testing.T) {
	r := apphc.NewRunner("api", config.ProbeSpec{Cmd: "true", IntervalMs: 1, TimeoutMs: 1000, Retries: 3}, &scriptedExecutor{codes: []int{0}})

	var attempts []process.LogLine
	ok := r.WaitForHealthy(context.Background(), func(l process.LogLine) { attempts = append(attempts, l) })

	assert.True(t, ok)
	require.Len(t, attempts, 1)
	assert.Equal(t, process.StreamStderr, attempts[0].Stream)
}

func TestRunner_WaitForHealthy_ExhaustsRetries(t *testing.T) {
	r := apphc.NewRunner("api", config.ProbeSpec{Cmd: "false", IntervalMs: 1, TimeoutMs: 1000, Retries: 3}, &scriptedExecutor{codes: []int{1, 1, 1}})

	var attempts []process.LogLine
	ok := r.WaitForHealthy(context.Background(), func(l process.LogLine) { attempts = append(attempts, l) })

	assert.False(t, ok)
	assert.Len(t, attempts, 3)
}

func TestRunner_StartPoller_DeliversResultsThenStops(t *testing.T) {
	r := apphc.NewRunner("api", config.ProbeSpec{Cmd: "true", IntervalMs: 1, TimeoutMs: 1000, Retries: 1}, &scriptedExecutor{codes: []int{0}})

	results := make(chan domainhc.Result, 8)
	p := r.StartPoller(context.Background(), func(res domainhc.Result) { results <- res })

	select {
	case res := <-results:
		assert.True(t, res.Healthy)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for poll result")
	}

	p.Stop()
}
