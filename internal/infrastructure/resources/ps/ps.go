// Package ps implements the domain resources.Prober port by shelling out
// to the system "ps" utility once per tick with the full tracked PID set
// (§4.G, §6).
package ps

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/captjt/devproc/internal/domain/apperr"
	"github.com/captjt/devproc/internal/domain/resources"
)

// DefaultTimeout bounds a single ps invocation so a hung or unresponsive
// process table never stalls the sampler indefinitely.
const DefaultTimeout = 2 * time.Second

// Prober invokes ps(1) for the resources.Prober port.
type Prober struct {
	timeout time.Duration
}

// New builds a Prober using DefaultTimeout.
func New() *Prober {
	return &Prober{timeout: DefaultTimeout}
}

// Probe runs one "ps -o pid=,pcpu=,pmem=,rss= -p <comma-separated pids>"
// call and parses its output into readings, one row per resolvable PID
// (§6: "a single call per tick, passing a comma-separated PID list").
func (p *Prober) Probe(pids []int) ([]resources.Reading, error) {
	if len(pids) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	ids := make([]string, len(pids))
	for i, pid := range pids {
		ids[i] = strconv.Itoa(pid)
	}

	cmd := exec.CommandContext(ctx, "ps", "-o", "pid=,pcpu=,pmem=,rss=", "-p", strings.Join(ids, ","))
	out, err := cmd.Output()
	if err != nil {
		// A PID that exited between registration and sampling makes ps
		// exit non-zero on some platforms even though other PIDs in the
		// list resolved fine; fall through and parse whatever we got.
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: ps: %w", apperr.ErrSamplerError, err)
		}
	}

	return parse(out), nil
}

func parse(out []byte) []resources.Reading {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	readings := make([]resources.Reading, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 4 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		cpu, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		mem, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}
		rssKiB, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			continue
		}
		readings = append(readings, resources.Reading{
			PID:        pid,
			CPUPercent: cpu,
			MemPercent: mem,
			RSSBytes:   rssKiB * 1024,
		})
	}
	return readings
}
