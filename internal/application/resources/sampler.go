// Package resources implements the resource sampler: a ticker that probes
// every tracked service's PID in one batched call and publishes samples
// that moved beyond the hysteresis threshold (§4.G, §4.I.3).
package resources

import (
	"sync"
	"time"

	"github.com/captjt/devproc/internal/domain/resources"
)

// DefaultInterval is the sampler's default tick rate (§4.G: "default
// 1 Hz").
const DefaultInterval = 1 * time.Second

// UpdateFunc receives one service's new sample whenever it clears the
// hysteresis threshold against the last published value.
type UpdateFunc func(resources.Sample)

// Sampler owns the tracked PID set, the probe port, and each service's
// bounded history.
type Sampler struct {
	prober   resources.Prober
	interval time.Duration
	onUpdate UpdateFunc

	mu        sync.Mutex
	tracked   map[string]int
	histories map[string]*resources.History
	lastSent  map[string]resources.Sample

	stop chan struct{}
	done chan struct{}
}

// New builds a Sampler. onUpdate is called (from the sampler's own
// goroutine) for each service whose new sample exceeds the hysteresis
// thresholds relative to the last one published.
func New(prober resources.Prober, interval time.Duration, onUpdate UpdateFunc) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		prober:    prober,
		interval:  interval,
		onUpdate:  onUpdate,
		tracked:   make(map[string]int),
		histories: make(map[string]*resources.History),
		lastSent:  make(map[string]resources.Sample),
	}
}

// Track registers service as sampled under pid, replacing any previous PID
// tracked for that name. Its prior history is retained until explicitly
// cleared, per §4.G.
func (s *Sampler) Track(service string, pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked[service] = pid
	if _, ok := s.histories[service]; !ok {
		s.histories[service] = resources.NewHistory()
	}
}

// Untrack stops sampling service; its history is left in place for
// post-mortem viewing.
func (s *Sampler) Untrack(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracked, service)
}

// ClearHistory discards service's retained history entirely.
func (s *Sampler) ClearHistory(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, service)
	delete(s.lastSent, service)
}

// History returns a snapshot of service's retained samples, oldest first.
func (s *Sampler) History(service string) []resources.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histories[service]
	if !ok {
		return nil
	}
	return h.Snapshot()
}

// Start launches the sampling goroutine. Stop must be called to release
// it.
func (s *Sampler) Start() {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop halts the sampling goroutine and waits for it to exit.
func (s *Sampler) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
}

func (s *Sampler) tick() {
	s.mu.Lock()
	pids := make([]int, 0, len(s.tracked))
	byPID := make(map[int]string, len(s.tracked))
	for name, pid := range s.tracked {
		pids = append(pids, pid)
		byPID[pid] = name
	}
	s.mu.Unlock()

	if len(pids) == 0 {
		return
	}

	readings, err := s.prober.Probe(pids)
	if err != nil {
		// Sampler errors are dropped for this tick (§4.G, §7 SamplerError).
		return
	}

	now := time.Now()
	for _, reading := range readings {
		name, ok := byPID[reading.PID]
		if !ok {
			continue
		}
		sample := resources.Sample{
			Service:    name,
			PID:        reading.PID,
			CPUPercent: reading.CPUPercent,
			RSSBytes:   reading.RSSBytes,
			MemPercent: reading.MemPercent,
			Timestamp:  now,
		}

		s.mu.Lock()
		h, ok := s.histories[name]
		if !ok {
			h = resources.NewHistory()
			s.histories[name] = h
		}
		h.Push(sample)
		last, hadLast := s.lastSent[name]
		publish := !hadLast || resources.ExceedsHysteresis(last, sample)
		if publish {
			s.lastSent[name] = sample
		}
		s.mu.Unlock()

		if publish && s.onUpdate != nil {
			s.onUpdate(sample)
		}
	}
}
