package supervisor

import (
	"time"

	appconfig "github.com/captjt/devproc/internal/application/config"
	domainprocess "github.com/captjt/devproc/internal/domain/process"
	domainresources "github.com/captjt/devproc/internal/domain/resources"
)

// publishStateChange emits a state-change event (§4.I.3) and logs nothing
// itself — callers that also want a diagnostic line use s.logger directly.
func (s *Supervisor) publishStateChange(name string, from, to domainprocess.State) {
	publish(s.events.StateChange, domainprocess.Event{
		Type:    domainprocess.EventStateChange,
		Service: name,
		From:    from,
		To:      to,
		Time:    time.Now(),
	})
}

// publishLog emits a captured (or synthetic) log line on the log channel
// in addition to appending it to the ring buffers (§4.H, §4.I.3).
func (s *Supervisor) publishLog(line domainprocess.LogLine) {
	publish(s.events.Log, domainprocess.Event{
		Type:    domainprocess.EventLog,
		Service: line.Service,
		Line:    line,
		Time:    line.Timestamp,
	})
}

// publishError emits an asynchronous error not attributable to a specific
// caller's return value (§4.I.3, §7).
func (s *Supervisor) publishError(name string, err error) {
	publish(s.events.Error, domainprocess.Event{
		Type:    domainprocess.EventError,
		Service: name,
		Err:     err,
		Time:    time.Now(),
	})
}

// publishAllStopped emits all-stopped once every service's status is
// terminal (§4.I.2).
func (s *Supervisor) publishAllStopped() {
	publish(s.events.AllStopped, domainprocess.Event{
		Type: domainprocess.EventAllStopped,
		Time: time.Now(),
	})
}

// publishConfigReloaded emits the reload outcome's change sets (§4.I.2).
func (s *Supervisor) publishConfigReloaded(diff appconfig.Diff) {
	publish(s.events.ConfigReloaded, domainprocess.Event{
		Type:     domainprocess.EventConfigReloaded,
		Added:    diff.Added,
		Removed:  diff.Removed,
		Modified: diff.Modified,
		Time:     time.Now(),
	})
}

// publishConfigError emits a reload failure (§4.I.2, §7).
func (s *Supervisor) publishConfigError(err error) {
	publish(s.events.ConfigError, domainprocess.Event{
		Type:      domainprocess.EventConfigError,
		ConfigErr: err,
		Time:      time.Now(),
	})
}

// onResourceUpdate is the Sampler's UpdateFunc: it republishes every sample
// that cleared the hysteresis threshold as a resources-updated event
// (§4.G, §4.I.3). Wired into the sampler at construction time in New.
func (s *Supervisor) onResourceUpdate(sample domainresources.Sample) {
	publish(s.events.ResourcesUpdated, domainprocess.Event{
		Type:    domainprocess.EventResourcesUpdated,
		Service: sample.Service,
		Sample:  sample,
		Time:    sample.Timestamp,
	})
}
