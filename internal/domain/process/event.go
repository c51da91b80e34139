package process

import (
	"time"

	"github.com/captjt/devproc/internal/domain/resources"
)

// EventType discriminates the union carried by Event (§4.I.3).
type EventType int

// Event kinds published on the supervisor's event bus.
const (
	EventStateChange EventType = iota
	EventLog
	EventError
	EventAllStopped
	EventConfigReloaded
	EventConfigError
	EventResourcesUpdated
)

// StreamKind identifies which child stream a log line originated from.
type StreamKind int

// Stream origins for a LogLine (§3: stdout or stderr — no third kind).
const (
	StreamStdout StreamKind = iota
	StreamStderr
)

// LogLine is one line emitted by (or about) a service, as delivered on the
// EventLog channel and stored in the log ring buffers (§4.E, §4.H).
type LogLine struct {
	Service   string
	Stream    StreamKind
	Text      string
	Timestamp time.Time
}

// Event is the single envelope type published on every supervisor event
// channel; only the field matching Type is meaningful.
type Event struct {
	Type    EventType
	Service string

	// EventStateChange
	From, To State

	// EventLog
	Line LogLine

	// EventError
	Err error

	// EventConfigReloaded
	Added, Removed, Modified []string

	// EventConfigError
	ConfigErr error

	// EventResourcesUpdated
	Sample resources.Sample

	Time time.Time
}
