package supervisor

import "github.com/captjt/devproc/internal/domain/process"

// eventBufferSize bounds each event channel. Sends are non-blocking
// (select+default): a slow or absent subscriber must never stall the
// supervisor's own state transitions (§5).
const eventBufferSize = 256

// EventBus is the supervisor's typed publish/subscribe surface (§4.I.3):
// one channel per event kind so a subscriber can select only the streams
// it cares about.
type EventBus struct {
	StateChange      chan process.Event
	Log              chan process.Event
	Error            chan process.Event
	AllStopped       chan process.Event
	ConfigReloaded   chan process.Event
	ConfigError      chan process.Event
	ResourcesUpdated chan process.Event
}

// newEventBus allocates every channel with eventBufferSize capacity.
func newEventBus() *EventBus {
	return &EventBus{
		StateChange:      make(chan process.Event, eventBufferSize),
		Log:              make(chan process.Event, eventBufferSize),
		Error:            make(chan process.Event, eventBufferSize),
		AllStopped:       make(chan process.Event, eventBufferSize),
		ConfigReloaded:   make(chan process.Event, eventBufferSize),
		ConfigError:      make(chan process.Event, eventBufferSize),
		ResourcesUpdated: make(chan process.Event, eventBufferSize),
	}
}

func publish(ch chan process.Event, ev process.Event) {
	select {
	case ch <- ev:
	default:
	}
}
