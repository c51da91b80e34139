package resources

// Reading is one process-table row returned by a Prober call.
type Reading struct {
	PID        int
	CPUPercent float64
	RSSBytes   uint64
	MemPercent float64
}

// Prober abstracts the OS process-table utility invocation: given a set
// of PIDs, return whatever rows it could read. A PID with no matching
// reading (e.g. it exited between registration and sampling) is simply
// absent from the result (§4.G).
type Prober interface {
	Probe(pids []int) ([]Reading, error)
}
