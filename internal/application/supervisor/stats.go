package supervisor

// serviceStats accumulates simple lifetime counters for one service,
// derived from its own state-change stream. Not named by spec.md directly,
// but a read-only convenience the teacher's ServiceStats offers and
// nothing here contradicts (see DESIGN.md).
type serviceStats struct {
	StartCount   int
	StopCount    int
	CrashCount   int
	FailCount    int
	RestartCount int
}

// ServiceStats is the copy returned by Supervisor.Stats.
type ServiceStats struct {
	StartCount   int
	StopCount    int
	CrashCount   int
	FailCount    int
	RestartCount int
	// FlapAttempts is the number of restarts since the service last ran
	// for a full stability window, reset by RestartTracker.MaybeReset.
	FlapAttempts int
}

func (s *serviceStats) snapshot() ServiceStats {
	return ServiceStats{
		StartCount:   s.StartCount,
		StopCount:    s.StopCount,
		CrashCount:   s.CrashCount,
		FailCount:    s.FailCount,
		RestartCount: s.RestartCount,
	}
}
