package config

// ExpandProbeShorthand turns a bare healthcheck command string into a full
// ProbeSpec using the package defaults (§4.B). Callers that already have a
// full probe definition from YAML should build a ProbeSpec directly
// instead of going through this helper.
func ExpandProbeShorthand(cmd string) *ProbeSpec {
	return &ProbeSpec{
		Cmd:        cmd,
		IntervalMs: DefaultProbeIntervalMs,
		TimeoutMs:  DefaultProbeTimeoutMs,
		Retries:    DefaultProbeRetries,
	}
}

// ExpandDependsOnShorthand turns a bare list of dependency names into
// DependencyEdges waiting on WaitStarted, the shorthand meaning defined in
// §4.B ("a plain list of names means 'wait until started'").
func ExpandDependsOnShorthand(names []string) []DependencyEdge {
	edges := make([]DependencyEdge, len(names))
	for i, name := range names {
		edges[i] = DependencyEdge{Name: name, Condition: WaitStarted}
	}
	return edges
}

// ApplyProbeDefaults fills zero-valued fields of an explicitly-specified
// probe with the package defaults, so partial YAML maps (e.g. only
// overriding retries) still produce a fully-populated ProbeSpec.
func ApplyProbeDefaults(p ProbeSpec) ProbeSpec {
	if p.IntervalMs == 0 {
		p.IntervalMs = DefaultProbeIntervalMs
	}
	if p.TimeoutMs == 0 {
		p.TimeoutMs = DefaultProbeTimeoutMs
	}
	if p.Retries == 0 {
		p.Retries = DefaultProbeRetries
	}
	return p
}
