package shield

import "sync/atomic"

// Metrics are process-wide monotonic counters, updated atomically by
// concurrent requests. Constructed with the Shield and passed in, never a
// package-level singleton.
type Metrics struct {
	totalRequests  atomic.Uint64
	blockedInput   atomic.Uint64
	blockedOutput  atomic.Uint64
	allowed        atomic.Uint64
	escalated      atomic.Uint64
	totalLatencyMs atomic.Uint64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalRequests uint64 `json:"total_requests"`
	BlockedInput  uint64 `json:"blocked_input"`
	BlockedOutput uint64 `json:"blocked_output"`
	Allowed       uint64 `json:"allowed"`
	Escalated     uint64 `json:"escalated"`
	// AvgLatencyMs is total latency over total requests, zero when idle.
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) record(stage Stage, latencyMs uint64, escalated bool) {
	m.totalRequests.Add(1)
	m.totalLatencyMs.Add(latencyMs)
	if escalated {
		m.escalated.Add(1)
	}
	switch stage {
	case StageBlockedInput:
		m.blockedInput.Add(1)
	case StageBlockedOutput:
		m.blockedOutput.Add(1)
	case StageAllowed:
		m.allowed.Add(1)
	}
}

func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		TotalRequests: m.totalRequests.Load(),
		BlockedInput:  m.blockedInput.Load(),
		BlockedOutput: m.blockedOutput.Load(),
		Allowed:       m.allowed.Load(),
		Escalated:     m.escalated.Load(),
	}
	if s.TotalRequests > 0 {
		s.AvgLatencyMs = float64(m.totalLatencyMs.Load()) / float64(s.TotalRequests)
	}
	return s
}
