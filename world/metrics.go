package world

import "time"

// Metrics is the WorldMetrics shared resource SPEC_FULL.md adds so the
// otherwise-ignored fabric.Metrics op has something observable: systems can
// read it via Resource[*Metrics](w.Resources()) instead of the
// runtime silently dropping every Metrics op on the floor.
type Metrics struct {
	TickCount        uint64
	LastDispatchTime time.Duration
	OpCounts         map[string]int
}

func newMetrics() *Metrics {
	return &Metrics{OpCounts: make(map[string]int)}
}

func (m *Metrics) recordOp(kind string) {
	m.OpCounts[kind]++
}

func (m *Metrics) recordTick(dispatch time.Duration) {
	m.TickCount++
	m.LastDispatchTime = dispatch
}

func (m *Metrics) mergeFabric(counters, gauges map[string]float64) {
	for k, v := range counters {
		m.OpCounts["fabric."+k] += int(v)
	}
	_ = gauges // gauges are instantaneous values; nothing to accumulate here.
}
