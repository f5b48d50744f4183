package observability

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects counters for search requests and their upstream calls.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64
	emptyResults  atomic.Int64

	components map[string]*ComponentMetrics

	durations    []time.Duration
	maxDurations int
}

// ComponentMetrics represents metrics for one component (embedding, synthesis, ...).
type ComponentMetrics struct {
	callCount     atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	errorCount    atomic.Int64
	warningCount  atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		components:   make(map[string]*ComponentMetrics),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordRequest records a search request.
func (m *Metrics) RecordRequest() {
	m.requestTotal.Add(1)
}

// RecordFailure records a failed search request.
func (m *Metrics) RecordFailure() {
	m.requestFailed.Add(1)
}

// RecordEmptyResult records a search that matched nothing.
func (m *Metrics) RecordEmptyResult() {
	m.emptyResults.Add(1)
}

// RecordDuration records the end-to-end duration of a search.
func (m *Metrics) RecordDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
}

// RecordCall records one call to a component and whether it failed.
func (m *Metrics) RecordCall(component string, duration time.Duration, err error) {
	cm := m.component(component)
	cm.callCount.Add(1)
	cm.totalDuration.Add(duration.Milliseconds())
	if err != nil {
		cm.errorCount.Add(1)
	}
}

// RecordWarning records a degraded result attributed to a component.
func (m *Metrics) RecordWarning(component string) {
	m.component(component).warningCount.Add(1)
}

func (m *Metrics) component(name string) *ComponentMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	cm, ok := m.components[name]
	if !ok {
		cm = &ComponentMetrics{}
		m.components[name] = cm
	}
	return cm
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)
	m.emptyResults.Store(0)

	m.mu.Lock()
	m.components = make(map[string]*ComponentMetrics)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	components := make(map[string]*ComponentMetricsSnapshot, len(m.components))
	for name, cm := range m.components {
		calls := cm.callCount.Load()
		total := cm.totalDuration.Load()
		var avg int64
		if calls > 0 {
			avg = total / calls
		}
		components[name] = &ComponentMetricsSnapshot{
			CallCount:         calls,
			ErrorCount:        cm.errorCount.Load(),
			WarningCount:      cm.warningCount.Load(),
			AverageDurationMs: avg,
		}
	}

	var p50 int64
	if n := len(m.durations); n > 0 {
		sorted := make([]time.Duration, n)
		copy(sorted, m.durations)
		slices.Sort(sorted)
		p50 = sorted[n/2].Milliseconds()
	}

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		EmptyResults:  m.emptyResults.Load(),
		Components:    components,
		DurationCount: len(m.durations),
		P50DurationMs: p50,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64                                `json:"requestTotal"`
	RequestFailed int64                                `json:"requestFailed"`
	EmptyResults  int64                                `json:"emptyResults"`
	Components    map[string]*ComponentMetricsSnapshot `json:"components"`
	DurationCount int                                  `json:"durationCount"`
	P50DurationMs int64                                `json:"p50DurationMs"`
}

// ComponentMetricsSnapshot represents metrics for a specific component.
type ComponentMetricsSnapshot struct {
	CallCount         int64 `json:"callCount"`
	ErrorCount        int64 `json:"errorCount"`
	WarningCount      int64 `json:"warningCount"`
	AverageDurationMs int64 `json:"averageDurationMs"`
}
