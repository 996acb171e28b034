package telemetry

import (
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethoflow/ethoflow/pkg/sampling"
)

const maxLatencySamples = 1000

// Metrics aggregates per-run counters. It is safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	units   int64
	rows    int64
	files   int64
	bytes   int64
	skipped int64

	latencies []time.Duration
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{latencies: make([]time.Duration, 0, 64)}
}

// ObserveUnit records one sampled table. Pass it to sampling.WithProgress.
func (m *Metrics) ObserveUnit(u sampling.UnitDone) {
	atomic.AddInt64(&m.units, 1)
	atomic.AddInt64(&m.rows, int64(u.Rows))
	m.RecordLatency(u.Elapsed)
}

// RecordLatency records a latency sample, keeping the most recent ones.
func (m *Metrics) RecordLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) >= maxLatencySamples {
		m.latencies = m.latencies[1:]
	}
	m.latencies = append(m.latencies, d)
}

// RecordFile records one written result file.
func (m *Metrics) RecordFile(bytes int64) {
	atomic.AddInt64(&m.files, 1)
	atomic.AddInt64(&m.bytes, bytes)
}

// RecordSkipped records one file left untouched.
func (m *Metrics) RecordSkipped() {
	atomic.AddInt64(&m.skipped, 1)
}

// Percentile returns the p-th percentile (0..1) of recorded latencies.
func (m *Metrics) Percentile(p float64) time.Duration {
	m.mu.Lock()
	sorted := slices.Clone(m.latencies)
	m.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)

	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Summary returns a snapshot.
func (m *Metrics) Summary() MetricsSummary {
	return MetricsSummary{
		Units:        atomic.LoadInt64(&m.units),
		Rows:         atomic.LoadInt64(&m.rows),
		FilesWritten: atomic.LoadInt64(&m.files),
		FilesSkipped: atomic.LoadInt64(&m.skipped),
		BytesWritten: atomic.LoadInt64(&m.bytes),
		P50Latency:   m.Percentile(0.50),
		P95Latency:   m.Percentile(0.95),
	}
}

// MetricsSummary is a snapshot of metrics.
type MetricsSummary struct {
	Units        int64         `json:"units"`
	Rows         int64         `json:"rows"`
	FilesWritten int64         `json:"files_written"`
	FilesSkipped int64         `json:"files_skipped"`
	BytesWritten int64         `json:"bytes_written"`
	P50Latency   time.Duration `json:"p50_latency_ns"`
	P95Latency   time.Duration `json:"p95_latency_ns"`
}

// ToJSON serializes the summary to JSON.
func (s MetricsSummary) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}
