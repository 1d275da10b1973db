// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated timings for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	JobsSubmitted int64              `json:"jobs_submitted"`
	JobsCompleted int64              `json:"jobs_completed"`
	JobsFailed    int64              `json:"jobs_failed"`
	Generate      *OperationSnapshot `json:"generate,omitempty"`
	StoreAppend   *OperationSnapshot `json:"store_append,omitempty"`
	Migrate       *OperationSnapshot `json:"migrate,omitempty"`
}

// Operation names for the collector.
const (
	OpGenerate    = "generate"
	OpStoreAppend = "store_append"
	OpMigrate     = "migrate"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics

	jobsSubmitted int64
	jobsCompleted int64
	jobsFailed    int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}

	m.Count++
	m.TotalTime += duration
	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// JobSubmitted increments the submitted-job counter.
func (c *Collector) JobSubmitted() {
	c.mu.Lock()
	c.jobsSubmitted++
	c.mu.Unlock()
}

// JobCompleted increments the completed-job counter.
func (c *Collector) JobCompleted() {
	c.mu.Lock()
	c.jobsCompleted++
	c.mu.Unlock()
}

// JobFailed increments the failed-job counter.
func (c *Collector) JobFailed() {
	c.mu.Lock()
	c.jobsFailed++
	c.mu.Unlock()
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		JobsSubmitted: c.jobsSubmitted,
		JobsCompleted: c.jobsCompleted,
		JobsFailed:    c.jobsFailed,
		Generate:      snapshotOp(c.ops[OpGenerate]),
		StoreAppend:   snapshotOp(c.ops[OpStoreAppend]),
		Migrate:       snapshotOp(c.ops[OpMigrate]),
	}
}
