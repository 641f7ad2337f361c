package storage

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Histogram tracks a latency distribution with percentile support. Keeps
// the most recent maxSize samples, FIFO.
type Histogram struct {
	mu      sync.Mutex
	samples []float64 // microseconds
	maxSize int
	sorted  bool
}

// NewHistogram creates a histogram retaining up to maxSize samples.
func NewHistogram(maxSize int) *Histogram {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Histogram{
		samples: make([]float64, 0, maxSize),
		maxSize: maxSize,
		sorted:  true,
	}
}

// Record adds a latency sample in microseconds.
func (h *Histogram) Record(latencyUs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:len(h.samples)-1]
	}
	h.samples = append(h.samples, latencyUs)
	h.sorted = false
}

// Percentile calculates the given percentile (0-100) with linear
// interpolation.
func (h *Histogram) Percentile(p float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) == 0 {
		return 0
	}
	// Sort a copy so the retained samples stay in arrival order for
	// FIFO eviction.
	ordered := make([]float64, len(h.samples))
	copy(ordered, h.samples)
	sort.Float64s(ordered)

	rank := (p / 100.0) * float64(len(ordered)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return ordered[lower]
	}
	weight := rank - float64(lower)
	return ordered[lower]*(1-weight) + ordered[upper]*weight
}

// Mean calculates the average latency.
func (h *Histogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range h.samples {
		sum += v
	}
	return sum / float64(len(h.samples))
}

// Count returns the number of retained samples.
func (h *Histogram) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}

// Reset clears all samples.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = h.samples[:0]
	h.sorted = true
}

// Metrics tracks buffer pool performance counters.
type Metrics struct {
	cacheHits        atomic.Uint64
	cacheMisses      atomic.Uint64
	pageEvictions    atomic.Uint64
	dirtyPageFlushes atomic.Uint64
	pagesAllocated   atomic.Uint64
	pagesDeleted     atomic.Uint64

	fetchLatency *Histogram
	flushLatency *Histogram

	startTime time.Time
}

// NewMetrics creates a metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		fetchLatency: NewHistogram(10000),
		flushLatency: NewHistogram(10000),
		startTime:    time.Now(),
	}
}

func (m *Metrics) RecordCacheHit()       { m.cacheHits.Add(1) }
func (m *Metrics) RecordCacheMiss()      { m.cacheMisses.Add(1) }
func (m *Metrics) RecordPageEviction()   { m.pageEvictions.Add(1) }
func (m *Metrics) RecordDirtyPageFlush() { m.dirtyPageFlushes.Add(1) }
func (m *Metrics) RecordPageAllocated()  { m.pagesAllocated.Add(1) }
func (m *Metrics) RecordPageDeleted()    { m.pagesDeleted.Add(1) }

// RecordFetchLatency adds a FetchPage latency sample.
func (m *Metrics) RecordFetchLatency(d time.Duration) {
	m.fetchLatency.Record(float64(d.Microseconds()))
}

// RecordFlushLatency adds a FlushPage latency sample.
func (m *Metrics) RecordFlushLatency(d time.Duration) {
	m.flushLatency.Record(float64(d.Microseconds()))
}

func (m *Metrics) GetCacheHits() uint64        { return m.cacheHits.Load() }
func (m *Metrics) GetCacheMisses() uint64      { return m.cacheMisses.Load() }
func (m *Metrics) GetPageEvictions() uint64    { return m.pageEvictions.Load() }
func (m *Metrics) GetDirtyPageFlushes() uint64 { return m.dirtyPageFlushes.Load() }

// GetCacheHitRate returns hits / (hits + misses), or 0 with no traffic.
func (m *Metrics) GetCacheHitRate() float64 {
	hits := m.cacheHits.Load()
	total := hits + m.cacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// MetricsSnapshot is a point-in-time view of the counters, shaped for
// JSON serving.
type MetricsSnapshot struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	CacheHits        uint64  `json:"cache_hits"`
	CacheMisses      uint64  `json:"cache_misses"`
	CacheHitRate     float64 `json:"cache_hit_rate"`
	PageEvictions    uint64  `json:"page_evictions"`
	DirtyPageFlushes uint64  `json:"dirty_page_flushes"`
	PagesAllocated   uint64  `json:"pages_allocated"`
	PagesDeleted     uint64  `json:"pages_deleted"`
	FetchP50Us       float64 `json:"fetch_p50_us"`
	FetchP99Us       float64 `json:"fetch_p99_us"`
	FlushP50Us       float64 `json:"flush_p50_us"`
	FlushP99Us       float64 `json:"flush_p99_us"`
}

// Snapshot captures the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds:    time.Since(m.startTime).Seconds(),
		CacheHits:        m.cacheHits.Load(),
		CacheMisses:      m.cacheMisses.Load(),
		CacheHitRate:     m.GetCacheHitRate(),
		PageEvictions:    m.pageEvictions.Load(),
		DirtyPageFlushes: m.dirtyPageFlushes.Load(),
		PagesAllocated:   m.pagesAllocated.Load(),
		PagesDeleted:     m.pagesDeleted.Load(),
		FetchP50Us:       m.fetchLatency.Percentile(50),
		FetchP99Us:       m.fetchLatency.Percentile(99),
		FlushP50Us:       m.flushLatency.Percentile(50),
		FlushP99Us:       m.flushLatency.Percentile(99),
	}
}

// LogMetrics emits the current counters through the given logger.
func (m *Metrics) LogMetrics(logger *logrus.Logger) {
	s := m.Snapshot()
	componentLogger(logger, "metrics").WithFields(logrus.Fields{
		"cache_hits":         s.CacheHits,
		"cache_misses":       s.CacheMisses,
		"cache_hit_rate":     s.CacheHitRate,
		"page_evictions":     s.PageEvictions,
		"dirty_page_flushes": s.DirtyPageFlushes,
		"fetch_p99_us":       s.FetchP99Us,
		"flush_p99_us":       s.FlushP99Us,
	}).Info("buffer pool metrics")
}
