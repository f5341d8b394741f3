package monitor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a thread-safe counter
type Counter struct {
	value int64
}

// Add adds a delta to the counter
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Inc increments the counter by 1
func (c *Counter) Inc() {
	c.Add(1)
}

// Value returns the current counter value
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Reset resets the counter to 0
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.value, 0)
}

// Gauge is a thread-safe gauge that can go up and down
type Gauge struct {
	value int64
}

// Set sets the gauge value
func (g *Gauge) Set(value int64) {
	atomic.StoreInt64(&g.value, value)
}

// Add adds a delta to the gauge
func (g *Gauge) Add(delta int64) {
	atomic.AddInt64(&g.value, delta)
}

// Inc increments the gauge by 1
func (g *Gauge) Inc() {
	g.Add(1)
}

// Dec decrements the gauge by 1
func (g *Gauge) Dec() {
	g.Add(-1)
}

// Value returns the current gauge value
func (g *Gauge) Value() int64 {
	return atomic.LoadInt64(&g.value)
}

// LatencyBounds are the upper bounds of the decode latency buckets. The
// last bucket counts everything at or above the final bound.
var LatencyBounds = []time.Duration{
	time.Microsecond,
	5 * time.Microsecond,
	10 * time.Microsecond,
	50 * time.Microsecond,
	100 * time.Microsecond,
	500 * time.Microsecond,
	time.Millisecond,
	10 * time.Millisecond,
}

// LatencyHistogram tracks decode latency
type LatencyHistogram struct {
	mu      sync.RWMutex
	count   int64
	sum     int64 // nanoseconds
	min     int64
	max     int64
	buckets []int64
}

// NewLatencyHistogram creates a new latency histogram
func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{
		min:     -1, // no measurements yet
		buckets: make([]int64, len(LatencyBounds)+1),
	}
}

// Record records a latency measurement
func (h *LatencyHistogram) Record(d time.Duration) {
	ns := d.Nanoseconds()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	h.sum += ns

	if h.min < 0 || ns < h.min {
		h.min = ns
	}
	if ns > h.max {
		h.max = ns
	}

	i := 0
	for i < len(LatencyBounds) && d >= LatencyBounds[i] {
		i++
	}
	h.buckets[i]++
}

// Stats returns histogram statistics
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := LatencyStats{
		Count:   h.count,
		Sum:     time.Duration(h.sum),
		Buckets: make([]int64, len(h.buckets)),
	}
	copy(stats.Buckets, h.buckets)

	if h.count > 0 {
		stats.Min = time.Duration(h.min)
		stats.Max = time.Duration(h.max)
		stats.Avg = time.Duration(h.sum / h.count)
	}

	return stats
}

// Reset resets the histogram
func (h *LatencyHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count = 0
	h.sum = 0
	h.min = -1
	h.max = 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

// LatencyStats contains latency statistics
type LatencyStats struct {
	Count   int64
	Sum     time.Duration
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Buckets []int64
}

// Metrics holds decode statistics
type Metrics struct {
	// Frames by data link
	FramesBVLC Counter
	FramesMSTP Counter

	// Outcome
	DecodeFailures    Counter
	FramesWithoutNPDU Counter
	HeaderCRCErrors   Counter
	DataCRCErrors     Counter

	// Network layer
	APDUs        Counter
	NLMs         Counter
	EmptyNSDUs   Counter
	NSDUFailures Counter

	// Application layer
	WhoIs     Counter
	IAm       Counter
	ErrorPDUs Counter
	Rejects   Counter
	Aborts    Counter

	BytesDecoded Counter

	DecodeLatency *LatencyHistogram

	InFlight Gauge

	startTime    time.Time
	lastActivity atomic.Int64
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		DecodeLatency: NewLatencyHistogram(),
		startTime:     time.Now(),
	}
}

// RecordActivity records the last activity time
func (m *Metrics) RecordActivity() {
	m.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the last activity time
func (m *Metrics) LastActivity() time.Time {
	ns := m.lastActivity.Load()
	if ns == 0 {
		return m.startTime
	}
	return time.Unix(0, ns)
}

// Uptime returns the time since metrics started
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.FramesBVLC.Reset()
	m.FramesMSTP.Reset()
	m.DecodeFailures.Reset()
	m.FramesWithoutNPDU.Reset()
	m.HeaderCRCErrors.Reset()
	m.DataCRCErrors.Reset()
	m.APDUs.Reset()
	m.NLMs.Reset()
	m.EmptyNSDUs.Reset()
	m.NSDUFailures.Reset()
	m.WhoIs.Reset()
	m.IAm.Reset()
	m.ErrorPDUs.Reset()
	m.Rejects.Reset()
	m.Aborts.Reset()
	m.BytesDecoded.Reset()
	m.DecodeLatency.Reset()
	m.InFlight.Set(0)
	m.startTime = time.Now()
	m.lastActivity.Store(0)
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Uptime: m.Uptime(),

		FramesBVLC: m.FramesBVLC.Value(),
		FramesMSTP: m.FramesMSTP.Value(),

		DecodeFailures:    m.DecodeFailures.Value(),
		FramesWithoutNPDU: m.FramesWithoutNPDU.Value(),
		HeaderCRCErrors:   m.HeaderCRCErrors.Value(),
		DataCRCErrors:     m.DataCRCErrors.Value(),

		APDUs:        m.APDUs.Value(),
		NLMs:         m.NLMs.Value(),
		EmptyNSDUs:   m.EmptyNSDUs.Value(),
		NSDUFailures: m.NSDUFailures.Value(),

		WhoIs:     m.WhoIs.Value(),
		IAm:       m.IAm.Value(),
		ErrorPDUs: m.ErrorPDUs.Value(),
		Rejects:   m.Rejects.Value(),
		Aborts:    m.Aborts.Value(),

		BytesDecoded: m.BytesDecoded.Value(),

		LatencyStats: m.DecodeLatency.Stats(),

		InFlight: m.InFlight.Value(),

		LastActivity: m.LastActivity(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	Uptime time.Duration

	FramesBVLC int64
	FramesMSTP int64

	DecodeFailures    int64
	FramesWithoutNPDU int64
	HeaderCRCErrors   int64
	DataCRCErrors     int64

	APDUs        int64
	NLMs         int64
	EmptyNSDUs   int64
	NSDUFailures int64

	WhoIs     int64
	IAm       int64
	ErrorPDUs int64
	Rejects   int64
	Aborts    int64

	BytesDecoded int64

	LatencyStats LatencyStats

	InFlight int64

	LastActivity time.Time
}

// Frames returns the total number of frames handled
func (s MetricsSnapshot) Frames() int64 {
	return s.FramesBVLC + s.FramesMSTP
}
