package gokernel

import (
	"sync/atomic"
	"time"

	"github.com/jdoe95/gokernel/internal/kiface"
)

// LatencyBuckets defines the block-to-wake latency histogram buckets in
// ticks, logarithmically spaced.
var LatencyBuckets = []uint64{
	1, 2, 5, 10, 25, 100, 1000, 10000,
}

const numLatencyBuckets = 8

// WaitKind identifies which synchronization primitive a thread blocked on,
// for metrics and logging purposes. It mirrors the tagged union used
// internally by the scheduler's blocking protocol to dispatch wakeups.
// Aliased from internal/kiface so that concrete Observer implementations
// defined here also satisfy the kernel package's internal Observer
// interface without either package importing the other.
type WaitKind = kiface.WaitKind

const (
	WaitSemTake         = kiface.WaitSemTake
	WaitSemPeek         = kiface.WaitSemPeek
	WaitMutexLock       = kiface.WaitMutexLock
	WaitMutexPeek       = kiface.WaitMutexPeek
	WaitQueueRead       = kiface.WaitQueueRead
	WaitQueuePeek       = kiface.WaitQueuePeek
	WaitQueueWrite      = kiface.WaitQueueWrite
	WaitQueueWriteAhead = kiface.WaitQueueWriteAhead
	WaitPlainDelay      = kiface.WaitPlainDelay
)

// Metrics tracks scheduling and allocation statistics for a Kernel.
type Metrics struct {
	Reschedules atomic.Uint64 // reschedule_req calls that changed next
	Heartbeats  atomic.Uint64 // heartbeat ticks serviced
	TickWraps   atomic.Uint64 // delay-queue pointer swaps on counter overflow

	Blocks        atomic.Uint64 // block_current calls
	Wakes         atomic.Uint64 // successful wakes (result=true)
	Timeouts      atomic.Uint64 // wakes due to timeout (result=false)
	AllocFailures atomic.Uint64 // allocate() calls that returned null

	// Block-to-wake latency histogram buckets (cumulative counts), in ticks.
	LatencyBuckets [numLatencyBuckets]atomic.Uint64
	TotalLatency   atomic.Uint64
	WakeCount      atomic.Uint64

	StartTime atomic.Int64 // NewMetrics() timestamp, UnixNano
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordReschedule records a reschedule decision.
func (m *Metrics) RecordReschedule(fromPrio, toPrio int) {
	if fromPrio != toPrio {
		m.Reschedules.Add(1)
	}
}

// RecordHeartbeat records a serviced tick, noting whether it wrapped the
// monotonic counter.
func (m *Metrics) RecordHeartbeat(wrapped bool) {
	m.Heartbeats.Add(1)
	if wrapped {
		m.TickWraps.Add(1)
	}
}

// RecordBlock records a thread entering the blocking protocol.
func (m *Metrics) RecordBlock(WaitKind) {
	m.Blocks.Add(1)
}

// RecordWake records a thread leaving the blocking protocol, with the
// number of ticks it was blocked.
func (m *Metrics) RecordWake(kind WaitKind, timedOut bool, latencyTicks uint64) {
	if timedOut {
		m.Timeouts.Add(1)
	} else {
		m.Wakes.Add(1)
	}
	m.recordLatency(latencyTicks)
}

// RecordAllocFailure records an allocation that could not be satisfied.
func (m *Metrics) RecordAllocFailure(requested int) {
	m.AllocFailures.Add(1)
}

func (m *Metrics) recordLatency(ticks uint64) {
	m.TotalLatency.Add(ticks)
	m.WakeCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if ticks <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks metrics collection as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time, non-atomic view of Metrics.
type MetricsSnapshot struct {
	Reschedules uint64
	Heartbeats  uint64
	TickWraps   uint64

	Blocks        uint64
	Wakes         uint64
	Timeouts      uint64
	AllocFailures uint64

	AvgLatencyTicks uint64
	LatencyP50      uint64
	LatencyP99      uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TimeoutRate float64 // percentage of blocks that timed out
	UptimeNs    uint64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Reschedules:   m.Reschedules.Load(),
		Heartbeats:    m.Heartbeats.Load(),
		TickWraps:     m.TickWraps.Load(),
		Blocks:        m.Blocks.Load(),
		Wakes:         m.Wakes.Load(),
		Timeouts:      m.Timeouts.Load(),
		AllocFailures: m.AllocFailures.Load(),
	}

	wakeCount := m.WakeCount.Load()
	if wakeCount > 0 {
		snap.AvgLatencyTicks = m.TotalLatency.Load() / wakeCount
		snap.LatencyP50 = m.calculatePercentile(0.50)
		snap.LatencyP99 = m.calculatePercentile(0.99)
	}

	if snap.Blocks > 0 {
		snap.TimeoutRate = float64(snap.Timeouts) / float64(snap.Blocks) * 100.0
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	total := m.WakeCount.Load()
	if total == 0 {
		return 0
	}

	targetCount := uint64(float64(total) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all counters (useful for testing).
func (m *Metrics) Reset() {
	m.Reschedules.Store(0)
	m.Heartbeats.Store(0)
	m.TickWraps.Store(0)
	m.Blocks.Store(0)
	m.Wakes.Store(0)
	m.Timeouts.Store(0)
	m.AllocFailures.Store(0)
	m.TotalLatency.Store(0)
	m.WakeCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable collection of kernel scheduling events.
// Aliased from internal/kiface - see the WaitKind comment above.
type Observer = kiface.Observer

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) ObserveReschedule(int, int)          {}
func (NoOpObserver) ObserveHeartbeat(uint32, bool)       {}
func (NoOpObserver) ObserveBlock(WaitKind)               {}
func (NoOpObserver) ObserveWake(WaitKind, bool, uint64)  {}
func (NoOpObserver) ObserveAllocFailure(int)             {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveReschedule(fromPrio, toPrio int) {
	o.metrics.RecordReschedule(fromPrio, toPrio)
}

func (o *MetricsObserver) ObserveHeartbeat(tick uint32, wrapped bool) {
	o.metrics.RecordHeartbeat(wrapped)
}

func (o *MetricsObserver) ObserveBlock(kind WaitKind) {
	o.metrics.RecordBlock(kind)
}

func (o *MetricsObserver) ObserveWake(kind WaitKind, timedOut bool, latencyTicks uint64) {
	o.metrics.RecordWake(kind, timedOut, latencyTicks)
}

func (o *MetricsObserver) ObserveAllocFailure(requested int) {
	o.metrics.RecordAllocFailure(requested)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
