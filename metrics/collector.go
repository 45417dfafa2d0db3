// Package metrics provides process-wide observability counters for the
// recorder. The Collector is a leaf package with no dependency on the rest
// of the core: sessions, buffers, and workers all report into it, but it
// never reaches back out.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of recorder metrics. Safe to
// read concurrently after creation.
type Snapshot struct {
	FlushSuccess   int64
	FlushFailure   int64
	FlushRetries   int64
	Overloads      int64
	SamplesRecorded int64
	BytesRecorded   int64

	BackendType string
	BusMode     string
}

// Collector accumulates metrics for the lifetime of the process.
// Thread-safe via sync.Mutex; all increment methods are nil-receiver safe
// so components can hold an optional *Collector without nil-checking at
// every call site.
type Collector struct {
	mu sync.Mutex

	flushSuccess    int64
	flushFailure    int64
	flushRetries    int64
	overloads       int64
	samplesRecorded int64
	bytesRecorded   int64

	backendType string
	busMode     string
}

// NewCollector creates a Collector dimensioned by backend and bus mode.
func NewCollector(backendType, busMode string) *Collector {
	return &Collector{backendType: backendType, busMode: busMode}
}

// IncFlushSuccess records one successful backend write.
func (c *Collector) IncFlushSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.flushSuccess++
	c.mu.Unlock()
}

// IncFlushFailure records one failed backend write attempt.
func (c *Collector) IncFlushFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.flushFailure++
	c.mu.Unlock()
}

// IncFlushRetry records one retried backend write attempt.
func (c *Collector) IncFlushRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.flushRetries++
	c.mu.Unlock()
}

// IncOverload records one backpressure rollback event.
func (c *Collector) IncOverload() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.overloads++
	c.mu.Unlock()
}

// AddRecorded adds to the cumulative samples/bytes-recorded counters,
// called after a successful flush.
func (c *Collector) AddRecorded(samples, bytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.samplesRecorded += samples
	c.bytesRecorded += bytes
	c.mu.Unlock()
}

// Snapshot returns an immutable view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		FlushSuccess:    c.flushSuccess,
		FlushFailure:    c.flushFailure,
		FlushRetries:    c.flushRetries,
		Overloads:       c.overloads,
		SamplesRecorded: c.samplesRecorded,
		BytesRecorded:   c.bytesRecorded,
		BackendType:     c.backendType,
		BusMode:         c.busMode,
	}
}
