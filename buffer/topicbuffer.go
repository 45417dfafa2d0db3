// Package buffer implements the per-topic double-buffered accumulator that
// sits between the subscriber hot path and the flush queue (§4.3). Each half
// has a single producer (the subscriber callback) and, once swapped out, a
// single consumer (the flush worker that pops the resulting FlushTask). A CAS
// flag allows at most one swap in flight; the append in Push and the
// exchange of the active half in swap both run under a short-held mutex, so
// a producer can wait briefly on that mutex while a swap or a Stats call
// holds it.
package buffer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coscene-io/topicrecorder/types"
)

// Policy configures the size/time/min-samples flush triggers (§4.3).
type Policy struct {
	MaxBytes    int64
	MaxDuration time.Duration
	MinSamples  int
}

// Enqueuer is the flush-queue side of the contract: TryPush must be
// non-blocking, returning false when the queue is full (§4.4).
type Enqueuer interface {
	TryPush(task types.FlushTask) bool
}

// half is one side of the double buffer: an ordered, growable sample vector.
type half struct {
	samples []types.Sample
	bytes   int64
}

func newHalf() *half {
	return &half{samples: make([]types.Sample, 0, 64)}
}

// TopicBuffer accumulates samples for one (session, topic) pair and triggers
// swaps into the flush queue per Policy.
//
// Invariants upheld: (I1) exactly one half active at any instant; (I2) at
// most one swap in flight; (I3) the half taken out of service holds a
// coherent push-ordered batch; (I4) counters track only the active half.
type TopicBuffer struct {
	sessionID   string
	recordingID string
	deviceID    string
	topic       string
	compression types.CompressionConfig
	policy      Policy
	queue       Enqueuer
	overloads   *atomic.Int64

	// active selects which of halves[0]/halves[1] is receiving pushes.
	active int32
	halves [2]*half

	swapping atomic.Bool

	lastFlush atomic.Int64 // unix nanos

	// mu guards the active half's slice and counters. The subscriber callback
	// is the only writer; swap() is the only other accessor, and it only
	// touches the half mu does not currently point at until the CAS
	// succeeds, at which point it briefly takes mu to detach it.
	mu sync.Mutex
}

// New creates a TopicBuffer for one topic within one recording session.
func New(sessionID, recordingID, deviceID, topic string, compression types.CompressionConfig, policy Policy, queue Enqueuer, overloads *atomic.Int64) *TopicBuffer {
	b := &TopicBuffer{
		sessionID:   sessionID,
		recordingID: recordingID,
		deviceID:    deviceID,
		topic:       topic,
		compression: compression,
		policy:      policy,
		queue:       queue,
		overloads:   overloads,
		halves:      [2]*half{newHalf(), newHalf()},
	}
	b.lastFlush.Store(time.Now().UnixNano())
	return b
}

func (b *TopicBuffer) activeHalf() *half {
	return b.halves[atomic.LoadInt32(&b.active)]
}

// Push appends sample to the active half and, if a trigger condition is met,
// attempts a swap. It takes b.mu for the append and may wait for it while
// another goroutine holds it; the queue hand-off inside swap is a
// non-blocking send.
func (b *TopicBuffer) Push(sample types.Sample) {
	b.mu.Lock()
	h := b.activeHalf()
	h.samples = append(h.samples, sample)
	h.bytes += sample.SizeBytes()
	shouldSwap := b.shouldSwapLocked(h)
	b.mu.Unlock()

	if shouldSwap {
		b.swap()
	}
}

func (b *TopicBuffer) shouldSwapLocked(h *half) bool {
	if b.policy.MaxBytes > 0 && h.bytes >= b.policy.MaxBytes {
		return true
	}
	elapsed := time.Duration(time.Now().UnixNano() - b.lastFlush.Load())
	if b.policy.MaxDuration > 0 && elapsed >= b.policy.MaxDuration && len(h.samples) >= b.policy.MinSamples {
		return true
	}
	return false
}

// ForceFlush swaps unconditionally, even below min-samples. Used on Pause
// and Finish; process shutdown does not call it. A no-op if the active half
// is empty.
func (b *TopicBuffer) ForceFlush() {
	b.swap()
}

// swap performs the CAS-guarded active/inactive exchange. If another
// producer already owns an in-flight swap, this call returns immediately —
// the sample that triggered it is already safely on the active half and the
// in-flight swap (or a future one) will carry it.
func (b *TopicBuffer) swap() {
	if !b.swapping.CompareAndSwap(false, true) {
		return
	}
	defer b.swapping.Store(false)

	b.mu.Lock()
	oldIdx := atomic.LoadInt32(&b.active)
	outgoing := b.halves[oldIdx]

	if len(outgoing.samples) == 0 {
		b.mu.Unlock()
		return
	}

	newIdx := 1 - oldIdx
	b.halves[newIdx] = newHalf()
	atomic.StoreInt32(&b.active, newIdx)
	b.mu.Unlock()

	extracted := outgoing.samples
	task := types.NewFlushTask(b.sessionID, b.recordingID, b.deviceID, b.topic, extracted, b.compression)

	if b.queue.TryPush(task) {
		b.lastFlush.Store(time.Now().UnixNano())
		return
	}

	// Backpressure: the queue rejected the task. Roll back by re-prepending
	// the extracted samples onto the front of the new active half, ahead of
	// anything pushed there since the swap — preserving push order exactly
	// (Open Question 1 decision).
	if b.overloads != nil {
		b.overloads.Add(1)
	}
	b.rollback(extracted)
}

// rollback re-prepends samples onto the current active half. Only swap()
// calls this, and the swapping flag guarantees no concurrent swap can be
// mutating b.active at the same time, so the active half observed here is
// exactly the one created by this swap.
func (b *TopicBuffer) rollback(samples []types.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	active := b.activeHalf()
	merged := make([]types.Sample, 0, len(samples)+len(active.samples))
	merged = append(merged, samples...)
	merged = append(merged, active.samples...)

	var bytes int64
	for _, s := range merged {
		bytes += s.SizeBytes()
	}
	active.samples = merged
	active.bytes = bytes
}

// Drain force-flushes the buffer; it does the same as ForceFlush. It does not
// wait for queued FlushTasks: RecordingSession.Finish calls ForceFlush on
// each buffer and then waits on the session's own pending-flush count.
func (b *TopicBuffer) Drain() {
	b.ForceFlush()
}

// Stats returns the current active-half sample/byte counts, used for status
// queries. Safe to call concurrently with Push.
func (b *TopicBuffer) Stats() (samples int, bytes int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.activeHalf()
	return len(h.samples), h.bytes
}
