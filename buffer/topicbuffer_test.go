package buffer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coscene-io/topicrecorder/types"
)

// recordingQueue is a test Enqueuer that records every task it accepts and
// can be told to reject (simulating a full flush queue).
type recordingQueue struct {
	mu     sync.Mutex
	tasks  []types.FlushTask
	reject bool
}

func (q *recordingQueue) TryPush(task types.FlushTask) bool {
	if q.reject {
		return false
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	return true
}

func (q *recordingQueue) snapshot() []types.FlushTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]types.FlushTask, len(q.tasks))
	copy(out, q.tasks)
	return out
}

func sample(topic string, n int) types.Sample {
	return types.Sample{Topic: topic, TimestampNs: int64(n), Payload: []byte{byte(n)}}
}

func TestTopicBuffer_SwapsOnMaxBytes(t *testing.T) {
	queue := &recordingQueue{}
	var overloads atomic.Int64
	policy := Policy{MaxBytes: 2, MinSamples: 0}
	tb := New("sess-1", "rec-1", "dev-1", "/a", types.CompressionConfig{Type: types.CompressionNone}, policy, queue, &overloads)

	tb.Push(sample("/a", 1))
	tb.Push(sample("/a", 2))

	tasks := queue.snapshot()
	if len(tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(tasks))
	}
	if len(tasks[0].Samples) != 2 {
		t.Errorf("len(Samples) = %d, want 2", len(tasks[0].Samples))
	}
}

func TestTopicBuffer_PreservesOrderAcrossSwaps(t *testing.T) {
	queue := &recordingQueue{}
	var overloads atomic.Int64
	policy := Policy{MaxBytes: 1}
	tb := New("sess-1", "rec-1", "dev-1", "/a", types.CompressionConfig{}, policy, queue, &overloads)

	for i := 1; i <= 5; i++ {
		tb.Push(sample("/a", i))
	}

	var seen []int64
	for _, task := range queue.snapshot() {
		for _, s := range task.Samples {
			seen = append(seen, s.TimestampNs)
		}
	}
	if len(seen) != 5 {
		t.Fatalf("len(seen) = %d, want 5", len(seen))
	}
	for i, ts := range seen {
		if ts != int64(i+1) {
			t.Errorf("seen[%d] = %d, want %d (order must be preserved)", i, ts, i+1)
		}
	}
}

func TestTopicBuffer_RollbackOnBackpressurePreservesOrder(t *testing.T) {
	queue := &recordingQueue{reject: true}
	var overloads atomic.Int64
	policy := Policy{MaxBytes: 1}
	tb := New("sess-1", "rec-1", "dev-1", "/a", types.CompressionConfig{}, policy, queue, &overloads)

	tb.Push(sample("/a", 1))
	tb.Push(sample("/a", 2))
	tb.Push(sample("/a", 3))

	if len(queue.snapshot()) != 0 {
		t.Fatalf("expected no tasks to reach a rejecting queue")
	}
	if overloads.Load() == 0 {
		t.Error("expected overloads to be incremented on backpressure")
	}

	n, _ := tb.Stats()
	if n != 3 {
		t.Fatalf("buffered samples = %d, want 3 (all rolled back)", n)
	}

	queue.reject = false
	tb.ForceFlush()

	tasks := queue.snapshot()
	if len(tasks) != 1 || len(tasks[0].Samples) != 3 {
		t.Fatalf("after recovery expected one task of 3 samples, got %+v", tasks)
	}
	for i, s := range tasks[0].Samples {
		if s.TimestampNs != int64(i+1) {
			t.Errorf("rolled-back sample[%d].TimestampNs = %d, want %d", i, s.TimestampNs, i+1)
		}
	}
}

func TestTopicBuffer_ForceFlushNoopWhenEmpty(t *testing.T) {
	queue := &recordingQueue{}
	var overloads atomic.Int64
	tb := New("sess-1", "rec-1", "dev-1", "/a", types.CompressionConfig{}, Policy{}, queue, &overloads)

	tb.ForceFlush()

	if len(queue.snapshot()) != 0 {
		t.Error("ForceFlush on an empty buffer must not push a task")
	}
}

func TestTopicBuffer_SwapsOnMaxDurationPastMinSamples(t *testing.T) {
	queue := &recordingQueue{}
	var overloads atomic.Int64
	policy := Policy{MaxDuration: time.Millisecond, MinSamples: 2}
	tb := New("sess-1", "rec-1", "dev-1", "/a", types.CompressionConfig{}, policy, queue, &overloads)

	tb.Push(sample("/a", 1))
	if len(queue.snapshot()) != 0 {
		t.Fatal("must not swap before min-samples is met, even past max duration")
	}

	time.Sleep(2 * time.Millisecond)
	tb.Push(sample("/a", 2))

	if len(queue.snapshot()) != 1 {
		t.Fatal("expected a swap once duration elapsed and min-samples was met")
	}
}

func TestTopicBuffer_ConcurrentPushNoLostSamples(t *testing.T) {
	queue := &recordingQueue{}
	var overloads atomic.Int64
	policy := Policy{MaxBytes: 8}
	tb := New("sess-1", "rec-1", "dev-1", "/a", types.CompressionConfig{}, policy, queue, &overloads)

	const n = 200
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tb.Push(sample("/a", i))
		}(i)
	}
	wg.Wait()
	tb.ForceFlush()

	total := 0
	for _, task := range queue.snapshot() {
		total += len(task.Samples)
	}
	if total != n {
		t.Errorf("total samples across all tasks = %d, want %d", total, n)
	}
}
