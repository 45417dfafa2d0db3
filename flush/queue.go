// Package flush implements the bounded FlushQueue and the fixed worker pool
// that drains it (§4.4): pop a task, serialize it, write it to the storage
// backend with retry, and report the outcome back to the owning session.
package flush

import (
	"github.com/coscene-io/topicrecorder/types"
)

// Queue is a bounded multi-producer/multi-consumer queue of FlushTask
// values. Producers (TopicBuffer swaps) use the non-blocking TryPush;
// consumers (workers) use the blocking channel receive directly.
type Queue struct {
	tasks chan types.FlushTask
}

// NewQueue creates a Queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{tasks: make(chan types.FlushTask, capacity)}
}

// TryPush attempts to enqueue task without blocking. Returns false if the
// queue is full, signaling the caller (TopicBuffer.swap) to roll back.
func (q *Queue) TryPush(task types.FlushTask) bool {
	select {
	case q.tasks <- task:
		return true
	default:
		return false
	}
}

// Len reports the number of tasks currently queued.
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Channel exposes the underlying receive channel for worker consumption.
func (q *Queue) Channel() <-chan types.FlushTask {
	return q.tasks
}
