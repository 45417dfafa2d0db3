package flush

import (
	"context"
	"strings"
	"sync"

	"github.com/coscene-io/topicrecorder/metrics"
	"github.com/coscene-io/topicrecorder/rlog"
	"github.com/coscene-io/topicrecorder/storage"
	"github.com/coscene-io/topicrecorder/types"
)

// frameFormat is the label value identifying the container format (§4.4).
const frameFormat = "container/lp-v1"

// Serializer produces the compressed container blob for a FlushTask. It is
// the subset of serializer.Serializer this package depends on.
type Serializer interface {
	Serialize(task types.FlushTask) ([]byte, error)
}

// StatsSink receives flush outcomes so the owning RecordingSession can keep
// its per-topic statistics and error counters current, without this package
// importing the session package directly.
type StatsSink interface {
	OnFlushSuccess(sessionID, topic string, sampleCount int, byteCount int64)
	OnFlushFailure(sessionID, topic string, err error)
}

// WorkerPoolConfig configures the fixed flush worker pool (§4.4).
type WorkerPoolConfig struct {
	Workers    int
	MaxRetries int
}

// WorkerPool is a fixed pool of N workers draining a Queue. Workers are
// independent and do not coordinate beyond the queue; ordering across
// workers is not preserved, but the (entry, timestamp_us) naming keeps
// per-topic ordering deterministic on the backend side.
type WorkerPool struct {
	cfg        WorkerPoolConfig
	queue      *Queue
	backend    storage.Backend
	serializer Serializer
	stats      StatsSink
	collector  *metrics.Collector
	logger     *rlog.Logger
	collisions *collisionTracker

	wg sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool. If cfg.Workers <= 0, it defaults to 4
// per §4.4.
func NewWorkerPool(cfg WorkerPoolConfig, queue *Queue, backend storage.Backend, serializer Serializer, stats StatsSink, collector *metrics.Collector, logger *rlog.Logger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if logger == nil {
		logger = rlog.Nop()
	}
	return &WorkerPool{
		cfg:        cfg,
		queue:      queue,
		backend:    backend,
		serializer: serializer,
		stats:      stats,
		collector:  collector,
		logger:     logger,
		collisions: newCollisionTracker(),
	}
}

// Start launches the worker goroutines. They run until ctx is cancelled and
// the queue is drained.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Wait blocks until all workers have exited (queue drained and ctx done, or
// queue closed).
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.queue.Channel():
			if !ok {
				return
			}
			p.process(ctx, task)
		case <-ctx.Done():
			// Shutdown requested: drain whatever remains non-blockingly,
			// then exit, per the process shutdown policy in §5.
			for {
				select {
				case task, ok := <-p.queue.Channel():
					if !ok {
						return
					}
					p.process(context.Background(), task)
				default:
					return
				}
			}
		}
	}
}

func (p *WorkerPool) process(ctx context.Context, task types.FlushTask) {
	blob, err := p.serializer.Serialize(task)
	if err != nil {
		p.logger.Error("serialize failed", map[string]any{
			"session_id": task.SessionID,
			"topic":      task.Topic,
			"error":      err.Error(),
		})
		p.stats.OnFlushFailure(task.SessionID, task.Topic, err)
		return
	}

	entry := EntryName(task.Topic)
	labels := map[string]string{
		"recording-id": task.RecordingID,
		"device-id":    task.DeviceID,
		"topic":        task.Topic,
		"format":       frameFormat,
		"compression":  string(task.Compression.Type),
	}

	baseUs := task.Samples[0].TimestampNs / 1000
	timestampUs := p.collisions.next(entry, baseUs)

	maxRetries := p.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = storage.DefaultMaxRetries
	}

	err = storage.WriteWithRetry(ctx, p.backend, entry, timestampUs, blob, labels, maxRetries, p.collector, p.logger)
	if err != nil {
		p.logger.Error("flush task dropped after retries exhausted", map[string]any{
			"session_id": task.SessionID,
			"topic":      task.Topic,
			"entry":      entry,
			"error":      err.Error(),
		})
		p.stats.OnFlushFailure(task.SessionID, task.Topic, err)
		return
	}

	p.stats.OnFlushSuccess(task.SessionID, task.Topic, len(task.Samples), task.TotalBytes())
}

// EntryName derives the backend entry-name from a topic: the leading slash
// is stripped and any remaining slashes are transliterated to underscores
// (§3, BackendRecord) — e.g. "/a/b" becomes "a_b".
func EntryName(topic string) string {
	trimmed := strings.TrimPrefix(topic, "/")
	name := strings.ReplaceAll(trimmed, "/", "_")
	if name == "" {
		return "_root"
	}
	return name
}
