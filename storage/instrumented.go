package storage

import (
	"context"

	"github.com/coscene-io/topicrecorder/metrics"
)

// InstrumentedBackend wraps a Backend and records write outcomes on a
// metrics.Collector, so concrete backend implementations never need to be
// metrics-aware themselves.
type InstrumentedBackend struct {
	inner     Backend
	collector *metrics.Collector
}

// NewInstrumentedBackend wraps backend with metrics instrumentation.
func NewInstrumentedBackend(backend Backend, collector *metrics.Collector) *InstrumentedBackend {
	return &InstrumentedBackend{inner: backend, collector: collector}
}

// Initialize delegates to the inner backend.
func (b *InstrumentedBackend) Initialize(ctx context.Context) error {
	return b.inner.Initialize(ctx)
}

// WriteRecord delegates to the inner backend and records success/failure.
func (b *InstrumentedBackend) WriteRecord(ctx context.Context, entry string, timestampUs int64, payload []byte, labels map[string]string) error {
	err := b.inner.WriteRecord(ctx, entry, timestampUs, payload, labels)
	if err != nil {
		b.collector.IncFlushFailure()
	} else {
		b.collector.IncFlushSuccess()
		b.collector.AddRecorded(1, int64(len(payload)))
	}
	return err
}

// HealthCheck delegates to the inner backend.
func (b *InstrumentedBackend) HealthCheck(ctx context.Context) bool {
	return b.inner.HealthCheck(ctx)
}

// BackendType delegates to the inner backend.
func (b *InstrumentedBackend) BackendType() string {
	return b.inner.BackendType()
}

var _ Backend = (*InstrumentedBackend)(nil)
