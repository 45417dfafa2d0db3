package storage

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/coscene-io/topicrecorder/metrics"
	"github.com/coscene-io/topicrecorder/rlog"
)

// DefaultMaxRetries is write_with_retry's default retry budget (§4.1).
const DefaultMaxRetries = 3

// baseBackoff is the initial sleep before the first retry.
const baseBackoff = 100 * time.Millisecond

// maxBackoff caps the sleep duration for any single retry attempt.
const maxBackoff = 30 * time.Second

// jitterFraction is the +/- jitter applied to each backoff sleep.
const jitterFraction = 0.25

// Backend is the storage contract every concrete backend must satisfy
// (§4.1). Implementations must make WriteRecord atomic from the caller's
// perspective: either fully visible or not visible at all.
type Backend interface {
	// Initialize is idempotent; ensures the container exists.
	// Returns a BackendError wrapping ErrUnavailable, ErrAuth, or ErrConfig.
	Initialize(ctx context.Context) error

	// WriteRecord performs a single write. Returns nil on success, or a
	// BackendError wrapping ErrTransient, ErrPermanent, or ErrConflict.
	WriteRecord(ctx context.Context, entry string, timestampUs int64, payload []byte, labels map[string]string) error

	// HealthCheck is a cheap liveness probe.
	HealthCheck(ctx context.Context) bool

	// BackendType returns a string identifier ("object-store", "filesystem").
	BackendType() string
}

// WriteWithRetry wraps Backend.WriteRecord with exponential backoff,
// starting at 100ms, doubling each attempt, +/-25% jitter, capped at ~30s
// per sleep, bounded by maxRetries. Only ErrTransient is retried;
// ErrPermanent and ErrConflict return immediately.
func WriteWithRetry(ctx context.Context, backend Backend, entry string, timestampUs int64, payload []byte, labels map[string]string, maxRetries int, collector *metrics.Collector, logger *rlog.Logger) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error
	backoff := baseBackoff
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := backend.WriteRecord(ctx, entry, timestampUs, payload, labels)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if attempt == maxRetries {
			break
		}

		collector.IncFlushRetry()
		sleep := jitter(backoff)
		if logger != nil {
			logger.Warn("backend write retrying", map[string]any{
				"entry":   entry,
				"attempt": attempt + 1,
				"sleep_ms": sleep.Milliseconds(),
				"error":   err.Error(),
			})
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return lastErr
}

func isRetryable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Is(ErrTransient)
	}
	return ClassifyError(err) == ErrTransient
}

// jitter applies +/-25% uniform jitter to d, never exceeding maxBackoff.
func jitter(d time.Duration) time.Duration {
	delta := float64(d) * jitterFraction
	offset := (rand.Float64()*2 - 1) * delta
	result := time.Duration(float64(d) + offset)
	if result > maxBackoff {
		result = maxBackoff
	}
	if result < 0 {
		result = 0
	}
	return result
}
