// Package types holds the wire-adjacent data model shared across the
// recorder: samples observed on the bus, flush tasks handed to workers,
// and the metadata describing a recording session.
package types

import "fmt"

// CompressionType selects the codec applied to a serialized batch.
type CompressionType string

// Compression type constants.
const (
	CompressionNone  CompressionType = "none"
	CompressionFast  CompressionType = "fast"  // LZ4-class, throughput-oriented
	CompressionRatio CompressionType = "ratio" // Zstd-class, ratio-oriented
)

// Valid reports whether c is a recognized compression type.
func (c CompressionType) Valid() bool {
	switch c {
	case CompressionNone, CompressionFast, CompressionRatio:
		return true
	default:
		return false
	}
}

// CompressionConfig pairs a compression type with its level.
// Level is only meaningful for CompressionRatio; see LevelToZstd.
type CompressionConfig struct {
	Type  CompressionType `json:"type" yaml:"type"`
	Level int             `json:"level" yaml:"level"`
}

// zstdLevels maps the spec's flat 0-4 level to a concrete zstd level.
var zstdLevels = [...]int{1, 3, 5, 10, 19}

// LevelToZstd maps a 0-4 configured level to a concrete zstd compression
// level. Levels outside [0,4] clamp to the nearest bound.
func LevelToZstd(level int) int {
	if level < 0 {
		level = 0
	}
	if level > len(zstdLevels)-1 {
		level = len(zstdLevels) - 1
	}
	return zstdLevels[level]
}

// Sample is one message observed on the bus.
// Lifetime: created by the subscriber callback, moved once into a
// TopicBuffer half, moved once more into a serialized blob, then released.
type Sample struct {
	// Topic is the bus topic key this sample was published on.
	Topic string
	// TimestampNs is the publish timestamp in nanoseconds since epoch,
	// monotonic source preferred where available.
	TimestampNs int64
	// Payload is the opaque message bytes; never inspected or mutated.
	Payload []byte
}

// SizeBytes returns the accounting size of the sample (payload length).
func (s Sample) SizeBytes() int64 {
	return int64(len(s.Payload))
}

// FlushTask is a unit of work on the flush queue: a self-contained,
// read-only batch of samples for one (session, topic) pair.
//
// Invariants:
//   - F1: Samples is non-empty.
//   - F2: Samples is read-only from the moment the task is constructed.
//   - F3: every FlushTask enqueued has exactly one consumer.
type FlushTask struct {
	SessionID    string
	RecordingID  string
	DeviceID     string
	Topic        string
	Samples      []Sample
	Compression  CompressionConfig
	MinTimestamp int64
	MaxTimestamp int64
}

// NewFlushTask builds a FlushTask from an extracted batch, computing the
// timestamp range from the batch itself. Panics if samples is empty — callers
// must never construct a task from an empty batch (invariant F1).
func NewFlushTask(sessionID, recordingID, deviceID, topic string, samples []Sample, compression CompressionConfig) FlushTask {
	if len(samples) == 0 {
		panic(fmt.Sprintf("flush task for session=%s topic=%s constructed with zero samples", sessionID, topic))
	}
	minTs, maxTs := samples[0].TimestampNs, samples[0].TimestampNs
	for _, s := range samples[1:] {
		if s.TimestampNs < minTs {
			minTs = s.TimestampNs
		}
		if s.TimestampNs > maxTs {
			maxTs = s.TimestampNs
		}
	}
	return FlushTask{
		SessionID:    sessionID,
		RecordingID:  recordingID,
		DeviceID:     deviceID,
		Topic:        topic,
		Samples:      samples,
		Compression:  compression,
		MinTimestamp: minTs,
		MaxTimestamp: maxTs,
	}
}

// TotalBytes sums the payload size of every sample in the task.
func (t FlushTask) TotalBytes() int64 {
	var total int64
	for _, s := range t.Samples {
		total += s.SizeBytes()
	}
	return total
}
