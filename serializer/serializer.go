package serializer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/coscene-io/topicrecorder/types"
)

// capacityFactor is the output-buffer pre-reservation multiplier applied to
// the estimated raw frame-stream size, per §4.2.
const capacityFactor = 1.05

// Serializer turns a FlushTask into a single compressed container blob.
// Schema-agnostic: payload bytes are never inspected, only framed.
type Serializer struct {
	schemas *SchemaMatcher
}

// New creates a Serializer. schemas may be nil if no topic carries
// schema-info.
func New(schemas *SchemaMatcher) *Serializer {
	return &Serializer{schemas: schemas}
}

// Serialize encodes task's samples as length-prefixed frames and compresses
// the concatenation per task.Compression.
func (s *Serializer) Serialize(task types.FlushTask) ([]byte, error) {
	estimated := estimateCapacity(task.Samples)
	raw := make([]byte, 0, estimated)

	for _, sample := range task.Samples {
		frame := Frame{
			Topic:       sample.Topic,
			TimestampNs: sample.TimestampNs,
			Payload:     sample.Payload,
		}
		if s.schemas != nil {
			if info, ok := s.schemas.Match(sample.Topic); ok {
				frame.Schema = &info
			}
		}
		raw = appendFrame(raw, frame)
	}

	return compress(raw, task.Compression)
}

// Decompress reverses compress for the given compression config, returning
// the raw frame stream ready for DecodeFrames.
func Decompress(data []byte, cfg types.CompressionConfig) ([]byte, error) {
	switch cfg.Type {
	case types.CompressionNone, "":
		return data, nil
	case types.CompressionFast:
		reader := lz4.NewReader(bytes.NewReader(data))
		return io.ReadAll(reader)
	case types.CompressionRatio:
		decoder, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer decoder.Close()
		return io.ReadAll(decoder)
	default:
		return nil, fmt.Errorf("unknown compression type %q", cfg.Type)
	}
}

func compress(raw []byte, cfg types.CompressionConfig) ([]byte, error) {
	switch cfg.Type {
	case types.CompressionNone, "":
		return raw, nil

	case types.CompressionFast:
		var buf bytes.Buffer
		writer := lz4.NewWriter(&buf)
		if _, err := writer.Write(raw); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("lz4 flush: %w", err)
		}
		return buf.Bytes(), nil

	case types.CompressionRatio:
		level := zstd.EncoderLevelFromZstd(types.LevelToZstd(cfg.Level))
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		defer encoder.Close()
		return encoder.EncodeAll(raw, make([]byte, 0, len(raw))), nil

	default:
		return nil, fmt.Errorf("unknown compression type %q", cfg.Type)
	}
}

// estimateCapacity sums, for each sample, its payload size, its topic length
// and approxFrameOverhead, and scales the total by capacityFactor, per
// §4.2's pre-reservation guidance for minimizing reallocation.
func estimateCapacity(samples []types.Sample) int {
	var total int
	for _, s := range samples {
		total += approxFrameOverhead + len(s.Topic) + len(s.Payload)
	}
	return int(float64(total) * capacityFactor)
}
