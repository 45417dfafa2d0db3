// Package serializer turns a FlushTask into a compressed, self-describing
// container blob ready for Backend.WriteRecord (§4.2). It never inspects
// sample payloads — they are framed and compressed, not parsed.
package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// lengthPrefixSize is the size of each frame's length prefix, matching the
// teacher's ipc frame format (4-byte big-endian payload length).
const lengthPrefixSize = 4

// approxFrameOverhead estimates the msgpack+length-prefix overhead of one
// frame, used only to pre-size the output buffer (§4.2); msgpack's exact
// encoded size depends on field values, so this is deliberately generous.
const approxFrameOverhead = lengthPrefixSize + 32

// SchemaInfo is attached to a frame only when the sample's topic matches a
// configured glob pattern (§4.2).
type SchemaInfo struct {
	Format     string `msgpack:"format"`
	SchemaName string `msgpack:"schema_name"`
	SchemaHash string `msgpack:"schema_hash"`
}

// Frame is one length-prefixed, msgpack-encoded record within a serialized
// container: {topic, timestamp_ns, payload, optional schema-info}.
type Frame struct {
	Topic       string      `msgpack:"topic"`
	TimestampNs int64       `msgpack:"timestamp_ns"`
	Payload     []byte      `msgpack:"payload"`
	Schema      *SchemaInfo `msgpack:"schema,omitempty"`
}

// appendFrame msgpack-encodes f, prefixes it with its length, and appends the
// result to buf.
func appendFrame(buf []byte, f Frame) []byte {
	encoded, err := msgpack.Marshal(&f)
	if err != nil {
		// Frame holds only a string, an int64, a byte slice, and a plain
		// struct pointer — none of which msgpack can fail to encode.
		panic(fmt.Sprintf("serializer: encode frame for topic %q: %v", f.Topic, err))
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(encoded)))
	return append(buf, encoded...)
}

// DecodeFrames parses a raw (already decompressed) frame stream back into
// individual Frame values, in the order they were written. Used by tests
// verifying round-trip fidelity (§8 property 7).
func DecodeFrames(data []byte) ([]Frame, error) {
	var frames []Frame
	offset := 0
	for offset < len(data) {
		f, consumed, err := decodeOneFrame(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("decode frame at offset %d: %w", offset, err)
		}
		frames = append(frames, f)
		offset += consumed
	}
	return frames, nil
}

func decodeOneFrame(data []byte) (Frame, int, error) {
	if len(data) < lengthPrefixSize {
		return Frame{}, 0, fmt.Errorf("truncated length prefix")
	}
	payloadLen := int(binary.BigEndian.Uint32(data))
	offset := lengthPrefixSize
	if len(data) < offset+payloadLen {
		return Frame{}, 0, fmt.Errorf("truncated frame payload")
	}

	var f Frame
	if err := msgpack.Unmarshal(data[offset:offset+payloadLen], &f); err != nil {
		return Frame{}, 0, fmt.Errorf("msgpack decode: %w", err)
	}
	offset += payloadLen

	return f, offset, nil
}
