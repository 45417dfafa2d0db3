package serializer

import (
	"testing"

	"github.com/coscene-io/topicrecorder/types"
)

func testTask(compression types.CompressionConfig) types.FlushTask {
	samples := []types.Sample{
		{Topic: "/a", TimestampNs: 100, Payload: []byte("the quick brown fox jumps over the lazy dog")},
		{Topic: "/a", TimestampNs: 200, Payload: []byte("the quick brown fox jumps over the lazy dog again")},
	}
	return types.NewFlushTask("sess-1", "rec-1", "dev-1", "/a", samples, compression)
}

func roundTrip(t *testing.T, compression types.CompressionConfig) {
	t.Helper()
	s := New(nil)
	task := testTask(compression)

	blob, err := s.Serialize(task)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	raw, err := Decompress(blob, compression)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}

	frames, err := DecodeFrames(raw)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	if len(frames) != len(task.Samples) {
		t.Fatalf("len(frames) = %d, want %d", len(frames), len(task.Samples))
	}
	for i, f := range frames {
		if string(f.Payload) != string(task.Samples[i].Payload) {
			t.Errorf("frame[%d].Payload = %q, want %q", i, f.Payload, task.Samples[i].Payload)
		}
		if f.TimestampNs != task.Samples[i].TimestampNs {
			t.Errorf("frame[%d].TimestampNs = %d, want %d", i, f.TimestampNs, task.Samples[i].TimestampNs)
		}
	}
}

func TestSerializer_RoundTrip_None(t *testing.T) {
	roundTrip(t, types.CompressionConfig{Type: types.CompressionNone})
}

func TestSerializer_RoundTrip_Fast(t *testing.T) {
	roundTrip(t, types.CompressionConfig{Type: types.CompressionFast})
}

func TestSerializer_RoundTrip_Ratio(t *testing.T) {
	for level := 0; level <= 4; level++ {
		roundTrip(t, types.CompressionConfig{Type: types.CompressionRatio, Level: level})
	}
}

func TestSerializer_AttachesMatchingSchema(t *testing.T) {
	matcher, err := NewSchemaMatcher([]types.SchemaPattern{
		{TopicGlob: "/a", Format: "json", SchemaName: "Event", SchemaHash: "h1"},
	})
	if err != nil {
		t.Fatalf("NewSchemaMatcher: %v", err)
	}
	s := New(matcher)
	task := testTask(types.CompressionConfig{Type: types.CompressionNone})

	blob, err := s.Serialize(task)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	frames, err := DecodeFrames(blob)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	for _, f := range frames {
		if f.Schema == nil || f.Schema.Format != "json" {
			t.Errorf("frame for %q missing expected schema info: %+v", f.Topic, f.Schema)
		}
	}
}

func TestCompress_UnknownTypeErrors(t *testing.T) {
	if _, err := compress([]byte("x"), types.CompressionConfig{Type: "bogus"}); err == nil {
		t.Error("expected an error for an unknown compression type")
	}
	if _, err := Decompress([]byte("x"), types.CompressionConfig{Type: "bogus"}); err == nil {
		t.Error("expected an error decompressing an unknown compression type")
	}
}
