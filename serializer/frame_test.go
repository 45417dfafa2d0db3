package serializer

import (
	"reflect"
	"testing"
)

func TestFrame_RoundTripWithoutSchema(t *testing.T) {
	frames := []Frame{
		{Topic: "/a", TimestampNs: 100, Payload: []byte("hello")},
		{Topic: "/b/c", TimestampNs: 200, Payload: []byte{}},
	}

	var buf []byte
	for _, f := range frames {
		buf = appendFrame(buf, f)
	}

	decoded, err := DecodeFrames(buf)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	if len(decoded) != len(frames) {
		t.Fatalf("len(decoded) = %d, want %d", len(decoded), len(frames))
	}
	for i := range frames {
		if decoded[i].Topic != frames[i].Topic || decoded[i].TimestampNs != frames[i].TimestampNs {
			t.Errorf("frame[%d] = %+v, want %+v", i, decoded[i], frames[i])
		}
		if !reflect.DeepEqual(decoded[i].Payload, frames[i].Payload) && len(decoded[i].Payload)+len(frames[i].Payload) > 0 {
			t.Errorf("frame[%d].Payload = %v, want %v", i, decoded[i].Payload, frames[i].Payload)
		}
		if decoded[i].Schema != nil {
			t.Errorf("frame[%d].Schema = %+v, want nil", i, decoded[i].Schema)
		}
	}
}

func TestFrame_RoundTripWithSchema(t *testing.T) {
	f := Frame{
		Topic:       "/a",
		TimestampNs: 42,
		Payload:     []byte("payload"),
		Schema:      &SchemaInfo{Format: "protobuf", SchemaName: "Foo", SchemaHash: "abc123"},
	}

	buf := appendFrame(nil, f)
	decoded, err := DecodeFrames(buf)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("len(decoded) = %d, want 1", len(decoded))
	}
	if decoded[0].Schema == nil {
		t.Fatal("expected schema to round-trip")
	}
	if *decoded[0].Schema != *f.Schema {
		t.Errorf("Schema = %+v, want %+v", *decoded[0].Schema, *f.Schema)
	}
}

func TestDecodeFrames_TruncatedErrors(t *testing.T) {
	if _, err := DecodeFrames([]byte{0, 1}); err == nil {
		t.Error("expected an error decoding a truncated frame")
	}
}
