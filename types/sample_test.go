package types

import "testing"

func TestCompressionType_Valid(t *testing.T) {
	cases := map[CompressionType]bool{
		CompressionNone:  true,
		CompressionFast:  true,
		CompressionRatio: true,
		"bogus":          false,
	}
	for ct, want := range cases {
		if got := ct.Valid(); got != want {
			t.Errorf("%q.Valid() = %v, want %v", ct, got, want)
		}
	}
}

func TestLevelToZstd_Mapping(t *testing.T) {
	cases := []struct {
		level int
		want  int
	}{
		{0, 1},
		{1, 3},
		{2, 5},
		{3, 10},
		{4, 19},
		{-1, 1},  // clamps low
		{99, 19}, // clamps high
	}
	for _, tc := range cases {
		if got := LevelToZstd(tc.level); got != tc.want {
			t.Errorf("LevelToZstd(%d) = %d, want %d", tc.level, got, tc.want)
		}
	}
}

func TestNewFlushTask_ComputesTimestampRange(t *testing.T) {
	samples := []Sample{
		{Topic: "/a", TimestampNs: 300, Payload: []byte("c")},
		{Topic: "/a", TimestampNs: 100, Payload: []byte("a")},
		{Topic: "/a", TimestampNs: 200, Payload: []byte("b")},
	}
	task := NewFlushTask("sess-1", "rec-1", "dev-1", "/a", samples, CompressionConfig{Type: CompressionNone})

	if task.MinTimestamp != 100 || task.MaxTimestamp != 300 {
		t.Errorf("timestamp range = [%d, %d], want [100, 300]", task.MinTimestamp, task.MaxTimestamp)
	}
	if task.TotalBytes() != 3 {
		t.Errorf("TotalBytes() = %d, want 3", task.TotalBytes())
	}
}

func TestNewFlushTask_PanicsOnEmptySamples(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic constructing a FlushTask with zero samples")
		}
	}()
	NewFlushTask("sess-1", "rec-1", "dev-1", "/a", nil, CompressionConfig{})
}

func TestSessionMetadata_CompressionFor(t *testing.T) {
	meta := SessionMetadata{
		DefaultCompression: CompressionConfig{Type: CompressionNone},
		TopicCompression: map[string]CompressionConfig{
			"/high-rate": {Type: CompressionFast, Level: 1},
		},
	}

	if got := meta.CompressionFor("/high-rate"); got.Type != CompressionFast {
		t.Errorf("CompressionFor(/high-rate) = %+v, want Type=fast", got)
	}
	if got := meta.CompressionFor("/other"); got.Type != CompressionNone {
		t.Errorf("CompressionFor(/other) = %+v, want the session default", got)
	}
}
