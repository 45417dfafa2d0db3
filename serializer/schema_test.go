package serializer

import (
	"testing"

	"github.com/coscene-io/topicrecorder/types"
)

func TestSchemaMatcher_FirstMatchWins(t *testing.T) {
	m, err := NewSchemaMatcher([]types.SchemaPattern{
		{TopicGlob: "/cam/*", Format: "jpeg", SchemaName: "Image", SchemaHash: "h1"},
		{TopicGlob: "/cam/front", Format: "png", SchemaName: "FrontImage", SchemaHash: "h2"},
	})
	if err != nil {
		t.Fatalf("NewSchemaMatcher: %v", err)
	}

	info, ok := m.Match("/cam/front")
	if !ok {
		t.Fatal("expected a match for /cam/front")
	}
	if info.Format != "jpeg" {
		t.Errorf("Format = %q, want jpeg (first matching pattern wins)", info.Format)
	}

	if _, ok := m.Match("/lidar/points"); ok {
		t.Error("expected no match for an unconfigured topic")
	}
}

func TestSchemaMatcher_NilSafe(t *testing.T) {
	var m *SchemaMatcher
	if _, ok := m.Match("/anything"); ok {
		t.Error("nil matcher should never report a match")
	}
}

func TestSchemaMatcher_InvalidPatternErrors(t *testing.T) {
	_, err := NewSchemaMatcher([]types.SchemaPattern{{TopicGlob: "["}})
	if err == nil {
		t.Error("expected an error for an invalid glob pattern")
	}
}
