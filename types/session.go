package types

import "time"

// SessionState is the recording session lifecycle state per the control
// protocol's state machine.
type SessionState int

// Session states.
const (
	StateIdle SessionState = iota
	StateRecording
	StatePaused
	StateUploading
	StateFinished
	StateCancelled
)

// String renders the state the way control responses and log fields expect.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateUploading:
		return "uploading"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is Finished or Cancelled.
func (s SessionState) IsTerminal() bool {
	return s == StateFinished || s == StateCancelled
}

// TopicStats is a per-topic sample/byte accounting snapshot. The session
// updates its counters under a mutex, not with atomic adds, and copies them
// into TopicStats values for status and metadata readers.
type TopicStats struct {
	SampleCount int64 `json:"sample_count"`
	ByteCount   int64 `json:"byte_count"`
}

// SessionMetadata is the immutable-after-Start identity of one recording
// activity, per (S1) and (S2).
type SessionMetadata struct {
	RecordingID      string            `json:"recording_id"`
	DeviceID         string            `json:"device_id"`
	Scene            string            `json:"scene"`
	Skills           []string          `json:"skills"`
	Organization     string            `json:"organization"`
	TaskID           string            `json:"task_id"`
	DataCollectorID  string            `json:"data_collector_id"`
	Topics           []string          `json:"topics"`
	DefaultCompression CompressionConfig `json:"default_compression"`
	TopicCompression map[string]CompressionConfig `json:"topic_compression,omitempty"`
	StartTime        time.Time         `json:"start_time"`
	EndTime          *time.Time        `json:"end_time,omitempty"`
}

// CompressionFor resolves the compression policy for a topic: a per-topic
// override if one is configured, otherwise the session default.
func (m SessionMetadata) CompressionFor(topic string) CompressionConfig {
	if cfg, ok := m.TopicCompression[topic]; ok {
		return cfg
	}
	return m.DefaultCompression
}

// RecordingMetadataRecord is the payload written as the single metadata
// record at Finish time (§4.5), under entry-name "recordings_metadata".
type RecordingMetadataRecord struct {
	RecordingID     string                `json:"recording_id"`
	DeviceID        string                `json:"device_id"`
	Scene           string                `json:"scene"`
	Skills          []string              `json:"skills"`
	Organization    string                `json:"organization"`
	TaskID          string                `json:"task_id"`
	DataCollectorID string                `json:"data_collector_id"`
	Topics          []string              `json:"topics"`
	Compression     CompressionConfig     `json:"compression"`
	StartTime       time.Time             `json:"start_time"`
	EndTime         time.Time             `json:"end_time"`
	TotalBytes      int64                 `json:"total_bytes"`
	TotalSamples    int64                 `json:"total_samples"`
	TopicStats      map[string]TopicStats `json:"topic_stats"`
}

// SchemaPattern pairs a glob topic pattern with the schema info attached to
// matching samples at serialization time (§4.2).
type SchemaPattern struct {
	TopicGlob  string `yaml:"topic_glob"`
	Format     string `yaml:"format"`
	SchemaName string `yaml:"schema_name"`
	SchemaHash string `yaml:"schema_hash"`
}

// BackendRecord is the unit written to storage (§3).
type BackendRecord struct {
	Entry       string
	TimestampUs int64
	Payload     []byte
	Labels      map[string]string
}
