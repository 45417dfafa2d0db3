// Package control implements the bus-facing request/response surface that
// drives the recording-session state machine (§4.7): one queryable for
// control commands, one for status.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coscene-io/topicrecorder/buffer"
	"github.com/coscene-io/topicrecorder/session"
	"github.com/coscene-io/topicrecorder/types"
)

// Command names accepted on the control queryable.
const (
	CommandStart  = "start"
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandCancel = "cancel"
	CommandFinish = "finish"
)

// Request is the control queryable's request payload.
type Request struct {
	Command         string   `json:"command"`
	RecordingID     string   `json:"recording_id,omitempty"`
	Scene           string   `json:"scene,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	Organization    string   `json:"organization,omitempty"`
	TaskID          string   `json:"task_id,omitempty"`
	DataCollectorID string   `json:"data_collector_id,omitempty"`
	Topics          []string `json:"topics,omitempty"`
	CompressionType string   `json:"compression_type,omitempty"`
	CompressionLevel int     `json:"compression_level,omitempty"`
}

// Response is the uniform control response shape (§4.7).
type Response struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	RecordingID string `json:"recording_id,omitempty"`
	BucketName  string `json:"bucket_name,omitempty"`
}

// StatusResponse extends Response with the status snapshot.
type StatusResponse struct {
	Response
	DeviceID      string   `json:"device_id,omitempty"`
	State         string   `json:"state,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	BufferedBytes int64    `json:"buffered_bytes"`
	TotalBytes    int64    `json:"total_bytes"`
	TotalSamples  int64    `json:"total_samples"`
	ErrorCount    int64    `json:"error_count"`
	OverloadCount int64    `json:"overload_count"`
}

// Interface is the ControlInterface component (§4.7): it validates
// requests, dispatches to the SessionRegistry, and always serializes a
// response — registry/session errors become success=false responses, never
// a channel failure.
type Interface struct {
	registry   *session.Registry
	policy     buffer.Policy
	bucketName string
	timeout    time.Duration
}

// New creates a control Interface bound to registry. bucketName is echoed
// back on a successful Start response; timeout bounds each request per §5.
func New(registry *session.Registry, policy buffer.Policy, bucketName string, timeout time.Duration) *Interface {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Interface{registry: registry, policy: policy, bucketName: bucketName, timeout: timeout}
}

// HandleControl parses and dispatches one request to recorder/control/{device-id}.
func (i *Interface) HandleControl(ctx context.Context, deviceID string, requestPayload []byte) []byte {
	var req Request
	if err := json.Unmarshal(requestPayload, &req); err != nil {
		return encode(Response{Success: false, Message: fmt.Sprintf("invalid request: %v", err)})
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	resp := i.dispatch(ctx, deviceID, req)
	return encode(resp)
}

func (i *Interface) dispatch(ctx context.Context, deviceID string, req Request) Response {
	switch req.Command {
	case CommandStart:
		return i.handleStart(ctx, deviceID, req)
	case CommandPause:
		return i.handleTransition(req.RecordingID, func(s *session.RecordingSession) error { return s.Pause() })
	case CommandResume:
		return i.handleTransition(req.RecordingID, func(s *session.RecordingSession) error { return s.Resume() })
	case CommandCancel:
		return i.handleTransition(req.RecordingID, func(s *session.RecordingSession) error { return s.Cancel() })
	case CommandFinish:
		return i.handleTransition(req.RecordingID, func(s *session.RecordingSession) error { return s.Finish(ctx) })
	default:
		return Response{Success: false, Message: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

func (i *Interface) handleStart(ctx context.Context, deviceID string, req Request) Response {
	if len(req.Topics) == 0 {
		return Response{Success: false, Message: "topics must be non-empty"}
	}
	if _, active := i.registry.ByDevice(deviceID); active {
		return Response{Success: false, Message: session.ErrAlreadyRecording.Error()}
	}

	compressionType := types.CompressionType(req.CompressionType)
	if compressionType == "" {
		compressionType = types.CompressionNone
	}

	params := session.StartParams{
		Scene:           req.Scene,
		Skills:          req.Skills,
		Organization:    req.Organization,
		TaskID:          req.TaskID,
		DataCollectorID: req.DataCollectorID,
		Topics:          req.Topics,
		Compression:     types.CompressionConfig{Type: compressionType, Level: req.CompressionLevel},
		Policy:          i.policy,
	}

	s := i.registry.Create(deviceID)
	recordingID, err := s.Start(ctx, params)
	if err != nil {
		return Response{Success: false, Message: err.Error()}
	}
	i.registry.Register(s)

	return Response{Success: true, Message: "recording started", RecordingID: recordingID, BucketName: i.bucketName}
}

func (i *Interface) handleTransition(recordingID string, fn func(*session.RecordingSession) error) Response {
	if !isValidRecordingID(recordingID) {
		return Response{Success: false, Message: "recording_id is required"}
	}
	s, ok := i.registry.Get(recordingID)
	if !ok {
		return Response{Success: false, Message: session.ErrNotFound.Error()}
	}
	if err := fn(s); err != nil {
		return Response{Success: false, Message: err.Error()}
	}
	return Response{Success: true, Message: "ok", RecordingID: recordingID}
}

// HandleStatus parses recordingID and returns the status snapshot for
// recorder/status/{recording-id}.
func (i *Interface) HandleStatus(recordingID string) []byte {
	if !isValidRecordingID(recordingID) {
		return encode(StatusResponse{Response: Response{Success: false, Message: "recording_id is required"}})
	}
	s, ok := i.registry.Get(recordingID)
	if !ok {
		return encode(StatusResponse{Response: Response{Success: false, Message: session.ErrNotFound.Error()}})
	}

	snap := s.Status()
	return encode(StatusResponse{
		Response:      Response{Success: true, Message: "ok", RecordingID: snap.RecordingID},
		DeviceID:      snap.DeviceID,
		State:         snap.State.String(),
		Topics:        snap.Topics,
		BufferedBytes: snap.BufferedBytes,
		TotalBytes:    snap.TotalBytes,
		TotalSamples:  snap.TotalSamples,
		ErrorCount:    snap.ErrorCount,
		OverloadCount: snap.OverloadCount,
	})
}

// isValidRecordingID checks only that the id is non-empty; the id's format
// is not checked. An id the registry does not hold is rejected by the
// registry lookup that follows.
func isValidRecordingID(id string) bool {
	return len(id) > 0
}

func encode(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		// Marshaling our own response structs cannot fail; this only
		// guards against a future field type mistake.
		return []byte(`{"success":false,"message":"internal error encoding response"}`)
	}
	return payload
}
