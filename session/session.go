// Package session implements the RecordingSession state machine (§4.5): the
// owner of a recording activity's TopicBuffers, its immutable metadata, and
// its lifecycle transitions.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/coscene-io/topicrecorder/bus"
	"github.com/coscene-io/topicrecorder/buffer"
	"github.com/coscene-io/topicrecorder/metrics"
	"github.com/coscene-io/topicrecorder/rlog"
	"github.com/coscene-io/topicrecorder/storage"
	"github.com/coscene-io/topicrecorder/subscriber"
	"github.com/coscene-io/topicrecorder/types"
)

// metadataEntry is the fixed entry-name for the Finish-time metadata record.
const metadataEntry = "recordings_metadata"

// StartParams carries everything needed to transition Idle -> Recording.
type StartParams struct {
	Scene           string
	Skills          []string
	Organization    string
	TaskID          string
	DataCollectorID string
	Topics          []string
	Compression     types.CompressionConfig
	PerTopic        map[string]types.CompressionConfig
	Policy          buffer.Policy
}

// Validate checks the required Start fields (§4.7: non-empty topics).
func (p StartParams) Validate() error {
	if len(p.Topics) == 0 {
		return fmt.Errorf("topics must be non-empty")
	}
	if !p.Compression.Type.Valid() {
		return fmt.Errorf("invalid compression type %q", p.Compression.Type)
	}
	return nil
}

// ErrInvalidTransition is returned when a command is not permitted from the
// session's current state.
type ErrInvalidTransition struct {
	From types.SessionState
	Cmd  string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot %s session in state %s", e.Cmd, e.From)
}

// RecordingSession owns one recording activity end-to-end.
type RecordingSession struct {
	deviceID string

	bus       bus.Bus
	pool      *subscriber.Pool
	queue     buffer.Enqueuer
	backend   storage.Backend
	collector *metrics.Collector
	logger    *rlog.Logger

	// mu serializes control transitions for this session; distinct sessions
	// proceed fully in parallel (§5).
	mu sync.Mutex

	state atomic.Int32

	metadata types.SessionMetadata

	buffers map[string]*buffer.TopicBuffer
	subs    map[string]bus.Subscription

	statsMu sync.Mutex
	stats   map[string]*types.TopicStats

	overloads     atomic.Int64
	droppedPaused atomic.Int64
	errorCount    atomic.Int64

	// pendingFlushes tracks FlushTasks enqueued but not yet observed
	// complete, so drain can wait for quiescence before declaring a buffer
	// fully flushed. Incremented by TopicBuffer pushes via the queue
	// wrapper below (see TryPush), decremented by OnFlushSuccess /
	// OnFlushFailure.
	pendingFlushes atomic.Int64
}

// New creates an Idle RecordingSession for deviceID. The recording-id is
// assigned on Start, not here (S1: unique within a process lifetime, minted
// once the session actually begins recording).
func New(deviceID string, busClient bus.Bus, queue buffer.Enqueuer, backend storage.Backend, collector *metrics.Collector, logger *rlog.Logger) *RecordingSession {
	if logger == nil {
		logger = rlog.Nop()
	}
	s := &RecordingSession{
		deviceID:  deviceID,
		bus:       busClient,
		pool:      subscriber.New(busClient),
		queue:     queue,
		backend:   backend,
		collector: collector,
		logger:    logger,
		buffers:   make(map[string]*buffer.TopicBuffer),
		subs:      make(map[string]bus.Subscription),
		stats:     make(map[string]*types.TopicStats),
	}
	s.state.Store(int32(types.StateIdle))
	return s
}

// State returns the current lifecycle state. Lock-free: status queries never
// block the producer path.
func (s *RecordingSession) State() types.SessionState {
	return types.SessionState(s.state.Load())
}

// Metadata returns the session's (immutable-after-Start) metadata.
func (s *RecordingSession) Metadata() types.SessionMetadata {
	return s.metadata
}

// RecordingID returns the session's recording-id, empty before Start.
func (s *RecordingSession) RecordingID() string {
	return s.metadata.RecordingID
}

func (s *RecordingSession) recording() bool {
	return s.State() == types.StateRecording
}

// Start transitions Idle -> Recording: mints a recording-id, creates one
// TopicBuffer and subscription per topic, and records the start time.
func (s *RecordingSession) Start(ctx context.Context, params StartParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != types.StateIdle {
		return "", &ErrInvalidTransition{From: s.State(), Cmd: "start"}
	}

	recordingID := uuid.New().String()
	s.metadata = types.SessionMetadata{
		RecordingID:        recordingID,
		DeviceID:           s.deviceID,
		Scene:              params.Scene,
		Skills:             params.Skills,
		Organization:       params.Organization,
		TaskID:             params.TaskID,
		DataCollectorID:    params.DataCollectorID,
		Topics:             params.Topics,
		DefaultCompression: params.Compression,
		TopicCompression:   params.PerTopic,
		StartTime:          time.Now(),
	}

	for _, topic := range params.Topics {
		compression := s.metadata.CompressionFor(topic)
		tb := buffer.New(recordingID, recordingID, s.deviceID, topic, compression, params.Policy, s, &s.overloads)
		s.buffers[topic] = tb
		s.stats[topic] = &types.TopicStats{}

		sub, err := s.pool.Subscribe(ctx, topic, tb, s.recording, func() { s.droppedPaused.Add(1) })
		if err != nil {
			s.teardownLocked()
			return "", fmt.Errorf("subscribe topic %q: %w", topic, err)
		}
		s.subs[topic] = sub
	}

	s.state.Store(int32(types.StateRecording))
	return recordingID, nil
}

// Pause transitions Recording -> Paused: force-flushes every buffer, then
// stops accepting pushes (the subscriber callback short-circuits once state
// is no longer Recording).
func (s *RecordingSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != types.StateRecording {
		return &ErrInvalidTransition{From: s.State(), Cmd: "pause"}
	}
	s.forceFlushAllLocked()
	s.state.Store(int32(types.StatePaused))
	return nil
}

// Resume transitions Paused -> Recording, re-enabling pushes.
func (s *RecordingSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != types.StatePaused {
		return &ErrInvalidTransition{From: s.State(), Cmd: "resume"}
	}
	s.state.Store(int32(types.StateRecording))
	return nil
}

// Finish transitions Recording/Paused -> Uploading -> Finished: force-flushes
// and drains all buffers, writes the metadata record, unsubscribes, and
// records the end time.
func (s *RecordingSession) Finish(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.State()
	if from != types.StateRecording && from != types.StatePaused {
		return &ErrInvalidTransition{From: from, Cmd: "finish"}
	}

	s.state.Store(int32(types.StateUploading))
	s.forceFlushAllLocked()
	s.drainLocked(ctx)

	record := s.buildMetadataRecordLocked()
	if err := s.writeMetadataRecord(ctx, record); err != nil {
		s.logger.Error("metadata record write failed", map[string]any{
			"recording_id": s.metadata.RecordingID,
			"error":        err.Error(),
		})
		return fmt.Errorf("write metadata record: %w", err)
	}

	s.unsubscribeLocked()
	now := time.Now()
	s.metadata.EndTime = &now
	s.state.Store(int32(types.StateFinished))
	return nil
}

// Cancel transitions any non-terminal state -> Cancelled and unsubscribes,
// without waiting for in-flight flush tasks. Samples still held in the
// session's buffers are not flushed. FlushTasks of this session that are
// already on the shared queue are not removed from it; workers still write
// them to the backend.
func (s *RecordingSession) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State().IsTerminal() {
		return &ErrInvalidTransition{From: s.State(), Cmd: "cancel"}
	}
	s.state.Store(int32(types.StateCancelled))
	s.unsubscribeLocked()
	return nil
}

func (s *RecordingSession) forceFlushAllLocked() {
	for _, tb := range s.buffers {
		tb.ForceFlush()
	}
}

// drainLocked waits for pendingFlushes to reach zero, bounded by a deadline
// so a stuck backend cannot hang Finish forever; Cancel is the escape hatch
// for that case.
func (s *RecordingSession) drainLocked(ctx context.Context) {
	deadline := time.Now().Add(60 * time.Second)
	for s.pendingFlushes.Load() > 0 {
		if time.Now().After(deadline) {
			s.logger.Warn("drain deadline exceeded", map[string]any{
				"recording_id": s.metadata.RecordingID,
				"pending":      s.pendingFlushes.Load(),
			})
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (s *RecordingSession) unsubscribeLocked() {
	for topic, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", map[string]any{"topic": topic, "error": err.Error()})
		}
	}
}

func (s *RecordingSession) teardownLocked() {
	s.unsubscribeLocked()
	s.buffers = make(map[string]*buffer.TopicBuffer)
	s.subs = make(map[string]bus.Subscription)
	s.stats = make(map[string]*types.TopicStats)
	s.state.Store(int32(types.StateIdle))
}

func (s *RecordingSession) buildMetadataRecordLocked() types.RecordingMetadataRecord {
	s.statsMu.Lock()
	topicStats := make(map[string]types.TopicStats, len(s.stats))
	var totalSamples, totalBytes int64
	for topic, st := range s.stats {
		topicStats[topic] = *st
		totalSamples += st.SampleCount
		totalBytes += st.ByteCount
	}
	s.statsMu.Unlock()

	endTime := time.Now()
	return types.RecordingMetadataRecord{
		RecordingID:     s.metadata.RecordingID,
		DeviceID:        s.metadata.DeviceID,
		Scene:           s.metadata.Scene,
		Skills:          s.metadata.Skills,
		Organization:    s.metadata.Organization,
		TaskID:          s.metadata.TaskID,
		DataCollectorID: s.metadata.DataCollectorID,
		Topics:          s.metadata.Topics,
		Compression:     s.metadata.DefaultCompression,
		StartTime:       s.metadata.StartTime,
		EndTime:         endTime,
		TotalBytes:      totalBytes,
		TotalSamples:    totalSamples,
		TopicStats:      topicStats,
	}
}

func (s *RecordingSession) writeMetadataRecord(ctx context.Context, record types.RecordingMetadataRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	labels := map[string]string{
		"recording-id": s.metadata.RecordingID,
		"device-id":    s.metadata.DeviceID,
		"scene":        s.metadata.Scene,
	}
	timestampUs := record.EndTime.UnixMicro()
	return storage.WriteWithRetry(ctx, s.backend, metadataEntry, timestampUs, payload, labels, storage.DefaultMaxRetries, s.collector, s.logger)
}

// OnFlushSuccess records a successful flush's contribution to per-topic
// statistics (§3 S4: monotonically increasing until Finish).
func (s *RecordingSession) OnFlushSuccess(sessionID, topic string, sampleCount int, byteCount int64) {
	s.pendingFlushes.Add(-1)
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	st, ok := s.stats[topic]
	if !ok {
		st = &types.TopicStats{}
		s.stats[topic] = st
	}
	st.SampleCount += int64(sampleCount)
	st.ByteCount += byteCount
}

// OnFlushFailure records a permanently-failed flush task (§4.4 step 8): the
// task is dropped, never requeued.
func (s *RecordingSession) OnFlushFailure(sessionID, topic string, err error) {
	s.pendingFlushes.Add(-1)
	s.errorCount.Add(1)
}

// TryPush implements buffer.Enqueuer by forwarding to the process-wide
// shared queue and, on success, marking the task as pending for this
// session's drain accounting.
func (s *RecordingSession) TryPush(task types.FlushTask) bool {
	if !s.queue.TryPush(task) {
		return false
	}
	s.pendingFlushes.Add(1)
	return true
}

// StatusSnapshot is the read model backing the status queryable (§4.7).
type StatusSnapshot struct {
	RecordingID   string
	DeviceID      string
	State         types.SessionState
	Topics        []string
	BufferedBytes int64
	TotalBytes    int64
	TotalSamples  int64
	ErrorCount    int64
	OverloadCount int64
	DroppedPaused int64
}

// Status returns a point-in-time snapshot for the status queryable.
func (s *RecordingSession) Status() StatusSnapshot {
	var bufferedBytes int64
	for _, tb := range s.buffers {
		_, bytes := tb.Stats()
		bufferedBytes += bytes
	}

	s.statsMu.Lock()
	var totalSamples, totalBytes int64
	for _, st := range s.stats {
		totalSamples += st.SampleCount
		totalBytes += st.ByteCount
	}
	s.statsMu.Unlock()

	return StatusSnapshot{
		RecordingID:   s.metadata.RecordingID,
		DeviceID:      s.metadata.DeviceID,
		State:         s.State(),
		Topics:        s.metadata.Topics,
		BufferedBytes: bufferedBytes,
		TotalBytes:    totalBytes,
		TotalSamples:  totalSamples,
		ErrorCount:    s.errorCount.Load(),
		OverloadCount: s.overloads.Load(),
		DroppedPaused: s.droppedPaused.Load(),
	}
}
