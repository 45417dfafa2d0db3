package session

import (
	"fmt"
	"sync"

	"github.com/coscene-io/topicrecorder/bus"
	"github.com/coscene-io/topicrecorder/buffer"
	"github.com/coscene-io/topicrecorder/metrics"
	"github.com/coscene-io/topicrecorder/rlog"
	"github.com/coscene-io/topicrecorder/storage"
)

// ErrNotFound is returned when a recording-id has no matching session.
var ErrNotFound = fmt.Errorf("recording not found")

// ErrAlreadyRecording is returned when Start is requested for a device that
// already has a non-terminal session.
var ErrAlreadyRecording = fmt.Errorf("device already has an active recording")

// Registry is the process-wide recording-id -> RecordingSession mapping
// (§3 SessionRegistry). Concurrent readers, point-writers; entries are
// removed only once a session is terminal.
type Registry struct {
	bus       bus.Bus
	queue     buffer.Enqueuer
	backend   storage.Backend
	collector *metrics.Collector
	logger    *rlog.Logger

	mu       sync.RWMutex
	byID     map[string]*RecordingSession
	byDevice map[string]*RecordingSession
}

// NewRegistry creates a Registry bound to the process-wide collaborators
// every session needs: the bus, the shared FlushQueue, the storage backend,
// and observability.
func NewRegistry(busClient bus.Bus, queue buffer.Enqueuer, backend storage.Backend, collector *metrics.Collector, logger *rlog.Logger) *Registry {
	return &Registry{
		bus:       busClient,
		queue:     queue,
		backend:   backend,
		collector: collector,
		logger:    logger,
		byID:      make(map[string]*RecordingSession),
		byDevice:  make(map[string]*RecordingSession),
	}
}

// Get looks up a session by recording-id.
func (r *Registry) Get(recordingID string) (*RecordingSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[recordingID]
	return s, ok
}

// ByDevice returns the active (non-terminal) session for a device, if any.
func (r *Registry) ByDevice(deviceID string) (*RecordingSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byDevice[deviceID]
	if ok && s.State().IsTerminal() {
		return nil, false
	}
	return s, ok
}

// Create returns a fresh Idle session for deviceID. The caller is expected
// to call Start and then Register on success.
func (r *Registry) Create(deviceID string) *RecordingSession {
	return New(deviceID, r.bus, r.queue, r.backend, r.collector, r.logger)
}

// Register stores s under its recording-id once Start has minted one.
func (r *Registry) Register(s *RecordingSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.RecordingID()] = s
	r.byDevice[s.deviceID] = s
}

// Remove deletes recordingID's entry. Only removes sessions that have
// reached a terminal state and finished draining (§3); a non-terminal or
// still-draining session is left in place.
func (r *Registry) Remove(recordingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[recordingID]
	if !ok {
		return
	}
	if !s.State().IsTerminal() || s.pendingFlushes.Load() > 0 {
		return
	}
	delete(r.byID, recordingID)
	if r.byDevice[s.deviceID] == s {
		delete(r.byDevice, s.deviceID)
	}
}
