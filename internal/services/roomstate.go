package services

import (
	"sync"
	"time"

	"github.com/oculab/gazetrack/internal/models"
)

// roomState is the ephemeral aggregation state of one active session. It is
// created lazily on the first join_session and lives until the session is
// finalized or evicted as idle.
type roomState struct {
	currentImage string
	order        []string // first-seen order of stimuli
	buckets      map[string][]models.GazePoint
	calibrated   map[string]bool
	lastActivity time.Time
}

func newRoomState() *roomState {
	return &roomState{
		buckets:      make(map[string][]models.GazePoint),
		calibrated:   make(map[string]bool),
		lastActivity: time.Now(),
	}
}

// RoomStore owns all live room state, keyed by session id. Every mutation
// goes through it so call sites never touch a half-initialized room.
type RoomStore struct {
	mu      sync.Mutex
	rooms   map[string]*roomState
	metrics *Metrics
}

func NewRoomStore(metrics *Metrics) *RoomStore {
	return &RoomStore{
		rooms:   make(map[string]*roomState),
		metrics: metrics,
	}
}

// Ensure creates room state for sessionID if absent. Safe to call for every
// join_session; only the first call allocates.
func (s *RoomStore) Ensure(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[sessionID]; !ok {
		s.rooms[sessionID] = newRoomState()
		s.metrics.IncrementRooms()
	}
}

// SetCurrentImage points the room at a new stimulus and allocates its sample
// bucket on first sight. Switching does not flush the previous bucket:
// samples already collected stay addressable under the old reference, it is
// simply no longer current. No-op if the room does not exist.
func (s *RoomStore) SetCurrentImage(sessionID, imageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[sessionID]
	if !ok {
		return
	}

	st.currentImage = imageURL
	if _, ok := st.buckets[imageURL]; !ok {
		st.buckets[imageURL] = []models.GazePoint{}
		st.order = append(st.order, imageURL)
	}
	st.lastActivity = time.Now()
}

// RecordSample appends a timestamped sample to the bucket of the room's
// current stimulus. A sample is attributed to whatever stimulus is current
// at the moment it is processed, not when the client captured it. Samples
// arriving before any stimulus, or after teardown, are dropped; that is a
// best-effort path, not an error. Returns whether the sample was kept.
func (s *RoomStore) RecordSample(sessionID string, x, y float64, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[sessionID]
	if !ok || st.currentImage == "" {
		return false
	}

	st.buckets[st.currentImage] = append(st.buckets[st.currentImage], models.GazePoint{
		X:         x,
		Y:         y,
		Timestamp: time.Now(),
		UserID:    userID,
	})
	st.lastActivity = time.Now()
	return true
}

// MarkCalibrated records that identity finished calibration for the session.
// Idempotent; no-op if the room does not exist.
func (s *RoomStore) MarkCalibrated(sessionID, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[sessionID]
	if !ok {
		return
	}
	st.calibrated[identity] = true
	st.lastActivity = time.Now()
}

// IsCalibrated reports whether identity completed calibration in the session.
func (s *RoomStore) IsCalibrated(sessionID, identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[sessionID]
	return ok && st.calibrated[identity]
}

// SnapshotAndClear removes the room and returns its sample buckets in
// first-seen stimulus order; samples within a bucket keep arrival order.
// Duplicate termination signals are expected, so a second call for the same
// session returns an empty list instead of erroring.
func (s *RoomStore) SnapshotAndClear(sessionID string) []models.ImageResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[sessionID]
	if !ok {
		return []models.ImageResult{}
	}

	delete(s.rooms, sessionID)
	s.metrics.DecrementRooms()

	results := make([]models.ImageResult, 0, len(st.order))
	for _, imageURL := range st.order {
		results = append(results, models.ImageResult{
			ImageURL:   imageURL,
			GazePoints: st.buckets[imageURL],
		})
	}
	return results
}

// Restore merges a snapshot back into the room after a failed finalize
// write, so a retried end_session still carries the collected samples.
// Restored buckets come first; anything recorded since the snapshot is
// appended after them.
func (s *RoomStore) Restore(sessionID string, results []models.ImageResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[sessionID]
	if !ok {
		st = newRoomState()
		s.rooms[sessionID] = st
		s.metrics.IncrementRooms()
	}

	newer := st.order
	st.order = nil
	restored := make(map[string]bool, len(results))
	for _, r := range results {
		st.order = append(st.order, r.ImageURL)
		restored[r.ImageURL] = true
		st.buckets[r.ImageURL] = append(append([]models.GazePoint{}, r.GazePoints...), st.buckets[r.ImageURL]...)
	}
	for _, imageURL := range newer {
		if !restored[imageURL] {
			st.order = append(st.order, imageURL)
		}
	}

	// Samples keep flowing between the failed write and the admin's retry;
	// without a current stimulus they would all be dropped. The snapshot does
	// not carry the pointer, so the newest restored stimulus stands in.
	if st.currentImage == "" && len(st.order) > 0 {
		st.currentImage = st.order[len(st.order)-1]
	}
	st.lastActivity = time.Now()
}

// EvictIdle drops rooms with no activity for at least ttl and reports how
// many were discarded. Evicted samples are gone for good: an abandoned room
// never saw an end_session, so there is no finalize to attach them to.
func (s *RoomStore) EvictIdle(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	evicted := 0
	for sessionID, st := range s.rooms {
		if st.lastActivity.Before(cutoff) || st.lastActivity.Equal(cutoff) {
			delete(s.rooms, sessionID)
			s.metrics.DecrementRooms()
			evicted++
		}
	}
	return evicted
}

// ActiveRooms reports how many session rooms are currently live.
func (s *RoomStore) ActiveRooms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
