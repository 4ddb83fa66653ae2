package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oculab/gazetrack/internal/services"
	"github.com/oculab/gazetrack/tests/helpers"
)

func newRoomStore() *services.RoomStore {
	return services.NewRoomStore(services.NewMetrics())
}

func TestRoomStore_SampleOrderPreserved(t *testing.T) {
	rooms := newRoomStore()
	rooms.Ensure("s1")
	rooms.SetCurrentImage("s1", "cat.png")

	assert.True(t, rooms.RecordSample("s1", 10, 20, "u1"))
	assert.True(t, rooms.RecordSample("s1", 15, 25, "u1"))
	assert.True(t, rooms.RecordSample("s1", 90, 95, "u1"))

	results := rooms.SnapshotAndClear("s1")
	assert.Len(t, results, 1)
	assert.Equal(t, "cat.png", results[0].ImageURL)
	assert.Len(t, results[0].GazePoints, 3)
	assert.Equal(t, 10.0, results[0].GazePoints[0].X)
	assert.Equal(t, 15.0, results[0].GazePoints[1].X)
	assert.Equal(t, 90.0, results[0].GazePoints[2].X)
	assert.Equal(t, "u1", results[0].GazePoints[0].UserID)
	helpers.AssertTimeRecent(t, results[0].GazePoints[0].Timestamp, "sample timestamp")
}

func TestRoomStore_SampleBeforeAnyImageIsDropped(t *testing.T) {
	rooms := newRoomStore()
	rooms.Ensure("s1")

	assert.False(t, rooms.RecordSample("s1", 50, 50, "u1"))

	rooms.SetCurrentImage("s1", "cat.png")
	results := rooms.SnapshotAndClear("s1")
	assert.Len(t, results, 1)
	assert.Empty(t, results[0].GazePoints)
}

func TestRoomStore_SampleWithoutRoomIsDropped(t *testing.T) {
	rooms := newRoomStore()

	assert.False(t, rooms.RecordSample("missing", 50, 50, "u1"))
	assert.Empty(t, rooms.SnapshotAndClear("missing"))
}

func TestRoomStore_DoubleSnapshot(t *testing.T) {
	rooms := newRoomStore()
	rooms.Ensure("s1")
	rooms.SetCurrentImage("s1", "cat.png")
	rooms.RecordSample("s1", 10, 20, "u1")

	first := rooms.SnapshotAndClear("s1")
	assert.Len(t, first, 1)
	assert.Len(t, first[0].GazePoints, 1)

	second := rooms.SnapshotAndClear("s1")
	assert.Empty(t, second)
}

func TestRoomStore_SwitchImageMidStream(t *testing.T) {
	rooms := newRoomStore()
	rooms.Ensure("s1")

	rooms.SetCurrentImage("s1", "img1")
	rooms.RecordSample("s1", 1, 1, "u1")
	rooms.RecordSample("s1", 2, 2, "u1")

	rooms.SetCurrentImage("s1", "img2")
	// A client may still believe img1 is current; attribution follows the
	// server-side pointer at processing time.
	rooms.RecordSample("s1", 3, 3, "u1")

	results := rooms.SnapshotAndClear("s1")
	assert.Len(t, results, 2)
	assert.Equal(t, "img1", results[0].ImageURL)
	assert.Equal(t, "img2", results[1].ImageURL)
	assert.Len(t, results[0].GazePoints, 2)
	assert.Len(t, results[1].GazePoints, 1)
	assert.Equal(t, 3.0, results[1].GazePoints[0].X)
}

func TestRoomStore_SwitchBackToPreviousImage(t *testing.T) {
	rooms := newRoomStore()
	rooms.Ensure("s1")

	rooms.SetCurrentImage("s1", "img1")
	rooms.RecordSample("s1", 1, 1, "u1")
	rooms.SetCurrentImage("s1", "img2")
	rooms.SetCurrentImage("s1", "img1")
	rooms.RecordSample("s1", 2, 2, "u1")

	results := rooms.SnapshotAndClear("s1")
	// First-seen order, no duplicate bucket for the revisit.
	assert.Len(t, results, 2)
	assert.Equal(t, "img1", results[0].ImageURL)
	assert.Len(t, results[0].GazePoints, 2)
}

func TestRoomStore_SetImageWithoutRoomIsNoOp(t *testing.T) {
	rooms := newRoomStore()

	rooms.SetCurrentImage("missing", "cat.png")
	assert.Empty(t, rooms.SnapshotAndClear("missing"))
}

func TestRoomStore_EnsureIsIdempotent(t *testing.T) {
	rooms := newRoomStore()

	rooms.Ensure("s1")
	rooms.SetCurrentImage("s1", "cat.png")
	rooms.RecordSample("s1", 10, 20, "u1")
	rooms.Ensure("s1")

	results := rooms.SnapshotAndClear("s1")
	assert.Len(t, results, 1)
	assert.Len(t, results[0].GazePoints, 1)
}

func TestRoomStore_MarkCalibrated(t *testing.T) {
	rooms := newRoomStore()
	rooms.Ensure("s1")

	assert.False(t, rooms.IsCalibrated("s1", "u1"))

	rooms.MarkCalibrated("s1", "u1")
	rooms.MarkCalibrated("s1", "u1")
	assert.True(t, rooms.IsCalibrated("s1", "u1"))
	assert.False(t, rooms.IsCalibrated("s1", "u2"))

	// Calibration state is cleared with the room.
	rooms.SnapshotAndClear("s1")
	assert.False(t, rooms.IsCalibrated("s1", "u1"))
}

func TestRoomStore_RestoreKeepsSamplesForRetry(t *testing.T) {
	rooms := newRoomStore()
	rooms.Ensure("s1")
	rooms.SetCurrentImage("s1", "cat.png")
	rooms.RecordSample("s1", 10, 20, "u1")

	snapshot := rooms.SnapshotAndClear("s1")
	assert.Empty(t, rooms.SnapshotAndClear("s1"))

	rooms.Restore("s1", snapshot)

	retried := rooms.SnapshotAndClear("s1")
	assert.Len(t, retried, 1)
	assert.Equal(t, "cat.png", retried[0].ImageURL)
	assert.Len(t, retried[0].GazePoints, 1)
	assert.Equal(t, 10.0, retried[0].GazePoints[0].X)
}

func TestRoomStore_RestoreResumesCollection(t *testing.T) {
	rooms := newRoomStore()
	rooms.Ensure("s1")
	rooms.SetCurrentImage("s1", "img1")
	rooms.RecordSample("s1", 10, 20, "u1")
	rooms.SetCurrentImage("s1", "img2")
	rooms.RecordSample("s1", 30, 40, "u1")

	snapshot := rooms.SnapshotAndClear("s1")
	rooms.Restore("s1", snapshot)

	// The restored room points back at the last stimulus, so samples that
	// arrive before the retried end_session still land in its bucket.
	assert.True(t, rooms.RecordSample("s1", 50, 60, "u1"))

	retried := rooms.SnapshotAndClear("s1")
	assert.Len(t, retried, 2)
	assert.Equal(t, "img2", retried[1].ImageURL)
	assert.Len(t, retried[1].GazePoints, 2)
	assert.Equal(t, 50.0, retried[1].GazePoints[1].X)
}

func TestRoomStore_EvictIdle(t *testing.T) {
	rooms := newRoomStore()
	rooms.Ensure("s1")
	rooms.Ensure("s2")

	assert.Equal(t, 0, rooms.EvictIdle(time.Hour))
	assert.Equal(t, 2, rooms.ActiveRooms())

	assert.Equal(t, 2, rooms.EvictIdle(0))
	assert.Equal(t, 0, rooms.ActiveRooms())
	assert.Empty(t, rooms.SnapshotAndClear("s1"))
}
