package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculab/gazetrack/internal/models"
	"github.com/oculab/gazetrack/internal/services"
	"github.com/oculab/gazetrack/tests/helpers"
)

type flowFixture struct {
	store    *services.SessionStore
	rooms    *services.RoomStore
	router   *services.Router
	hub      *helpers.RecordingBroadcaster
	registry *services.Registry
	notifier *services.Notifier
}

func setupFlow(t *testing.T) (*flowFixture, *services.Client, *services.Client, string, func()) {
	t.Helper()

	app, cleanup := helpers.SetupTestApp(t)
	admin := helpers.CreateTestUser(t, app, "admin@example.com")
	user := helpers.CreateTestUser(t, app, "participant@example.com")

	metrics := services.NewMetrics()
	hub := helpers.NewRecordingBroadcaster()
	store := services.NewSessionStore(app)
	rooms := services.NewRoomStore(metrics)
	registry := services.NewRegistry()

	f := &flowFixture{
		store:    store,
		rooms:    rooms,
		router:   services.NewRouter(store, rooms, hub, metrics),
		hub:      hub,
		registry: registry,
		notifier: services.NewNotifier(registry, hub),
	}

	adminClient := helpers.NewTestClient(admin.Id)
	userClient := helpers.NewTestClient(user.Id)
	f.registry.Register(admin.Id, adminClient)
	f.registry.Register(user.Id, userClient)

	record := helpers.CreateTestSession(t, app, "Test A", admin.Id)

	return f, adminClient, userClient, record.Id, cleanup
}

func (f *flowFixture) route(t *testing.T, c *services.Client, msgType, sessionID string, payload map[string]any) {
	t.Helper()
	f.router.Route(&services.ClientMessage{
		Client:  c,
		Message: helpers.MarshalWSMessage(t, msgType, sessionID, payload),
	})
}

func TestSessionFlow_EndToEnd(t *testing.T) {
	f, admin, user, sessionID, cleanup := setupFlow(t)
	defer cleanup()

	// Invite the participant; they are connected, so the live push lands.
	updated, added, err := f.store.AppendInvitee(sessionID, user.Identity())
	require.NoError(t, err)
	assert.True(t, added)
	f.notifier.NotifyInvitation(user.Identity(), f.store.ToSession(updated))

	invitations := f.hub.DirectMessagesOfType(models.MsgTypeNewInvitation)
	require.Len(t, invitations, 1)
	assert.Same(t, user, invitations[0].Client)

	// Both sides join the session room.
	f.route(t, admin, models.MsgTypeJoinSession, sessionID, nil)
	f.route(t, user, models.MsgTypeJoinSession, sessionID, nil)
	assert.Len(t, f.hub.Joined(sessionID), 2)

	// Admin kicks off calibration, participant acknowledges.
	f.route(t, admin, models.MsgTypeStartCalibration, sessionID, nil)
	require.Len(t, f.hub.RoomMessagesOfType(models.MsgTypeInitCalibration), 1)

	f.route(t, user, models.MsgTypeCalibrationDone, sessionID, nil)
	calibrated := f.hub.RoomMessagesOfType(models.MsgTypeUserCalibrated)
	require.Len(t, calibrated, 1)
	payload := calibrated[0].Message.Payload.(map[string]string)
	assert.Equal(t, user.Identity(), payload["userId"])
	assert.True(t, f.rooms.IsCalibrated(sessionID, user.Identity()))

	// Admin pushes the stimulus; everyone in the room gets new_image.
	f.route(t, admin, models.MsgTypeSendImage, sessionID, map[string]any{"imageUrl": "cat.png"})
	newImages := f.hub.RoomMessagesOfType(models.MsgTypeNewImage)
	require.Len(t, newImages, 1)
	assert.Nil(t, newImages[0].Exclude)

	// Three samples stream in.
	f.route(t, user, models.MsgTypeGazeData, sessionID, map[string]any{"x": 10.0, "y": 20.0})
	f.route(t, user, models.MsgTypeGazeData, sessionID, map[string]any{"x": 15.0, "y": 25.0})
	f.route(t, user, models.MsgTypeGazeData, sessionID, map[string]any{"x": 90.0, "y": 95.0})

	gaze := f.hub.RoomMessagesOfType(models.MsgTypeReceiveGaze)
	require.Len(t, gaze, 3)
	// Peer broadcast, not echo: the sender is excluded.
	assert.Same(t, user, gaze[0].Exclude)

	// Admin ends the session.
	f.route(t, admin, models.MsgTypeEndSession, sessionID, nil)

	ended := f.hub.RoomMessagesOfType(models.MsgTypeSessionEnded)
	require.Len(t, ended, 1)

	record, err := f.store.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusCompleted), record.GetString("status"))

	session := f.store.ToSession(record)
	require.Len(t, session.Results, 1)
	assert.Equal(t, "cat.png", session.Results[0].ImageURL)
	require.Len(t, session.Results[0].GazePoints, 3)
	assert.Equal(t, 10.0, session.Results[0].GazePoints[0].X)
	assert.Equal(t, 20.0, session.Results[0].GazePoints[0].Y)
	assert.Equal(t, 15.0, session.Results[0].GazePoints[1].X)
	assert.Equal(t, 90.0, session.Results[0].GazePoints[2].X)
	assert.Equal(t, user.Identity(), session.Results[0].GazePoints[0].UserID)

	// The room is gone; a straggler sample is silently dropped.
	f.route(t, user, models.MsgTypeGazeData, sessionID, map[string]any{"x": 1.0, "y": 1.0})
	record, err = f.store.GetSession(sessionID)
	require.NoError(t, err)
	assert.Len(t, f.store.ToSession(record).Results[0].GazePoints, 3)
}

func TestSessionFlow_AdminOnlyEvents(t *testing.T) {
	f, admin, user, sessionID, cleanup := setupFlow(t)
	defer cleanup()

	f.route(t, admin, models.MsgTypeJoinSession, sessionID, nil)
	f.route(t, user, models.MsgTypeJoinSession, sessionID, nil)

	f.route(t, user, models.MsgTypeStartCalibration, sessionID, nil)
	f.route(t, user, models.MsgTypeSendImage, sessionID, map[string]any{"imageUrl": "cat.png"})
	f.route(t, user, models.MsgTypeEndSession, sessionID, nil)

	// Nothing was broadcast and nothing persisted; the sender got errors.
	assert.Empty(t, f.hub.RoomMessagesOfType(models.MsgTypeInitCalibration))
	assert.Empty(t, f.hub.RoomMessagesOfType(models.MsgTypeNewImage))
	assert.Empty(t, f.hub.RoomMessagesOfType(models.MsgTypeSessionEnded))

	errs := f.hub.DirectMessagesOfType(models.MsgTypeError)
	require.Len(t, errs, 3)
	for _, e := range errs {
		assert.Same(t, user, e.Client)
	}

	record, err := f.store.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusActive), record.GetString("status"))
}

func TestSessionFlow_DuplicateEndSession(t *testing.T) {
	f, admin, user, sessionID, cleanup := setupFlow(t)
	defer cleanup()

	f.route(t, admin, models.MsgTypeJoinSession, sessionID, nil)
	f.route(t, admin, models.MsgTypeSendImage, sessionID, map[string]any{"imageUrl": "cat.png"})
	f.route(t, user, models.MsgTypeGazeData, sessionID, map[string]any{"x": 10.0, "y": 20.0})

	f.route(t, admin, models.MsgTypeEndSession, sessionID, nil)
	f.route(t, admin, models.MsgTypeEndSession, sessionID, nil)

	// One room-wide broadcast from the real finalize, one direct replay to
	// the retrying admin; the persisted results are untouched.
	assert.Len(t, f.hub.RoomMessagesOfType(models.MsgTypeSessionEnded), 1)
	replays := f.hub.DirectMessagesOfType(models.MsgTypeSessionEnded)
	require.Len(t, replays, 1)
	assert.Same(t, admin, replays[0].Client)

	record, err := f.store.GetSession(sessionID)
	require.NoError(t, err)
	session := f.store.ToSession(record)
	require.Len(t, session.Results, 1)
	assert.Len(t, session.Results[0].GazePoints, 1)
}

func TestSessionFlow_UnknownSessionRejected(t *testing.T) {
	f, admin, _, _, cleanup := setupFlow(t)
	defer cleanup()

	f.route(t, admin, models.MsgTypeEndSession, "doesnotexist00x", nil)

	errs := f.hub.DirectMessagesOfType(models.MsgTypeError)
	require.Len(t, errs, 1)
	payload := errs[0].Message.Payload.(map[string]string)
	assert.Equal(t, "session not found", payload["message"])
}

func TestSessionFlow_OutOfRangeSampleDropped(t *testing.T) {
	f, admin, user, sessionID, cleanup := setupFlow(t)
	defer cleanup()

	f.route(t, admin, models.MsgTypeJoinSession, sessionID, nil)
	f.route(t, admin, models.MsgTypeSendImage, sessionID, map[string]any{"imageUrl": "cat.png"})

	f.route(t, user, models.MsgTypeGazeData, sessionID, map[string]any{"x": 250.0, "y": 20.0})
	f.route(t, user, models.MsgTypeGazeData, sessionID, map[string]any{"x": 50.0, "y": 50.0})

	// The out-of-viewport sample is neither recorded nor rebroadcast.
	assert.Len(t, f.hub.RoomMessagesOfType(models.MsgTypeReceiveGaze), 1)

	f.route(t, admin, models.MsgTypeEndSession, sessionID, nil)
	record, err := f.store.GetSession(sessionID)
	require.NoError(t, err)
	session := f.store.ToSession(record)
	require.Len(t, session.Results, 1)
	require.Len(t, session.Results[0].GazePoints, 1)
	assert.Equal(t, 50.0, session.Results[0].GazePoints[0].X)
}
