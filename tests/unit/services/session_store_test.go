package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oculab/gazetrack/internal/models"
	"github.com/oculab/gazetrack/internal/services"
	"github.com/oculab/gazetrack/tests/helpers"
)

func TestSessionStore_CreateSession(t *testing.T) {
	app, cleanup := helpers.SetupTestApp(t)
	defer cleanup()

	admin := helpers.CreateTestUser(t, app, "admin@example.com")
	store := services.NewSessionStore(app)

	record, err := store.CreateSession("Test A", admin.Id)
	require.NoError(t, err)

	assert.Equal(t, "Test A", record.GetString("title"))
	assert.Equal(t, admin.Id, record.GetString("admin"))
	assert.Equal(t, string(models.StatusActive), record.GetString("status"))
	assert.Empty(t, store.Invitees(record))

	found, err := store.GetSession(record.Id)
	require.NoError(t, err)
	assert.Equal(t, record.Id, found.Id)
	assert.True(t, store.IsAdmin(record.Id, admin.Id))
	assert.False(t, store.IsAdmin(record.Id, "someone-else"))
}

func TestSessionStore_GetSessionNotFound(t *testing.T) {
	app, cleanup := helpers.SetupTestApp(t)
	defer cleanup()

	store := services.NewSessionStore(app)
	_, err := store.GetSession("nope")
	assert.Error(t, err)
}

func TestSessionStore_AppendInviteeIsIdempotent(t *testing.T) {
	app, cleanup := helpers.SetupTestApp(t)
	defer cleanup()

	admin := helpers.CreateTestUser(t, app, "admin@example.com")
	invitee := helpers.CreateTestUser(t, app, "user@example.com")
	store := services.NewSessionStore(app)
	record := helpers.CreateTestSession(t, app, "Test A", admin.Id)

	updated, added, err := store.AppendInvitee(record.Id, invitee.Id)
	require.NoError(t, err)
	assert.True(t, added)

	updated, added, err = store.AppendInvitee(record.Id, invitee.Id)
	require.NoError(t, err)
	assert.False(t, added)

	invitees := store.Invitees(updated)
	require.Len(t, invitees, 1)
	assert.Equal(t, invitee.Id, invitees[0].User)
	assert.Equal(t, models.InviteeInvited, invitees[0].Status)
}

func TestSessionStore_AppendInviteeUnknownSession(t *testing.T) {
	app, cleanup := helpers.SetupTestApp(t)
	defer cleanup()

	store := services.NewSessionStore(app)
	_, _, err := store.AppendInvitee("missing-session", "someone")
	assert.Error(t, err)
}

func TestSessionStore_FinalizeSession(t *testing.T) {
	app, cleanup := helpers.SetupTestApp(t)
	defer cleanup()

	admin := helpers.CreateTestUser(t, app, "admin@example.com")
	store := services.NewSessionStore(app)
	record := helpers.CreateTestSession(t, app, "Test A", admin.Id)

	results := []models.ImageResult{
		{
			ImageURL: "cat.png",
			GazePoints: []models.GazePoint{
				{X: 10, Y: 20, UserID: "u1"},
				{X: 15, Y: 25, UserID: "u1"},
			},
		},
	}

	updated, err := store.FinalizeSession(record.Id, results)
	require.NoError(t, err)
	assert.Equal(t, string(models.StatusCompleted), updated.GetString("status"))

	session := store.ToSession(updated)
	require.Len(t, session.Results, 1)
	assert.Equal(t, "cat.png", session.Results[0].ImageURL)
	require.Len(t, session.Results[0].GazePoints, 2)
	assert.Equal(t, 10.0, session.Results[0].GazePoints[0].X)
	assert.Equal(t, 25.0, session.Results[0].GazePoints[1].Y)
}

func TestSessionStore_FindForIdentity(t *testing.T) {
	app, cleanup := helpers.SetupTestApp(t)
	defer cleanup()

	admin := helpers.CreateTestUser(t, app, "admin@example.com")
	invitee := helpers.CreateTestUser(t, app, "user@example.com")
	outsider := helpers.CreateTestUser(t, app, "outsider@example.com")
	store := services.NewSessionStore(app)

	record := helpers.CreateTestSession(t, app, "Test A", admin.Id)
	_, _, err := store.AppendInvitee(record.Id, invitee.Id)
	require.NoError(t, err)

	asAdmin, err := store.FindForIdentity(admin.Id)
	require.NoError(t, err)
	assert.Len(t, asAdmin, 1)

	asInvitee, err := store.FindForIdentity(invitee.Id)
	require.NoError(t, err)
	assert.Len(t, asInvitee, 1)

	asOutsider, err := store.FindForIdentity(outsider.Id)
	require.NoError(t, err)
	assert.Empty(t, asOutsider)
}
