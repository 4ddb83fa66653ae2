package helpers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/oculab/gazetrack/internal/models"
	"github.com/oculab/gazetrack/internal/services"
)

// SetupTestApp creates a test PocketBase app with migrations and returns a cleanup function
func SetupTestApp(t *testing.T) (core.App, func()) {
	t.Helper()
	ts := NewTestServer(t)
	return ts.App, ts.Cleanup
}

// CreateTestUser creates an auth record in the users collection
func CreateTestUser(t *testing.T, app core.App, email string) *core.Record {
	t.Helper()

	users, err := app.FindCollectionByNameOrId("users")
	if err != nil {
		t.Fatalf("Failed to find users collection: %v", err)
	}

	record := core.NewRecord(users)
	record.SetEmail(email)
	record.SetPassword("test-password-123")
	record.SetVerified(true)

	if err := app.Save(record); err != nil {
		t.Fatalf("Failed to create test user %s: %v", email, err)
	}
	return record
}

// CreateTestSession creates a session owned by adminID
func CreateTestSession(t *testing.T, app core.App, title, adminID string) *core.Record {
	t.Helper()

	store := services.NewSessionStore(app)
	record, err := store.CreateSession(title, adminID)
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	return record
}

// NewTestClient creates a client handle without a live connection. It must
// never be started; it only serves as an identity-bearing handle.
func NewTestClient(identity string) *services.Client {
	return services.NewClient(nil, nil, identity)
}

// MarshalWSMessage builds the raw frame a client would send
func MarshalWSMessage(t *testing.T, msgType, sessionID string, payload map[string]any) []byte {
	t.Helper()

	msg := models.WSMessage{
		Type:      msgType,
		SessionID: sessionID,
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal ws message: %v", err)
	}
	return data
}

// AssertTimeRecent checks if a time is within the last second
func AssertTimeRecent(t *testing.T, timestamp time.Time, message string) {
	t.Helper()
	now := time.Now()
	diff := now.Sub(timestamp)
	if diff > time.Second || diff < 0 {
		t.Errorf("%s: expected recent time, got %v (diff: %v)", message, timestamp, diff)
	}
}
