package services

import (
	"encoding/json"
	"fmt"

	"github.com/pocketbase/pocketbase/core"

	"github.com/oculab/gazetrack/internal/models"
)

// SessionStore persists sessions through the document store. It is the only
// writer of durable session state: the invite path appends invitees while a
// session is active, the finalize path attaches results and completes it.
type SessionStore struct {
	app core.App
}

func NewSessionStore(app core.App) *SessionStore {
	return &SessionStore{
		app: app,
	}
}

// CreateSession creates a new active session owned by adminID.
func (s *SessionStore) CreateSession(title, adminID string) (*core.Record, error) {
	collection, err := s.app.FindCollectionByNameOrId("sessions")
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("title", title)
	record.Set("admin", adminID)
	record.Set("invitees", []byte("[]"))
	record.Set("status", string(models.StatusActive))

	if err := s.app.Save(record); err != nil {
		return nil, fmt.Errorf("failed to save session record: %w", err)
	}
	return record, nil
}

// GetSession retrieves a session by ID from the database.
func (s *SessionStore) GetSession(id string) (*core.Record, error) {
	record, err := s.app.FindRecordById("sessions", id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	return record, nil
}

// IsAdmin reports whether identity owns the session.
func (s *SessionStore) IsAdmin(sessionID, identity string) bool {
	record, err := s.GetSession(sessionID)
	if err != nil {
		return false
	}
	return record.GetString("admin") == identity
}

// FindForIdentity lists sessions where identity is the admin or appears in
// the invitee list, newest first.
func (s *SessionStore) FindForIdentity(identity string) ([]*core.Record, error) {
	records, err := s.app.FindRecordsByFilter(
		"sessions",
		"admin = {:identity} || invitees ~ {:identity}",
		"-created",
		100,
		0,
		map[string]any{"identity": identity},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions: %w", err)
	}
	return records, nil
}

// FindAll lists every session, newest first.
func (s *SessionStore) FindAll() ([]*core.Record, error) {
	records, err := s.app.FindRecordsByFilter("sessions", "id != ''", "-created", 500, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return records, nil
}

// Invitees decodes a record's invitee list.
func (s *SessionStore) Invitees(record *core.Record) []models.Invitee {
	var invitees []models.Invitee
	if err := record.UnmarshalJSONField("invitees", &invitees); err != nil {
		return nil
	}
	return invitees
}

// AppendInvitee adds identity to the session's invitee list with status
// "invited". Inviting the same identity twice keeps a single entry. Returns
// the up-to-date record and whether a new entry was written.
func (s *SessionStore) AppendInvitee(sessionID, identity string) (*core.Record, bool, error) {
	record, err := s.GetSession(sessionID)
	if err != nil {
		return nil, false, err
	}

	invitees := s.Invitees(record)
	for _, invitee := range invitees {
		if invitee.User == identity {
			return record, false, nil
		}
	}

	invitees = append(invitees, models.Invitee{
		User:   identity,
		Status: models.InviteeInvited,
	})
	data, err := json.Marshal(invitees)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal invitees: %w", err)
	}
	record.Set("invitees", data)

	if err := s.app.Save(record); err != nil {
		return nil, false, fmt.Errorf("failed to save invitee: %w", err)
	}
	return record, true, nil
}

// FinalizeSession attaches the aggregated results and marks the session
// completed in a single write.
func (s *SessionStore) FinalizeSession(sessionID string, results []models.ImageResult) (*core.Record, error) {
	record, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}

	record.Set("status", string(models.StatusCompleted))
	record.Set("results", data)

	if err := s.app.Save(record); err != nil {
		return nil, fmt.Errorf("failed to finalize session: %w", err)
	}
	return record, nil
}

// ToSession converts a record to its wire DTO.
func (s *SessionStore) ToSession(record *core.Record) *models.Session {
	session := &models.Session{
		ID:       record.Id,
		Title:    record.GetString("title"),
		Admin:    record.GetString("admin"),
		Invitees: s.Invitees(record),
		Status:   models.SessionStatus(record.GetString("status")),
		Created:  record.GetDateTime("created").Time(),
	}
	_ = record.UnmarshalJSONField("results", &session.Results)
	return session
}
