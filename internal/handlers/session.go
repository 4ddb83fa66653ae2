package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"github.com/oculab/gazetrack/internal/models"
	"github.com/oculab/gazetrack/internal/security"
	"github.com/oculab/gazetrack/internal/services"
)

// SessionHandlers exposes the REST surface for session management.
type SessionHandlers struct {
	store    *services.SessionStore
	notifier *services.Notifier
}

func NewSessionHandlers(store *services.SessionStore, notifier *services.Notifier) *SessionHandlers {
	return &SessionHandlers{
		store:    store,
		notifier: notifier,
	}
}

// Create starts a new session owned by the authenticated caller.
func (h *SessionHandlers) Create(re *core.RequestEvent) error {
	if re.Auth == nil {
		return re.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
	}

	data := struct {
		Title string `json:"title"`
	}{}
	if err := re.BindBody(&data); err != nil {
		return re.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	title, err := security.ValidateSessionTitle(data.Title)
	if err != nil {
		return re.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	record, err := h.store.CreateSession(title, re.Auth.Id)
	if err != nil {
		return re.JSON(http.StatusInternalServerError, map[string]string{"error": security.SanitizeErrorMessage(err)})
	}

	return re.JSON(http.StatusOK, h.store.ToSession(record))
}

// Invite appends a user to the session's invitee list and pushes a live
// new_invitation event if they are connected.
func (h *SessionHandlers) Invite(re *core.RequestEvent) error {
	if re.Auth == nil {
		return re.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
	}

	sessionID := re.Request.PathValue("id")
	if err := security.ValidateRecordID(sessionID); err != nil {
		return re.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	data := struct {
		UserID string `json:"userId"`
	}{}
	if err := re.BindBody(&data); err != nil {
		return re.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := security.ValidateRecordID(data.UserID); err != nil {
		return re.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	record, err := h.store.GetSession(sessionID)
	if err != nil {
		return re.JSON(http.StatusNotFound, map[string]string{"error": "Session not found"})
	}
	if record.GetString("admin") != re.Auth.Id {
		return re.JSON(http.StatusForbidden, map[string]string{"error": "Only the session admin can invite users"})
	}

	updated, added, err := h.store.AppendInvitee(sessionID, data.UserID)
	if err != nil {
		return re.JSON(http.StatusInternalServerError, map[string]string{"error": security.SanitizeErrorMessage(err)})
	}

	session := h.store.ToSession(updated)
	if added {
		h.notifier.NotifyInvitation(data.UserID, session)
	}

	return re.JSON(http.StatusOK, map[string]any{
		"invited": added,
		"session": session,
	})
}

// Mine lists sessions where the caller is the admin or an invitee.
func (h *SessionHandlers) Mine(re *core.RequestEvent) error {
	if re.Auth == nil {
		return re.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
	}

	records, err := h.store.FindForIdentity(re.Auth.Id)
	if err != nil {
		return re.JSON(http.StatusInternalServerError, map[string]string{"error": security.SanitizeErrorMessage(err)})
	}

	return re.JSON(http.StatusOK, h.toSessions(records))
}

// List returns every session, newest first.
func (h *SessionHandlers) List(re *core.RequestEvent) error {
	if re.Auth == nil {
		return re.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
	}

	records, err := h.store.FindAll()
	if err != nil {
		return re.JSON(http.StatusInternalServerError, map[string]string{"error": security.SanitizeErrorMessage(err)})
	}

	return re.JSON(http.StatusOK, h.toSessions(records))
}

func (h *SessionHandlers) toSessions(records []*core.Record) []*models.Session {
	sessions := make([]*models.Session, 0, len(records))
	for _, record := range records {
		sessions = append(sessions, h.store.ToSession(record))
	}
	return sessions
}
