package services

import (
	"encoding/json"
	"log"

	"github.com/pocketbase/pocketbase/core"

	"github.com/oculab/gazetrack/internal/models"
	"github.com/oculab/gazetrack/internal/security"
)

// sessionBroadcaster is the slice of the hub the router needs.
type sessionBroadcaster interface {
	Join(sessionID string, c *Client)
	ToSession(sessionID string, message *models.WSMessage)
	ToSessionExcept(sessionID string, exclude *Client, message *models.WSMessage)
	ToClient(c *Client, message *models.WSMessage)
}

// Router is the session event state machine. It validates inbound events,
// mutates room state and fans derived events out to the session room. Gaze
// samples stay purely in memory until finalize, so the per-sample cost never
// includes a store write.
type Router struct {
	store   *SessionStore
	rooms   *RoomStore
	hub     sessionBroadcaster
	metrics *Metrics
}

func NewRouter(store *SessionStore, rooms *RoomStore, hub sessionBroadcaster, metrics *Metrics) *Router {
	return &Router{
		store:   store,
		rooms:   rooms,
		hub:     hub,
		metrics: metrics,
	}
}

// Route dispatches one inbound frame from a connection.
func (r *Router) Route(cm *ClientMessage) {
	var msg models.WSMessage
	if err := json.Unmarshal(cm.Message, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	if !security.IsValidMessageType(msg.Type) {
		r.sendError(cm.Client, "unknown event type")
		return
	}
	if msg.SessionID == "" {
		r.sendError(cm.Client, "sessionId is required")
		return
	}
	if err := security.ValidateMessagePayload(msg.Type, msg.Payload); err != nil {
		r.sendError(cm.Client, err.Error())
		return
	}

	switch msg.Type {
	case models.MsgTypeJoinSession:
		r.handleJoinSession(cm.Client, msg.SessionID)
	case models.MsgTypeStartCalibration:
		r.handleStartCalibration(cm.Client, msg.SessionID)
	case models.MsgTypeCalibrationDone:
		r.handleCalibrationDone(cm.Client, msg.SessionID)
	case models.MsgTypeSendImage:
		r.handleSendImage(cm.Client, &msg)
	case models.MsgTypeGazeData:
		r.handleGazeData(cm.Client, &msg)
	case models.MsgTypeEndSession:
		r.handleEndSession(cm.Client, msg.SessionID)
	}
}

// handleJoinSession is deliberately unconditional: joining twice, or joining
// a session whose room already exists, is a no-op.
func (r *Router) handleJoinSession(c *Client, sessionID string) {
	r.rooms.Ensure(sessionID)
	r.hub.Join(sessionID, c)
}

func (r *Router) handleStartCalibration(c *Client, sessionID string) {
	if _, ok := r.requireAdmin(c, sessionID); !ok {
		return
	}

	log.Printf("Starting calibration for session: %s", sessionID)
	r.hub.ToSession(sessionID, &models.WSMessage{
		Type:      models.MsgTypeInitCalibration,
		SessionID: sessionID,
	})
}

func (r *Router) handleCalibrationDone(c *Client, sessionID string) {
	r.rooms.MarkCalibrated(sessionID, c.Identity())

	r.hub.ToSession(sessionID, &models.WSMessage{
		Type:      models.MsgTypeUserCalibrated,
		SessionID: sessionID,
		Payload:   map[string]string{"userId": c.Identity()},
	})
}

func (r *Router) handleSendImage(c *Client, msg *models.WSMessage) {
	if _, ok := r.requireAdmin(c, msg.SessionID); !ok {
		return
	}

	imageURL := payloadString(msg.Payload, "imageUrl")
	log.Printf("Sending image to session: %s (payload %d bytes)", msg.SessionID, len(imageURL))

	r.rooms.SetCurrentImage(msg.SessionID, imageURL)
	r.hub.ToSession(msg.SessionID, &models.WSMessage{
		Type:      models.MsgTypeNewImage,
		SessionID: msg.SessionID,
		Payload:   map[string]string{"imageUrl": imageURL},
	})
}

func (r *Router) handleGazeData(c *Client, msg *models.WSMessage) {
	x, _ := payloadFloat(msg.Payload, "x")
	y, _ := payloadFloat(msg.Payload, "y")

	if err := security.ValidateGazePoint(x, y); err != nil {
		// Out-of-viewport samples are dropped, not surfaced.
		r.metrics.IncrementSamplesDropped()
		return
	}

	if r.rooms.RecordSample(msg.SessionID, x, y, c.Identity()) {
		r.metrics.IncrementSamplesRecorded()
	} else {
		// No current stimulus, or the room is gone; lossy by design.
		r.metrics.IncrementSamplesDropped()
	}

	// Peers see the live sample either way; the sender gets no echo.
	r.hub.ToSessionExcept(msg.SessionID, c, &models.WSMessage{
		Type:      models.MsgTypeReceiveGaze,
		SessionID: msg.SessionID,
		Payload: map[string]any{
			"x":      x,
			"y":      y,
			"userId": c.Identity(),
		},
	})
}

func (r *Router) handleEndSession(c *Client, sessionID string) {
	record, ok := r.requireAdmin(c, sessionID)
	if !ok {
		return
	}

	// Duplicate termination: nothing left to persist, re-emit the final
	// record so a retrying admin still converges.
	if record.GetString("status") == string(models.StatusCompleted) {
		r.hub.ToClient(c, &models.WSMessage{
			Type:      models.MsgTypeSessionEnded,
			SessionID: sessionID,
			Payload:   r.store.ToSession(record),
		})
		return
	}

	log.Printf("Ending session: %s", sessionID)
	results := r.rooms.SnapshotAndClear(sessionID)

	updated, err := r.store.FinalizeSession(sessionID, results)
	if err != nil {
		// Persist-then-clear ordering: the snapshot goes back into the room
		// so a retried end_session still carries the collected samples.
		r.rooms.Restore(sessionID, results)
		log.Printf("Failed to finalize session %s: %v", sessionID, err)
		r.sendError(c, "failed to persist session results, try ending the session again")
		return
	}

	r.metrics.IncrementSessionsFinalized()
	r.hub.ToSession(sessionID, &models.WSMessage{
		Type:      models.MsgTypeSessionEnded,
		SessionID: sessionID,
		Payload:   r.store.ToSession(updated),
	})
}

// requireAdmin loads the session and rejects the event unless the sender is
// its admin. start_calibration, send_image and end_session are admin-only.
func (r *Router) requireAdmin(c *Client, sessionID string) (*core.Record, bool) {
	record, err := r.store.GetSession(sessionID)
	if err != nil {
		r.sendError(c, "session not found")
		return nil, false
	}
	if record.GetString("admin") != c.Identity() {
		r.sendError(c, "only the session admin can do that")
		return nil, false
	}
	return record, true
}

func (r *Router) sendError(c *Client, message string) {
	r.hub.ToClient(c, &models.WSMessage{
		Type:    models.MsgTypeError,
		Payload: map[string]string{"message": message},
	})
}

func payloadString(payload any, key string) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func payloadFloat(payload any, key string) (float64, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0, false
	}
	f, ok := m[key].(float64)
	return f, ok
}
