package services

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/oculab/gazetrack/internal/config"
	"github.com/oculab/gazetrack/internal/models"
	"github.com/oculab/gazetrack/internal/security"
)

// Hub tracks which connections joined which session room and fans events out
// to them. Broadcasts and inbound frames are processed one at a time on the
// hub goroutine. Membership changes lock the room map directly instead of
// going through the queue: the event handler runs on the hub goroutine
// itself, so handing it a membership message would wait on the one consumer
// that is currently busy.
type Hub struct {
	// Session room connections: sessionId -> set of clients
	sessions map[string]map[*Client]bool

	// Broadcast message to a session room
	broadcast chan *broadcastMessage

	// Inbound frames forwarded by client read pumps
	inbound chan *ClientMessage

	handler func(*ClientMessage)
	limiter *security.RateLimiter
	metrics *Metrics
	mu      sync.RWMutex
}

type broadcastMessage struct {
	SessionID string
	Exclude   *Client
	Message   *models.WSMessage
}

func NewHub(metrics *Metrics, limits *config.Limits) *Hub {
	if limits == nil {
		limits = config.DefaultLimits()
	}
	return &Hub{
		sessions:  make(map[string]map[*Client]bool),
		broadcast: make(chan *broadcastMessage, config.HubBroadcastBufferSize),
		inbound:   make(chan *ClientMessage, config.HubBroadcastBufferSize),
		limiter:   security.NewRateLimiter(limits.MaxMessagesPerSecond, config.RateLimitWindow),
		metrics:   metrics,
	}
}

// OnMessage sets the dispatch callback for inbound client frames.
func (h *Hub) OnMessage(fn func(*ClientMessage)) {
	h.handler = fn
}

func (h *Hub) Run() {
	for {
		select {
		case msg := <-h.broadcast:
			h.fanOut(msg)

		case cm := <-h.inbound:
			if h.handler != nil {
				h.handler(cm)
			}
		}
	}
}

// Join registers a client into a session room. Safe to call from the event
// handler running on the hub goroutine.
func (h *Hub) Join(sessionID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*Client]bool)
	}
	h.sessions[sessionID][c] = true

	log.Printf("socket joined session room: session=%s identity=%s (%d in room)",
		sessionID, c.Identity(), len(h.sessions[sessionID]))
}

// Leave removes a disconnected client from all rooms.
func (h *Hub) Leave(c *Client) {
	h.dropClient(c)
}

// dropClient removes the connection from every room it joined. Rooms survive
// losing all their sockets; only the broadcast scope is cleaned up here.
func (h *Hub) dropClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID, clients := range h.sessions {
		if clients[c] {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.sessions, sessionID)
			}
		}
	}
}

func (h *Hub) fanOut(msg *broadcastMessage) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.sessions[msg.SessionID]))
	for c := range h.sessions[msg.SessionID] {
		if c != msg.Exclude {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(msg.Message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	for _, c := range targets {
		if c.Send(data) {
			h.metrics.IncrementMessagesSent()
		}
	}
}

// enqueueBroadcast never blocks. The router broadcasts from the hub goroutine
// itself, so waiting on a full buffer would stall the only consumer and
// freeze the coordinator. Overflow drops the frame and counts it, the same
// policy applied to a slow client's send buffer.
func (h *Hub) enqueueBroadcast(msg *broadcastMessage) {
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("Broadcast buffer full, dropping %s for session %s",
			msg.Message.Type, msg.SessionID)
		h.metrics.IncrementBroadcastErrors()
	}
}

// ToSession broadcasts a message to every socket in the session's room.
func (h *Hub) ToSession(sessionID string, message *models.WSMessage) {
	h.enqueueBroadcast(&broadcastMessage{
		SessionID: sessionID,
		Message:   message,
	})
}

// ToSessionExcept broadcasts to the session's room excluding one sender.
// Used for gaze samples, which peers receive but the producer does not.
func (h *Hub) ToSessionExcept(sessionID string, exclude *Client, message *models.WSMessage) {
	h.enqueueBroadcast(&broadcastMessage{
		SessionID: sessionID,
		Exclude:   exclude,
		Message:   message,
	})
}

// ToClient delivers a message on a single identity's private channel.
func (h *Hub) ToClient(c *Client, message *models.WSMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}
	if c.Send(data) {
		h.metrics.IncrementMessagesSent()
	}
}

// Dispatch queues an inbound frame for processing on the hub goroutine.
func (h *Hub) Dispatch(cm *ClientMessage) {
	h.inbound <- cm
}

// GetMetrics returns a snapshot of the hub's metrics.
func (h *Hub) GetMetrics() MetricsSnapshot {
	return h.metrics.Snapshot()
}
