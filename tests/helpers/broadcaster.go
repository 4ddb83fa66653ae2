package helpers

import (
	"sync"

	"github.com/oculab/gazetrack/internal/models"
	"github.com/oculab/gazetrack/internal/services"
)

// RoomMessage is one captured room-scoped broadcast
type RoomMessage struct {
	SessionID string
	Exclude   *services.Client
	Message   *models.WSMessage
}

// DirectMessage is one captured identity-scoped delivery
type DirectMessage struct {
	Client  *services.Client
	Message *models.WSMessage
}

// RecordingBroadcaster captures hub fan-out without real sockets. It
// satisfies the broadcaster interfaces the router and notifier consume.
type RecordingBroadcaster struct {
	mu       sync.Mutex
	joined   map[string][]*services.Client
	room     []RoomMessage
	direct   []DirectMessage
}

func NewRecordingBroadcaster() *RecordingBroadcaster {
	return &RecordingBroadcaster{
		joined: make(map[string][]*services.Client),
	}
}

func (b *RecordingBroadcaster) Join(sessionID string, c *services.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.joined[sessionID] = append(b.joined[sessionID], c)
}

func (b *RecordingBroadcaster) ToSession(sessionID string, message *models.WSMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room = append(b.room, RoomMessage{SessionID: sessionID, Message: message})
}

func (b *RecordingBroadcaster) ToSessionExcept(sessionID string, exclude *services.Client, message *models.WSMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room = append(b.room, RoomMessage{SessionID: sessionID, Exclude: exclude, Message: message})
}

func (b *RecordingBroadcaster) ToClient(c *services.Client, message *models.WSMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.direct = append(b.direct, DirectMessage{Client: c, Message: message})
}

// Joined returns the clients registered into a session room
func (b *RecordingBroadcaster) Joined(sessionID string) []*services.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*services.Client{}, b.joined[sessionID]...)
}

// RoomMessages returns all captured room broadcasts
func (b *RecordingBroadcaster) RoomMessages() []RoomMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RoomMessage{}, b.room...)
}

// RoomMessagesOfType filters captured room broadcasts by message type
func (b *RecordingBroadcaster) RoomMessagesOfType(msgType string) []RoomMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []RoomMessage
	for _, m := range b.room {
		if m.Message.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// DirectMessages returns all captured identity-scoped deliveries
func (b *RecordingBroadcaster) DirectMessages() []DirectMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DirectMessage{}, b.direct...)
}

// DirectMessagesOfType filters captured direct deliveries by message type
func (b *RecordingBroadcaster) DirectMessagesOfType(msgType string) []DirectMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []DirectMessage
	for _, m := range b.direct {
		if m.Message.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// Clear drops all captured messages
func (b *RecordingBroadcaster) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room = nil
	b.direct = nil
}
