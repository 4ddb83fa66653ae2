package security

import (
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/oculab/gazetrack/internal/models"
)

// WebSocket message type validation
var validMessageTypes = map[string]bool{
	models.MsgTypeJoinSession:      true,
	models.MsgTypeStartCalibration: true,
	models.MsgTypeCalibrationDone:  true,
	models.MsgTypeSendImage:        true,
	models.MsgTypeGazeData:         true,
	models.MsgTypeEndSession:       true,
}

// IsValidMessageType checks if an inbound WebSocket message type is valid
func IsValidMessageType(msgType string) bool {
	return validMessageTypes[msgType]
}

// RateLimiter provides per-connection rate limiting for WebSocket messages
type RateLimiter struct {
	mu        sync.Mutex
	tokens    map[*websocket.Conn]int
	lastReset time.Time
	maxTokens int
	window    time.Duration
}

// NewRateLimiter creates a new rate limiter.
// maxTokens: maximum messages per window
// window: time window for rate limiting (e.g., 1 second)
func NewRateLimiter(maxTokens int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:    make(map[*websocket.Conn]int),
		lastReset: time.Now(),
		maxTokens: maxTokens,
		window:    window,
	}
}

// Allow checks if a connection is allowed to send a message.
// Returns true if allowed, false if rate limit exceeded.
func (rl *RateLimiter) Allow(conn *websocket.Conn) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastReset) > rl.window {
		rl.tokens = make(map[*websocket.Conn]int)
		rl.lastReset = time.Now()
	}

	rl.tokens[conn]++
	return rl.tokens[conn] <= rl.maxTokens
}

// Remove cleans up rate limiter state for a disconnected connection
func (rl *RateLimiter) Remove(conn *websocket.Conn) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.tokens, conn)
}

// OriginValidator validates WebSocket connection origins
type OriginValidator struct {
	allowedPatterns []string
}

// NewOriginValidator creates a new origin validator
func NewOriginValidator(patterns []string) *OriginValidator {
	return &OriginValidator{
		allowedPatterns: patterns,
	}
}

// GetAcceptOptions returns websocket.AcceptOptions with origin patterns
func (ov *OriginValidator) GetAcceptOptions() *websocket.AcceptOptions {
	return &websocket.AcceptOptions{
		OriginPatterns: ov.allowedPatterns,
	}
}

// ValidateMessagePayload validates WebSocket message payload structure
func ValidateMessagePayload(msgType string, payload any) error {
	switch msgType {
	case models.MsgTypeSendImage:
		payloadMap, ok := payload.(map[string]any)
		if !ok {
			return fmt.Errorf("invalid payload format")
		}
		if s, ok := payloadMap["imageUrl"].(string); !ok || s == "" {
			return fmt.Errorf("send_image payload must have a non-empty string 'imageUrl' field")
		}

	case models.MsgTypeGazeData:
		payloadMap, ok := payload.(map[string]any)
		if !ok {
			return fmt.Errorf("invalid payload format")
		}
		if _, ok := payloadMap["x"].(float64); !ok {
			return fmt.Errorf("gaze_data payload must have a numeric 'x' field")
		}
		if _, ok := payloadMap["y"].(float64); !ok {
			return fmt.Errorf("gaze_data payload must have a numeric 'y' field")
		}

	case models.MsgTypeJoinSession, models.MsgTypeStartCalibration,
		models.MsgTypeCalibrationDone, models.MsgTypeEndSession:
		// These message types carry everything in the envelope.
		// Empty payload is acceptable.
	}

	return nil
}
