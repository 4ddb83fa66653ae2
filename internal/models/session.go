package models

import (
	"time"
)

type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// Invitee statuses. "joined" exists in the schema but nothing writes it yet;
// invitees stay "invited" for their whole lifetime.
const (
	InviteeInvited = "invited"
	InviteeJoined  = "joined"
)

type Invitee struct {
	User   string `json:"user"`
	Status string `json:"status"`
}

// GazePoint is one reported gaze coordinate. X and Y are percentages of the
// participant's viewport (0-100).
type GazePoint struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
}

// ImageResult holds all samples collected while one stimulus was current.
type ImageResult struct {
	ImageURL   string      `json:"imageUrl"`
	GazePoints []GazePoint `json:"gazePoints"`
}

// Session is a data transfer object for broadcast and REST responses.
// All persistent state is managed in the database via SessionStore.
type Session struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Admin    string        `json:"admin"`
	Invitees []Invitee     `json:"invitees"`
	Status   SessionStatus `json:"status"`
	Results  []ImageResult `json:"results,omitempty"`
	Created  time.Time     `json:"created"`
}
