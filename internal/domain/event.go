package domain

import "time"

// EventType identifies a progress event.
type EventType string

// Progress event kinds emitted by the dispatch loop.
const (
	EventMessageSent   EventType = "message_sent"
	EventMessageFailed EventType = "message_failed"
	EventLoginFailed   EventType = "login_failed"
	EventCompleted     EventType = "completed"
)

// Event is a progress notification for one session. Credential and Message
// are 1-based cursors, zero when not applicable.
type Event struct {
	SessionID   string    `json:"sessionId"`
	Type        EventType `json:"type"`
	Credential  int       `json:"credential,omitempty"`
	Message     int       `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	TotalSent   int       `json:"totalSent"`
	TotalFailed int       `json:"totalFailed"`
	SuccessRate string    `json:"successRate,omitempty"`
	Time        time.Time `json:"time"`
}
