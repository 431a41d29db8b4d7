// Package domain contains core domain types for the campaign engine.
package domain

import (
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle state of a campaign session.
type Status string

// Session statuses. A session starts Running and moves once to a terminal state.
const (
	StatusRunning   Status = "running"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
)

// IsTerminal returns true for Stopped and Completed.
func (s Status) IsTerminal() bool {
	return s == StatusStopped || s == StatusCompleted
}

// Session is one campaign: its configuration plus live counters.
type Session struct {
	ID          string
	Destination string
	Prefix      string
	Delay       time.Duration
	Loop        bool
	Credentials []Credential
	Messages    []string

	Status       Status
	SentCount    int
	FailedCount  int
	TotalPlanned int

	CredentialIndex int
	MessageIndex    int

	CreatedAt  time.Time
	FinishedAt time.Time
}

// NewSession builds a Running session. TotalPlanned is fixed here and never
// recomputed, even when loop mode sends more than that across passes.
func NewSession(id, destination, prefix string, delay time.Duration, loop bool, creds []Credential, messages []string) *Session {
	return &Session{
		ID:           id,
		Destination:  destination,
		Prefix:       prefix,
		Delay:        delay,
		Loop:         loop,
		Credentials:  creds,
		Messages:     messages,
		Status:       StatusRunning,
		TotalPlanned: len(creds) * len(messages),
		CreatedAt:    time.Now(),
	}
}

// ComposeText returns the text sent for the message at index i.
func (s *Session) ComposeText(i int) string {
	return s.Prefix + "\n" + s.Messages[i]
}

// Snapshot copies the reportable state of the session.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:              s.ID,
		Destination:     s.Destination,
		Status:          s.Status,
		SentCount:       s.SentCount,
		FailedCount:     s.FailedCount,
		TotalPlanned:    s.TotalPlanned,
		CredentialCount: len(s.Credentials),
		MessageCount:    len(s.Messages),
		CredentialIndex: s.CredentialIndex,
		MessageIndex:    s.MessageIndex,
		Loop:            s.Loop,
		Delay:           s.Delay,
		CreatedAt:       s.CreatedAt,
		FinishedAt:      s.FinishedAt,
	}
}

// Snapshot is an immutable point-in-time view of a session.
type Snapshot struct {
	ID              string
	Destination     string
	Status          Status
	SentCount       int
	FailedCount     int
	TotalPlanned    int
	CredentialCount int
	MessageCount    int
	CredentialIndex int
	MessageIndex    int
	Loop            bool
	Delay           time.Duration
	CreatedAt       time.Time
	FinishedAt      time.Time
}

// Progress returns sent/total as a rounded percentage, 0 when nothing is planned.
func (s Snapshot) Progress() int {
	if s.TotalPlanned <= 0 {
		return 0
	}
	return int(math.Round(float64(s.SentCount) / float64(s.TotalPlanned) * 100))
}

// SuccessRate formats sent/total with two decimals, e.g. "50.00%".
func (s Snapshot) SuccessRate() string {
	if s.TotalPlanned <= 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(s.SentCount)/float64(s.TotalPlanned)*100)
}
