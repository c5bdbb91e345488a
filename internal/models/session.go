// Package models defines session structures for FixPipe guided flows.
package models

import "time"

// Session tracks a conversation's progress through an active flow. A session
// exists only between StartFlow and flow termination (completion, terminal
// script failure, or TTL eviction).
type Session struct {
	ID        string            `json:"id"`
	Flow      FlowDefinition    `json:"-"`
	StepIndex int               `json:"step_index"`
	Answers   map[string]string `json:"answers"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// CurrentStep returns the step the session is waiting on.
func (s *Session) CurrentStep() Step {
	return s.Flow[s.StepIndex]
}

// IsTerminal reports whether the session is on its final step.
func (s *Session) IsTerminal() bool {
	return s.StepIndex+1 >= len(s.Flow)
}

// SessionSnapshot is a read-only view of a session for the admin API.
type SessionSnapshot struct {
	ID        string    `json:"id"`
	StepIndex int       `json:"step_index"`
	StepCount int       `json:"step_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
