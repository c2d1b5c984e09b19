// SPDX-FileCopyrightText: 2026 The camrelay-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import "time"

// EventType names one observable state transition of the Engine.
type EventType string

const (
	EventAgentRegistered EventType = "agent-registered"
	EventAgentExpired    EventType = "agent-expired"
	EventRoundStarted    EventType = "round-started"
	EventRoundReplaced   EventType = "round-replaced"
	EventReplyForwarded  EventType = "reply-forwarded"
	EventRoundCompleted  EventType = "round-completed"
	EventRoundExpired    EventType = "round-expired"
)

// Event is one Engine state transition, as surfaced to the Monitor. Events
// are informational; dropping them has no effect on the Engine.
type Event struct {
	Type     EventType `json:"type"`
	Time     time.Time `json:"time"`
	AgentId  string    `json:"agent_id,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	Expected int       `json:"expected,omitempty"`
	Received int       `json:"received,omitempty"`
}

// RoundSnapshot is the Monitor's read-only view on the current Round.
type RoundSnapshot struct {
	Active    bool      `json:"active"`
	Kind      string    `json:"kind,omitempty"`
	Requester string    `json:"requester,omitempty"`
	Expected  int       `json:"expected"`
	Received  int       `json:"received"`
	Deadline  time.Time `json:"deadline,omitempty"`
}
