package domain

import (
	"sync"
	"time"
)

// Session is the per-user state created at session initialization. It lives
// in process memory for the process lifetime; the storage descriptor travels
// with the session so every tool call runs against the database the session
// was opened for, never an ambient global.
type Session struct {
	SessionID       string `json:"session_id"`
	LeadID          string `json:"lead_id"`
	BuyerID         string `json:"buyer_id"`
	EscalationPhone string `json:"escalation_phone"`
	StorageDSN      string `json:"-"`
}

// Turn trace event kinds.
const (
	EventUserInput    = "user_input"
	EventPlannerFail  = "planner_fail"
	EventPlanInvalid  = "plan_invalid"
	EventChat         = "chat"
	EventToolCall     = "tool_call"
	EventToolResult   = "tool_result"
	EventToolResponse = "tool_response_generated"
)

// TurnLogEntry is one step in a session's turn trace.
type TurnLogEntry struct {
	Event  string    `json:"event"`
	Detail string    `json:"detail"`
	Raw    string    `json:"raw,omitempty"`
	At     time.Time `json:"at"`
}

// TurnLog is an append-only trace of controller steps for one session.
// Growth is unbounded; readers take capped windows. Appends and reads
// are synchronized so a log endpoint can read while a turn runs.
type TurnLog struct {
	mu      sync.Mutex
	entries []TurnLogEntry
}

// Append records an event with its detail.
func (l *TurnLog) Append(event, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, TurnLogEntry{Event: event, Detail: detail, At: time.Now()})
}

// AppendRaw records an event that also carries a raw payload snippet.
func (l *TurnLog) AppendRaw(event, detail, raw string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, TurnLogEntry{Event: event, Detail: detail, Raw: raw, At: time.Now()})
}

// Recent returns a copy of the last n entries.
func (l *TurnLog) Recent(n int) []TurnLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]TurnLogEntry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Len returns the number of entries recorded so far.
func (l *TurnLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
