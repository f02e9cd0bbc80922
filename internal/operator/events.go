// Package operator implements the operator control plane: a process-wide
// registry of live calls and a WebSocket hub that streams every call's event
// feed to connected consoles and accepts per-call queries and configuration
// updates.
package operator

import (
	"time"

	"github.com/arivox/arivox/internal/config"
)

// Control-plane envelope types. Together with the per-call event types in
// internal/call they form the closed server→client type set.
const (
	TypeActiveCallsList     = "active_calls_list"
	TypeSessionCreated      = "session.created"
	TypeConfigUpdateAck     = "config_update_ack"
	TypeConversationHistory = "conversation_history"
	TypeError               = "error"
)

// Client→server message types.
const (
	TypeGetCallConfiguration   = "get_call_configuration"
	TypeGetConversationHistory = "get_conversation_history"
	TypeSessionUpdate          = "session.update"
)

// Envelope is one server→client message. CallID is empty for process-wide
// messages like the active-calls list.
type Envelope struct {
	Type      string         `json:"type"`
	CallID    string         `json:"callId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ClientMessage is one client→server message. Session carries the partial
// configuration of a session.update; it is nil for the query types.
type ClientMessage struct {
	Type    string                  `json:"type"`
	CallID  string                  `json:"callId"`
	Session *config.CallConfigPatch `json:"session,omitempty"`
}

// CallSummary is one entry of the active-calls list.
type CallSummary struct {
	CallID   string `json:"callId"`
	CallerID string `json:"callerId,omitempty"`
	State    string `json:"state"`
}
