package call

import "time"

// Actor identifies who produced a conversation turn.
type Actor string

const (
	ActorUser      Actor = "user"
	ActorAssistant Actor = "assistant"
	ActorSystem    Actor = "system"
	ActorDTMF      Actor = "dtmf"
	ActorTool      Actor = "tool"
)

// TurnType classifies a conversation turn.
type TurnType string

const (
	TurnMessage            TurnType = "message"
	TurnFunctionCall       TurnType = "function_call"
	TurnFunctionCallOutput TurnType = "function_call_output"
)

// Turn is one entry in a call's conversation history.
type Turn struct {
	Actor     Actor     `json:"actor"`
	Type      TurnType  `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the append-only turn log of one call. It lives in memory
// for the duration of the call and is discarded on cleanup; the operator
// control plane may take a snapshot before that.
//
// All mutation happens on the call mailbox; Snapshot copies so the hub can
// serialize outside the call goroutine.
type Conversation struct {
	turns []Turn
}

// Append adds a turn stamped at t.
func (c *Conversation) Append(actor Actor, typ TurnType, content string, t time.Time) {
	c.turns = append(c.turns, Turn{Actor: actor, Type: typ, Content: content, Timestamp: t})
}

// Snapshot returns a copy of the history so far.
func (c *Conversation) Snapshot() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int { return len(c.turns) }
