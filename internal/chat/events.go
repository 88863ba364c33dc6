package chat

import "github.com/brioai/brio/internal/provider"

// EventType discriminates stream events.
type EventType string

const (
	// EventProviders reports the per-provider aggregation outcome at the
	// start of a turn.
	EventProviders EventType = "providers"
	// EventTextDelta carries one chunk of assistant text.
	EventTextDelta EventType = "text-delta"
	// EventReasoningDelta carries one chunk of model reasoning.
	EventReasoningDelta EventType = "reasoning-delta"
	// EventToolCall announces a tool invocation the model requested.
	EventToolCall EventType = "tool-call"
	// EventToolResult carries the outcome of a tool invocation.
	EventToolResult EventType = "tool-result"
	// EventStep marks the end of one model step.
	EventStep EventType = "step"
	// EventDone terminates a successful stream.
	EventDone EventType = "done"
	// EventError terminates a failed stream.
	EventError EventType = "error"
)

// Event is one item on the turn stream. Exactly one producer writes
// events, and the stream always ends with EventDone or EventError.
type Event struct {
	Type      EventType         `json:"type"`
	Text      string            `json:"text,omitempty"`
	ToolName  string            `json:"toolName,omitempty"`
	Args      map[string]any    `json:"args,omitempty"`
	Result    any               `json:"result,omitempty"`
	IsError   bool              `json:"isError,omitempty"`
	Step      int               `json:"step,omitempty"`
	ChatID    string            `json:"chatId,omitempty"`
	Providers []provider.Status `json:"providers,omitempty"`
	Error     string            `json:"error,omitempty"`
}
