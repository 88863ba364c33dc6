// Package chat holds the conversation model and the turn orchestrator: it
// persists chats and messages, aggregates the toolset for each turn, and
// drives the model through a bounded tool-calling loop while streaming
// events to the caller.
package chat

import (
	"errors"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Chat is one conversation.
type Chat struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attachment is a file reference carried alongside a user message. The
// content itself lives elsewhere; only the pointer is persisted.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
}

// Message is one persisted turn entry. Parts uses the model content
// representation directly so tool calls and results survive round-trips
// through storage unchanged.
type Message struct {
	ID          uuid.UUID    `json:"id"`
	ChatID      uuid.UUID    `json:"chatId"`
	Role        Role         `json:"role"`
	Parts       []*ai.Part   `json:"parts"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Text returns the concatenated text parts of the message.
func (m *Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.IsText() {
			out += p.Text
		}
	}
	return out
}

var (
	// ErrEmptyMessage is returned when a turn is requested with no user
	// text.
	ErrEmptyMessage = errors.New("message must contain text")

	// ErrChatNotFound is returned when a chat does not exist or belongs
	// to another user.
	ErrChatNotFound = errors.New("chat not found")

	// ErrRateLimited is returned when the caller exceeded the turn rate.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnknownModel is returned when a turn selects a model that is not
	// registered.
	ErrUnknownModel = errors.New("unknown model")
)
