// Package provider manages user-registered MCP servers: registration and
// validation, per-turn connection and tool aggregation, and the Postgres
// records behind them.
package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brioai/brio/internal/tools"
)

// TransportKind selects how a provider is reached.
type TransportKind string

const (
	TransportSSE   TransportKind = "sse"
	TransportHTTP  TransportKind = "http"
	TransportStdio TransportKind = "stdio"
)

// Valid reports whether k is a known transport kind.
func (k TransportKind) Valid() bool {
	switch k {
	case TransportSSE, TransportHTTP, TransportStdio:
		return true
	}
	return false
}

// Capabilities records what a provider was observed to support at
// registration time. Prompts and sampling are never advertised to clients
// regardless of what the server reports.
type Capabilities struct {
	Tools     bool `json:"tools"`
	Resources bool `json:"resources"`
	Prompts   bool `json:"prompts"`
	Sampling  bool `json:"sampling"`
}

// Provider is a registered MCP server. Tools is the descriptor snapshot
// taken at registration; the live set is re-read on every chat turn and
// may have drifted.
type Provider struct {
	ID           uuid.UUID          `json:"id"`
	UserID       string             `json:"userId"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Kind         TransportKind      `json:"type"`
	URL          string             `json:"url"`
	Active       bool               `json:"isActive"`
	AIGenerated  bool               `json:"aiGenerated"`
	Capabilities Capabilities       `json:"capabilities"`
	Tools        []tools.Descriptor `json:"tools,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

var (
	// ErrDuplicate is returned when the user already has a provider with
	// the same URL.
	ErrDuplicate = errors.New("provider already registered for this URL")

	// ErrNotFound is returned when no provider matches the given ID and
	// user.
	ErrNotFound = errors.New("provider not found")
)

// ValidationError reports a rejected provider registration request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnavailableError reports that a provider could not be reached or probed.
// It carries the provider label so callers can surface which server failed
// without parsing the message.
type UnavailableError struct {
	Provider string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
