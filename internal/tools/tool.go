// Package tools defines the tool model shared by the chat pipeline: a
// serializable descriptor, an executable binding, and the capability
// registry that merges local and provider tools for one turn.
package tools

import "context"

// Param describes one declared parameter of a tool. The shape is
// structural; nothing validates arguments against it at this layer.
type Param struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Descriptor is the serializable shape of a tool: safe to persist and to
// send to clients. Live callables never appear here.
type Descriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Parameters  map[string]Param `json:"parameters,omitempty"`
}

// InvokeFunc executes a tool with model-supplied arguments. The returned
// value must be JSON-serializable; it is fed back to the model verbatim.
type InvokeFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool pairs a descriptor with its executable binding.
type Tool struct {
	Descriptor Descriptor
	Invoke     InvokeFunc
}

// Name returns the tool's name.
func (t Tool) Name() string { return t.Descriptor.Name }
