package tools

import (
	"github.com/brioai/brio/internal/log"
)

// Set is an insertion-ordered collection of tools keyed by name. Adding a
// tool whose name is already present replaces the binding but keeps the
// original position, so iteration order is first-insertion order and the
// last writer for a given name wins.
type Set struct {
	order  []string
	byName map[string]Tool
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{byName: make(map[string]Tool)}
}

// Add inserts or replaces a tool by name.
func (s *Set) Add(t Tool) {
	name := t.Name()
	if _, ok := s.byName[name]; !ok {
		s.order = append(s.order, name)
	}
	s.byName[name] = t
}

// Get returns the tool bound to name.
func (s *Set) Get(name string) (Tool, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Len returns the number of distinct tools.
func (s *Set) Len() int { return len(s.order) }

// Names returns tool names in insertion order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Tools returns the tools in insertion order.
func (s *Set) Tools() []Tool {
	out := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}

// Descriptors returns the descriptors in insertion order.
func (s *Set) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name].Descriptor)
	}
	return out
}

// Registry holds the fixed local toolset and produces the capability set
// for a turn by folding provider tools over it.
type Registry struct {
	local  []Tool
	logger log.Logger
}

// NewRegistry creates a registry over the given local tools. The slice
// order is the registration order and is preserved in every merge.
func NewRegistry(local []Tool, logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{local: local, logger: logger}
}

// Local returns the fixed local toolset.
func (r *Registry) Local() []Tool { return r.local }

// Capabilities merges the local toolset with remote tools. Local tools are
// registered first, then remote tools in the order given, so a remote tool
// sharing a name with a local one shadows it, and among remote collisions
// the later entry wins. With no remote tools the result is exactly the
// local set.
func (r *Registry) Capabilities(remote []Tool) *Set {
	set := NewSet()
	for _, t := range r.local {
		set.Add(t)
	}
	for _, t := range remote {
		if _, ok := set.Get(t.Name()); ok {
			r.logger.Debug("tool name collision, later registration wins", "tool", t.Name())
		}
		set.Add(t)
	}
	return set
}
