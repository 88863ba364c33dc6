package chat

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/brioai/brio/internal/tools"
)

// ModelCaller is the seam between the orchestrator and the model runtime.
// The orchestrator owns the tool loop; a caller only ever answers one
// request, streaming chunks through cb when one is given.
type ModelCaller interface {
	Generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error)
}

// ModelResolver maps a caller-selected model name onto a ModelCaller. The
// empty name selects the default model.
type ModelResolver interface {
	Model(name string) (ModelCaller, bool)
}

type genkitResolver struct {
	g            *genkit.Genkit
	prefix       string
	defaultModel string
}

// NewGenkitResolver resolves model names against a genkit instance.
// Names are namespaced with prefix (for example "googleai"), so callers
// pass bare model names.
func NewGenkitResolver(g *genkit.Genkit, prefix, defaultModel string) ModelResolver {
	return &genkitResolver{g: g, prefix: prefix, defaultModel: defaultModel}
}

func (r *genkitResolver) Model(name string) (ModelCaller, bool) {
	if name == "" {
		name = r.defaultModel
	}
	m := genkit.LookupModel(r.g, r.prefix+"/"+name)
	if m == nil {
		return nil, false
	}
	return m, true
}

// toolDefinitions renders the merged toolset as model tool declarations,
// preserving set order.
func toolDefinitions(set *tools.Set) []*ai.ToolDefinition {
	descs := set.Descriptors()
	out := make([]*ai.ToolDefinition, 0, len(descs))
	for _, d := range descs {
		out = append(out, &ai.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: schemaFor(d),
		})
	}
	return out
}

func schemaFor(d tools.Descriptor) map[string]any {
	props := map[string]any{}
	for name, p := range d.Parameters {
		prop := map[string]any{}
		if p.Type != "" {
			prop["type"] = p.Type
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[name] = prop
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}
