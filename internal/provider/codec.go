package provider

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/brioai/brio/internal/tools"
)

// DescriptorFromMCP converts an MCP tool declaration into the internal
// descriptor shape. The conversion is lossy on purpose: only top-level
// schema properties survive, each reduced to a type and a description.
// Nested schemas, required markers, and format constraints are dropped.
func DescriptorFromMCP(t *mcp.Tool) tools.Descriptor {
	return tools.Descriptor{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  schemaParams(t.InputSchema),
	}
}

// schemaParams extracts top-level properties from a tool input schema.
// The wire field is untyped: locally constructed tools carry a
// *jsonschema.Schema, while a remote listing unmarshals into plain maps.
func schemaParams(schema any) map[string]tools.Param {
	switch s := schema.(type) {
	case *jsonschema.Schema:
		if s == nil || len(s.Properties) == 0 {
			return nil
		}
		out := make(map[string]tools.Param, len(s.Properties))
		for name, prop := range s.Properties {
			if prop == nil {
				out[name] = tools.Param{}
				continue
			}
			out[name] = tools.Param{Type: prop.Type, Description: prop.Description}
		}
		return out
	case map[string]any:
		props, _ := s["properties"].(map[string]any)
		if len(props) == 0 {
			return nil
		}
		out := make(map[string]tools.Param, len(props))
		for name, raw := range props {
			prop, _ := raw.(map[string]any)
			typ, _ := prop["type"].(string)
			desc, _ := prop["description"].(string)
			out[name] = tools.Param{Type: typ, Description: desc}
		}
		return out
	default:
		return nil
	}
}

// DescriptorsFromMCP converts a tool listing, preserving order.
func DescriptorsFromMCP(ts []*mcp.Tool) []tools.Descriptor {
	if len(ts) == 0 {
		return nil
	}
	out := make([]tools.Descriptor, 0, len(ts))
	for _, t := range ts {
		out = append(out, DescriptorFromMCP(t))
	}
	return out
}
