package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/brioai/brio/internal/log"
	"github.com/brioai/brio/internal/tools"
)

// GenerateFunc produces a completion for a prompt. It exists so the
// describer can be exercised without a live model.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// GenkitGenerator adapts a genkit instance into a GenerateFunc.
func GenkitGenerator(g *genkit.Genkit, model string) GenerateFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		resp, err := genkit.Generate(ctx, g,
			ai.WithModelName(model),
			ai.WithPrompt(prompt),
		)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
}

// Describer names and describes a newly registered provider from what the
// probe observed. Unnamed servers get a model-generated pair; when the
// model is unavailable or returns garbage a templated fallback is used
// instead, so Describe never fails.
type Describer struct {
	generate GenerateFunc
	logger   log.Logger
}

// NewDescriber creates a describer. generate may be nil, in which case
// only the fallback path is used.
func NewDescriber(generate GenerateFunc, logger log.Logger) *Describer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Describer{generate: generate, logger: logger}
}

type description struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Describe produces a display name and a one-line description for a
// provider at rawURL exposing the given tools. A server-reported name is
// authoritative: the model is consulted only when the server did not name
// itself. synthesized reports whether the name had to be made up.
func (d *Describer) Describe(ctx context.Context, rawURL string, info *mcp.Implementation, toolset []tools.Descriptor) (name, desc string, synthesized bool) {
	if info != nil && info.Name != "" {
		name, desc = fallbackDescription(rawURL, info, len(toolset))
		return name, desc, false
	}
	if d.generate != nil {
		if got, err := d.fromModel(ctx, rawURL, toolset); err == nil {
			return got.Name, got.Description, true
		} else {
			d.logger.Warn("provider description generation failed, using fallback", "url", rawURL, "error", err)
		}
	}
	name, desc = fallbackDescription(rawURL, info, len(toolset))
	return name, desc, true
}

func (d *Describer) fromModel(ctx context.Context, rawURL string, toolset []tools.Descriptor) (description, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are naming an MCP tool server for a chat application.\n")
	fmt.Fprintf(&b, "Server URL: %s\n", rawURL)
	if len(toolset) > 0 {
		b.WriteString("It exposes these tools:\n")
		for _, t := range toolset {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
	} else {
		b.WriteString("It exposes no tools yet.\n")
	}
	b.WriteString("Respond with only a JSON object of the form ")
	b.WriteString(`{"name": "Short Name", "description": "One sentence describing what it does."}`)

	raw, err := d.generate(ctx, b.String())
	if err != nil {
		return description{}, err
	}
	var got description
	if err := json.Unmarshal([]byte(stripFences(raw)), &got); err != nil {
		return description{}, fmt.Errorf("parse model output: %w", err)
	}
	if got.Name == "" || got.Description == "" {
		return description{}, fmt.Errorf("model output missing fields")
	}
	return got, nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func fallbackDescription(rawURL string, info *mcp.Implementation, toolCount int) (string, string) {
	name := ""
	if info != nil {
		name = info.Name
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	if name == "" {
		name = host
	}
	return name, fmt.Sprintf("MCP server at %s with %d tools available", host, toolCount)
}
