package chat

import (
	"context"
	"strings"

	"github.com/brioai/brio/internal/log"
)

// GenerateFunc produces a completion for a prompt.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

const maxTitleRunes = 80

// Titler names a chat from its first user message. When the model is
// unavailable the message text itself is truncated into a title, so
// Title never fails.
type Titler struct {
	generate GenerateFunc
	logger   log.Logger
}

// NewTitler creates a titler. generate may be nil.
func NewTitler(generate GenerateFunc, logger log.Logger) *Titler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Titler{generate: generate, logger: logger}
}

// Title returns a short display title for a chat opened with userText.
func (t *Titler) Title(ctx context.Context, userText string) string {
	if t == nil || t.generate == nil {
		return truncateTitle(userText)
	}
	prompt := "Generate a short title summarizing this chat message. " +
		"At most 80 characters, no quotes, no colons. Respond with the title only.\n\n" +
		"Message: " + userText
	out, err := t.generate(ctx, prompt)
	if err != nil {
		t.logger.Warn("title generation failed, using message text", "error", err)
		return truncateTitle(userText)
	}
	title := strings.Trim(strings.TrimSpace(out), `"'`)
	title = strings.TrimSuffix(title, ".")
	if title == "" {
		return truncateTitle(userText)
	}
	return truncateTitle(title)
}

func truncateTitle(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxTitleRunes {
		return s
	}
	return string(runes[:maxTitleRunes])
}
