package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// maxFetchBody bounds how much of a page is read before extraction.
const maxFetchBody = 10 << 20

// maxArticleRunes bounds the extracted text returned to the model.
const maxArticleRunes = 20000

// FetchTool returns the built-in page-fetching tool. It downloads the page
// at the given URL and extracts the readable article text.
func FetchTool(client *http.Client) Tool {
	if client == nil {
		client = http.DefaultClient
	}
	return Tool{
		Descriptor: Descriptor{
			Name:        "fetch_url",
			Description: "Fetch a web page and return its readable text content",
			Parameters: map[string]Param{
				"url": {Type: "string", Description: "The URL to fetch"},
			},
		},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			raw, ok := args["url"].(string)
			if !ok || raw == "" {
				return nil, fmt.Errorf("missing argument %q", "url")
			}
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return nil, fmt.Errorf("invalid URL %q", raw)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
			if err != nil {
				return nil, fmt.Errorf("build fetch request: %w", err)
			}
			req.Header.Set("User-Agent", "brio/1.0")
			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("fetch %s: %w", u, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
			}
			article, err := readability.FromReader(io.LimitReader(resp.Body, maxFetchBody), u)
			if err != nil {
				return nil, fmt.Errorf("extract article from %s: %w", u, err)
			}
			text := strings.TrimSpace(article.TextContent)
			if runes := []rune(text); len(runes) > maxArticleRunes {
				text = string(runes[:maxArticleRunes]) + "\n[truncated]"
			}
			return map[string]any{
				"title":   article.Title,
				"url":     u.String(),
				"content": text,
			}, nil
		},
	}
}

// LocalTools returns the fixed local toolset registered on every turn.
func LocalTools(client *http.Client) []Tool {
	return []Tool{
		WeatherTool(client),
		FetchTool(client),
	}
}
