// Package sse writes server-sent event streams.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Writer emits server-sent events on an HTTP response. Each event is
// flushed as it is written.
type Writer struct {
	w http.ResponseWriter
	f http.Flusher
}

// NewWriter prepares w for an event stream and returns the writer. It
// fails when the underlying connection cannot flush.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &Writer{w: w, f: f}, nil
}

// Event writes one named event with a JSON payload.
func (s *Writer) Event(name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return fmt.Errorf("write event %s: %w", name, err)
	}
	s.f.Flush()
	return nil
}

// Comment writes a comment line, useful as a keepalive.
func (s *Writer) Comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("write comment: %w", err)
	}
	s.f.Flush()
	return nil
}
