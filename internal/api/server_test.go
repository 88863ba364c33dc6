package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/brioai/brio/internal/chat"
	"github.com/brioai/brio/internal/log"
	"github.com/brioai/brio/internal/provider"
)

type fakeTurns struct {
	events []chat.Event
	err    error
	got    chat.TurnRequest
}

func (f *fakeTurns) Stream(ctx context.Context, req chat.TurnRequest) (<-chan chat.Event, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan chat.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type fakeChats struct {
	deleted []uuid.UUID
	err     error
}

func (f *fakeChats) DeleteChat(ctx context.Context, id uuid.UUID, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeProviders struct {
	provs []provider.Provider
	err   error
}

func (f *fakeProviders) Validate(ctx context.Context, kind provider.TransportKind, url string) (*provider.ValidationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.ValidationResult{Capabilities: provider.Capabilities{Tools: true}}, nil
}

func (f *fakeProviders) Register(ctx context.Context, userID string, kind provider.TransportKind, url, name string) (*provider.Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Provider{ID: uuid.New(), UserID: userID, Name: name, URL: url, Kind: kind, Active: true}, nil
}

func (f *fakeProviders) List(ctx context.Context, userID string) ([]provider.Provider, error) {
	return f.provs, f.err
}

func (f *fakeProviders) Toggle(ctx context.Context, id uuid.UUID, userID string) (*provider.Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Provider{ID: id, UserID: userID, Active: false}, nil
}

func (f *fakeProviders) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	return f.err
}

func newTestServer(turns TurnStreamer, chats ChatStore, provs ProviderService) *Server {
	return NewServer(Config{
		Addr:      ":0",
		Turns:     turns,
		Chats:     chats,
		Providers: provs,
		Auth:      TokenAuthenticator{"secret-token": "u1"},
		Logger:    log.NewNop(),
	})
}

func request(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(&fakeTurns{}, &fakeChats{}, &fakeProviders{})
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/chat/stream"},
		{http.MethodGet, "/api/providers"},
		{http.MethodDelete, "/api/chats/" + uuid.NewString()},
	} {
		rec := request(t, s, tc.method, tc.path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d, want 401", tc.method, tc.path, rec.Code)
		}
		rec = request(t, s, tc.method, tc.path, "", "wrong-token")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s with bad token = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

func TestChatStreamEmitsEvents(t *testing.T) {
	turns := &fakeTurns{events: []chat.Event{
		{Type: chat.EventTextDelta, Text: "Hello "},
		{Type: chat.EventTextDelta, Text: "world"},
		{Type: chat.EventDone, ChatID: "c1"},
	}}
	s := newTestServer(turns, &fakeChats{}, &fakeProviders{})

	rec := request(t, s, http.MethodPost, "/api/chat/stream", `{"message": "hi"}`, "secret-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if turns.got.UserID != "u1" {
		t.Errorf("UserID = %q, want authenticated user", turns.got.UserID)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: text-delta\n") {
		t.Errorf("body missing text-delta frame:\n%s", body)
	}
	if !strings.Contains(body, "event: done\n") {
		t.Errorf("body missing done frame:\n%s", body)
	}
	if !strings.Contains(body, `"text":"Hello "`) {
		t.Errorf("body missing event payload:\n%s", body)
	}
}

func TestChatStreamErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{chat.ErrEmptyMessage, http.StatusBadRequest},
		{chat.ErrRateLimited, http.StatusTooManyRequests},
		{chat.ErrChatNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		s := newTestServer(&fakeTurns{err: tc.err}, &fakeChats{}, &fakeProviders{})
		rec := request(t, s, http.MethodPost, "/api/chat/stream", `{"message": "hi"}`, "secret-token")
		if rec.Code != tc.want {
			t.Errorf("err %v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestChatStreamBadBody(t *testing.T) {
	s := newTestServer(&fakeTurns{}, &fakeChats{}, &fakeProviders{})
	rec := request(t, s, http.MethodPost, "/api/chat/stream", `{"chatId": "not-a-uuid", "message": "hi"}`, "secret-token")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatDelete(t *testing.T) {
	chats := &fakeChats{}
	s := newTestServer(&fakeTurns{}, chats, &fakeProviders{})
	id := uuid.New()

	rec := request(t, s, http.MethodDelete, "/api/chats/"+id.String(), "", "secret-token")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(chats.deleted) != 1 || chats.deleted[0] != id {
		t.Errorf("deleted = %v", chats.deleted)
	}

	chats.err = chat.ErrChatNotFound
	rec = request(t, s, http.MethodDelete, "/api/chats/"+uuid.NewString(), "", "secret-token")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestProviderRegister(t *testing.T) {
	s := newTestServer(&fakeTurns{}, &fakeChats{}, &fakeProviders{})
	rec := request(t, s, http.MethodPost, "/api/providers",
		`{"type": "sse", "url": "https://cal.example.com/mcp", "name": "Calendar"}`, "secret-token")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var p provider.Provider
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if p.Name != "Calendar" || p.UserID != "u1" {
		t.Errorf("provider = %+v", p)
	}
}

func TestProviderErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&provider.ValidationError{Field: "url", Reason: "must not be empty"}, http.StatusBadRequest},
		{provider.ErrDuplicate, http.StatusConflict},
		{provider.ErrNotFound, http.StatusNotFound},
		{&provider.UnavailableError{Provider: "x", Err: context.DeadlineExceeded}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		s := newTestServer(&fakeTurns{}, &fakeChats{}, &fakeProviders{err: tc.err})
		rec := request(t, s, http.MethodPost, "/api/providers",
			`{"type": "sse", "url": "https://x/mcp"}`, "secret-token")
		if rec.Code != tc.want {
			t.Errorf("err %v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestProviderListEmpty(t *testing.T) {
	s := newTestServer(&fakeTurns{}, &fakeChats{}, &fakeProviders{})
	rec := request(t, s, http.MethodGet, "/api/providers", "", "secret-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string][]provider.Provider
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["providers"] == nil {
		t.Error("providers is null, want empty array")
	}
}

func TestProviderToggle(t *testing.T) {
	s := newTestServer(&fakeTurns{}, &fakeChats{}, &fakeProviders{})
	id := uuid.New()
	rec := request(t, s, http.MethodPost, "/api/providers/"+id.String()+"/toggle", "", "secret-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = request(t, s, http.MethodPost, "/api/providers/not-a-uuid/toggle", "", "secret-token")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for bad ID", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(&fakeTurns{}, &fakeChats{}, &fakeProviders{})
	rec := request(t, s, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	rec = request(t, s, http.MethodGet, "/ready", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}

	failing := NewServer(Config{
		Addr:  ":0",
		Auth:  TokenAuthenticator{},
		Ready: func(ctx context.Context) error { return context.DeadlineExceeded },
	})
	rec = httptest.NewRecorder()
	failing.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", rec.Code)
	}
}
