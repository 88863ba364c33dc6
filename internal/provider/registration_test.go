package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/brioai/brio/internal/log"
)

type fakeRepo struct {
	created []Provider
}

func (f *fakeRepo) Create(ctx context.Context, p *Provider) error {
	p.ID = uuid.New()
	f.created = append(f.created, *p)
	return nil
}

func (f *fakeRepo) ByUser(ctx context.Context, userID string) ([]Provider, error) {
	return f.created, nil
}

func (f *fakeRepo) ExistsByUserURL(ctx context.Context, userID, url string) (bool, error) {
	for _, p := range f.created {
		if p.UserID == userID && p.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) Toggle(ctx context.Context, id uuid.UUID, userID string) (*Provider, error) {
	return nil, ErrNotFound
}

func (f *fakeRepo) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	return ErrNotFound
}

func newTestService(repo *fakeRepo, dialer Dialer, gen GenerateFunc) *Service {
	return NewService(repo, dialer, NewDescriber(gen, log.NewNop()), log.NewNop())
}

func TestRegisterRejectsEmptyURL(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeDialer{}, nil)
	_, err := svc.Register(context.Background(), "u1", TransportSSE, "", "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Field != "url" {
		t.Errorf("Field = %q, want url", verr.Field)
	}
}

func TestRegisterRejectsUnknownTransport(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeDialer{}, nil)
	_, err := svc.Register(context.Background(), "u1", "smoke-signal", "http://x", "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestRegisterDuplicateURL(t *testing.T) {
	repo := &fakeRepo{}
	dialer := &fakeDialer{conns: map[string]func() *Connection{
		"http://a/mcp": cannedConn("a", "ping"),
	}}
	svc := newTestService(repo, dialer, nil)

	if _, err := svc.Register(context.Background(), "u1", TransportSSE, "http://a/mcp", "A"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := svc.Register(context.Background(), "u1", TransportSSE, "http://a/mcp", "A again")
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}

	// The same URL is fine for a different user, and a different spelling
	// of the same endpoint is fine for the same user.
	if _, err := svc.Register(context.Background(), "u2", TransportSSE, "http://a/mcp", "B"); err != nil {
		t.Errorf("other user blocked: %v", err)
	}
	dialer.conns["http://a/mcp/"] = cannedConn("a", "ping")
	if _, err := svc.Register(context.Background(), "u1", TransportSSE, "http://a/mcp/", "A slash"); err != nil {
		t.Errorf("distinct spelling blocked: %v", err)
	}
}

func TestRegisterUnreachableProvider(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeDialer{}, nil)
	_, err := svc.Register(context.Background(), "u1", TransportSSE, "http://down/mcp", "")
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Errorf("err = %v, want UnavailableError", err)
	}
}

func TestRegisterGeneratedName(t *testing.T) {
	repo := &fakeRepo{}
	dialer := &fakeDialer{conns: map[string]func() *Connection{
		"http://cal/mcp": cannedConn("cal", "add_event", "list_events"),
	}}
	gen := staticGenerator(`{"name": "Calendar", "description": "Manages events."}`, nil)
	svc := newTestService(repo, dialer, gen)

	p, err := svc.Register(context.Background(), "u1", TransportHTTP, "http://cal/mcp", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.Name != "Calendar" || p.Description != "Manages events." {
		t.Errorf("name/description = %q/%q", p.Name, p.Description)
	}
	if !p.AIGenerated {
		t.Error("AIGenerated = false, want true for generated name")
	}
	if !p.Active {
		t.Error("Active = false, want providers to start active")
	}
	if !p.Capabilities.Tools || p.Capabilities.Prompts || p.Capabilities.Sampling {
		t.Errorf("capabilities = %+v", p.Capabilities)
	}
	if len(p.Tools) != 2 || p.Tools[0].Name != "add_event" {
		t.Errorf("tool snapshot = %+v", p.Tools)
	}
	// The probe connection is not held open after registration.
	if len(dialer.closed) != 1 {
		t.Errorf("closed = %v, want probe connection closed", dialer.closed)
	}
}

func TestRegisterServerReportedName(t *testing.T) {
	repo := &fakeRepo{}
	mk := cannedConn("cal", "add_event")
	dialer := &fakeDialer{conns: map[string]func() *Connection{
		"http://cal/mcp": func() *Connection {
			conn := mk()
			conn.Info = &mcp.Implementation{Name: "calsrv"}
			return conn
		},
	}}
	gen := staticGenerator(`{"name": "Model Picked Name", "description": "Wrong."}`, nil)
	svc := newTestService(repo, dialer, gen)

	p, err := svc.Register(context.Background(), "u1", TransportHTTP, "http://cal/mcp", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.Name != "calsrv" {
		t.Errorf("Name = %q, want the server-reported one", p.Name)
	}
	if p.AIGenerated {
		t.Error("AIGenerated = true, want false when the server names itself")
	}
	if p.Description != "MCP server at cal with 1 tools available" {
		t.Errorf("Description = %q", p.Description)
	}
}

func TestRegisterUserSuppliedName(t *testing.T) {
	repo := &fakeRepo{}
	dialer := &fakeDialer{conns: map[string]func() *Connection{
		"http://cal/mcp": cannedConn("cal", "add_event"),
	}}
	svc := newTestService(repo, dialer, staticGenerator("", errors.New("should not be called")))

	p, err := svc.Register(context.Background(), "u1", TransportSSE, "http://cal/mcp", "My Calendar")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.Name != "My Calendar" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.AIGenerated {
		t.Error("AIGenerated = true, want false for user-supplied name")
	}
	if p.Description != "MCP server at cal with 1 tools available" {
		t.Errorf("Description = %q", p.Description)
	}
}

func TestValidateReportsObservations(t *testing.T) {
	dialer := &fakeDialer{conns: map[string]func() *Connection{
		"http://cal/mcp": cannedConn("cal", "add_event"),
	}}
	svc := newTestService(&fakeRepo{}, dialer, nil)

	res, err := svc.Validate(context.Background(), TransportSSE, "http://cal/mcp")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Capabilities.Tools || len(res.Tools) != 1 || res.ToolCount != 1 {
		t.Errorf("result = %+v", res)
	}
	// No server-reported name and no model: host-derived fallback.
	if !res.Synthesized || res.Name != "cal" {
		t.Errorf("name = %q synthesized = %v", res.Name, res.Synthesized)
	}
	if res.Description != "MCP server at cal with 1 tools available" {
		t.Errorf("description = %q", res.Description)
	}
	if len(dialer.closed) != 1 {
		t.Error("validation connection left open")
	}

	if _, err := svc.Validate(context.Background(), TransportSSE, ""); err == nil {
		t.Error("Validate accepted empty URL")
	}
}
