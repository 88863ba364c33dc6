package provider

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/brioai/brio/internal/log"
	"github.com/brioai/brio/internal/tools"
)

// fakeDialer serves canned connections keyed by provider URL.
type fakeDialer struct {
	mu     sync.Mutex
	conns  map[string]func() *Connection
	closed []string
}

func (f *fakeDialer) Dial(ctx context.Context, p Provider) (*Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mk, ok := f.conns[p.URL]
	if !ok {
		return nil, &UnavailableError{Provider: p.Name, Err: errors.New("connection refused")}
	}
	conn := mk()
	conn.shutdown = func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.closed = append(f.closed, p.URL)
		return nil
	}
	return conn, nil
}

func cannedConn(label string, toolNames ...string) func() *Connection {
	return func() *Connection {
		var ts []*mcp.Tool
		for _, name := range toolNames {
			ts = append(ts, &mcp.Tool{Name: name, Description: "from " + label})
		}
		return &Connection{
			Tools: ts,
			call: func(ctx context.Context, name string, args map[string]any) (any, error) {
				return label + ":" + name, nil
			},
		}
	}
}

func newTestAggregator(d Dialer, local ...tools.Tool) *Aggregator {
	return NewAggregator(d, tools.NewRegistry(local, log.NewNop()), 2, log.NewNop())
}

func TestGatherMergesInProviderOrder(t *testing.T) {
	dialer := &fakeDialer{conns: map[string]func() *Connection{
		"http://a": cannedConn("a", "search", "lookup"),
		"http://b": cannedConn("b", "search"),
	}}
	agg := newTestAggregator(dialer).Gather(context.Background(), []Provider{
		{Name: "A", URL: "http://a"},
		{Name: "B", URL: "http://b"},
	})
	defer agg.Close()

	if agg.Tools.Len() != 2 {
		t.Fatalf("merged set has %d tools, want 2", agg.Tools.Len())
	}
	// B registered after A, so B's "search" wins regardless of dial timing.
	search, _ := agg.Tools.Get("search")
	if search.Descriptor.Description != "from b" {
		t.Errorf("search.Description = %q, want %q", search.Descriptor.Description, "from b")
	}
	out, err := search.Invoke(context.Background(), nil)
	if err != nil || out != "b:search" {
		t.Errorf("Invoke = %v, %v; want b:search", out, err)
	}
}

func TestGatherRemoteShadowsLocal(t *testing.T) {
	local := tools.Tool{
		Descriptor: tools.Descriptor{Name: "search", Description: "local"},
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			return "local", nil
		},
	}
	dialer := &fakeDialer{conns: map[string]func() *Connection{
		"http://a": cannedConn("a", "search"),
	}}
	agg := newTestAggregator(dialer, local).Gather(context.Background(), []Provider{
		{Name: "A", URL: "http://a"},
	})
	defer agg.Close()

	search, _ := agg.Tools.Get("search")
	if search.Descriptor.Description != "from a" {
		t.Errorf("Description = %q, want remote binding", search.Descriptor.Description)
	}
}

func TestGatherIsolatesFailedProviders(t *testing.T) {
	dialer := &fakeDialer{conns: map[string]func() *Connection{
		"http://up": cannedConn("up", "ping"),
	}}
	agg := newTestAggregator(dialer).Gather(context.Background(), []Provider{
		{Name: "Down", URL: "http://down"},
		{Name: "Up", URL: "http://up"},
	})
	defer agg.Close()

	if agg.Tools.Len() != 1 {
		t.Fatalf("merged set has %d tools, want 1", agg.Tools.Len())
	}
	if len(agg.Statuses) != 2 {
		t.Fatalf("Statuses = %d entries, want 2", len(agg.Statuses))
	}
	down, up := agg.Statuses[0], agg.Statuses[1]
	if down.Connected || down.Error == "" || down.Provider != "Down" {
		t.Errorf("down status = %+v", down)
	}
	if !up.Connected || up.ToolCount != 1 || up.Error != "" {
		t.Errorf("up status = %+v", up)
	}
}

func TestGatherNoProviders(t *testing.T) {
	local := tools.Tool{Descriptor: tools.Descriptor{Name: "get_weather"}}
	agg := newTestAggregator(&fakeDialer{}, local).Gather(context.Background(), nil)
	defer agg.Close()

	if agg.Tools.Len() != 1 {
		t.Errorf("merged set has %d tools, want local set only", agg.Tools.Len())
	}
	if len(agg.Statuses) != 0 {
		t.Errorf("Statuses = %v, want empty", agg.Statuses)
	}
}

func TestAggregationCloseClosesAll(t *testing.T) {
	dialer := &fakeDialer{conns: map[string]func() *Connection{
		"http://a": cannedConn("a", "x"),
		"http://b": cannedConn("b", "y"),
	}}
	agg := newTestAggregator(dialer).Gather(context.Background(), []Provider{
		{Name: "A", URL: "http://a"},
		{Name: "B", URL: "http://b"},
	})
	agg.Close()

	if len(dialer.closed) != 2 {
		t.Errorf("closed %d connections, want 2: %v", len(dialer.closed), dialer.closed)
	}
	// Close is idempotent.
	agg.Close()
	if len(dialer.closed) != 2 {
		t.Errorf("second Close closed connections again: %v", dialer.closed)
	}
}
