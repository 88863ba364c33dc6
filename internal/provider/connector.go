package provider

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/brioai/brio/internal/log"
)

// Dialer opens a live connection to a provider.
type Dialer interface {
	Dial(ctx context.Context, p Provider) (*Connection, error)
}

// Connection is an open session with one provider, already probed. Tools
// holds the live listing; Resources and Info are best-effort and may be
// empty when the server does not support them.
type Connection struct {
	Info      *mcp.Implementation
	Tools     []*mcp.Tool
	Resources []*mcp.Resource

	call     func(ctx context.Context, name string, args map[string]any) (any, error)
	shutdown func() error
}

// Call invokes a tool on the provider and returns its result.
func (c *Connection) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	return c.call(ctx, name, args)
}

// Close tears down the session.
func (c *Connection) Close() error {
	if c.shutdown == nil {
		return nil
	}
	return c.shutdown()
}

// Capabilities reports what the probe actually observed. Prompts and
// sampling stay false even when the server advertises them; nothing
// downstream consumes either.
func (c *Connection) Capabilities() Capabilities {
	return Capabilities{
		Tools:     len(c.Tools) > 0,
		Resources: len(c.Resources) > 0,
	}
}

// Connector dials MCP servers over the transport each provider declares.
type Connector struct {
	impl    *mcp.Implementation
	timeout time.Duration
	logger  log.Logger
}

// NewConnector creates a connector. timeout bounds each dial end to end,
// connect and probe; tool calls made later on the connection are bounded
// by the caller.
func NewConnector(timeout time.Duration, logger log.Logger) *Connector {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Connector{
		impl:    &mcp.Implementation{Name: "brio", Version: "1.0.0"},
		timeout: timeout,
		logger:  logger,
	}
}

// Dial connects to the provider, lists its tools, and probes optional
// surfaces. Any failure up to and including the tool listing returns an
// UnavailableError.
func (c *Connector) Dial(ctx context.Context, p Provider) (*Connection, error) {
	transport, err := c.transportFor(p)
	if err != nil {
		return nil, &UnavailableError{Provider: p.Name, Err: err}
	}
	conn, err := c.dial(ctx, transport)
	if err != nil {
		return nil, &UnavailableError{Provider: p.Name, Err: err}
	}
	return conn, nil
}

func (c *Connector) transportFor(p Provider) (mcp.Transport, error) {
	switch p.Kind {
	case TransportSSE:
		return &mcp.SSEClientTransport{Endpoint: p.URL}, nil
	case TransportHTTP:
		return &mcp.StreamableClientTransport{Endpoint: p.URL}, nil
	case TransportStdio:
		fields := strings.Fields(p.URL)
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty command")
		}
		return &mcp.CommandTransport{Command: exec.Command(fields[0], fields[1:]...)}, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", p.Kind)
	}
}

// dial performs the handshake and probe against an already-built transport.
// The timeout bounds the whole phase, handshake included: one silent
// provider must not stall an aggregation waiting on it.
func (c *Connector) dial(ctx context.Context, transport mcp.Transport) (*Connection, error) {
	probeCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	client := mcp.NewClient(c.impl, nil)
	session, err := client.Connect(probeCtx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	listing, err := session.ListTools(probeCtx, nil)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("list tools: %w", err)
	}

	conn := &Connection{
		Tools:    listing.Tools,
		call:     sessionCall(session),
		shutdown: session.Close,
	}
	if init := session.InitializeResult(); init != nil {
		conn.Info = init.ServerInfo
	}

	// Resources are optional. A failed listing just leaves the field empty.
	if res, err := session.ListResources(probeCtx, nil); err == nil {
		conn.Resources = res.Resources
	} else {
		c.logger.Debug("resource probe failed", "error", err)
	}
	return conn, nil
}

func sessionCall(session *mcp.ClientSession) func(context.Context, string, map[string]any) (any, error) {
	return func(ctx context.Context, name string, args map[string]any) (any, error) {
		result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", name, err)
		}
		text := flattenContent(result.Content)
		if result.IsError {
			return nil, fmt.Errorf("tool %s failed: %s", name, text)
		}
		if result.StructuredContent != nil {
			return result.StructuredContent, nil
		}
		return text, nil
	}
}

func flattenContent(content []mcp.Content) string {
	var b strings.Builder
	for _, part := range content {
		if tc, ok := part.(*mcp.TextContent); ok {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}
