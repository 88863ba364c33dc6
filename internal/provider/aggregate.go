package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/brioai/brio/internal/log"
	"github.com/brioai/brio/internal/tools"
)

// Status is the per-provider outcome of one aggregation pass.
type Status struct {
	Provider  string `json:"provider"`
	Connected bool   `json:"connected"`
	ToolCount int    `json:"toolCount"`
	Error     string `json:"error,omitempty"`
}

// Aggregation is the merged capability set for one chat turn, plus the live
// connections backing the remote tools. Callers must Close it once the turn
// is over.
type Aggregation struct {
	Tools    *tools.Set
	Statuses []Status

	conns  []*Connection
	logger log.Logger
}

// Close tears down every provider connection opened for the turn.
func (a *Aggregation) Close() {
	for _, conn := range a.conns {
		if err := conn.Close(); err != nil {
			a.logger.Debug("provider connection close failed", "error", err)
		}
	}
	a.conns = nil
}

// Aggregator builds the per-turn capability set by dialing each active
// provider and folding its tools over the local registry.
type Aggregator struct {
	dialer   Dialer
	registry *tools.Registry
	workers  int
	logger   log.Logger
}

// NewAggregator creates an aggregator. workers bounds how many providers
// are dialed concurrently.
func NewAggregator(dialer Dialer, registry *tools.Registry, workers int, logger log.Logger) *Aggregator {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Aggregator{dialer: dialer, registry: registry, workers: workers, logger: logger}
}

// Gather dials the given providers and returns the merged toolset. Dials
// run concurrently but the merge folds results in the order providers were
// passed in, so collision outcomes do not depend on scheduling. A provider
// that cannot be reached is recorded in its status and skipped; Gather
// itself never fails.
func (a *Aggregator) Gather(ctx context.Context, providers []Provider) *Aggregation {
	results := make([]*Connection, len(providers))
	statuses := make([]Status, len(providers))

	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			conn, err := a.dialer.Dial(ctx, p)
			if err != nil {
				a.logger.Warn("provider unavailable", "provider", p.Name, "url", p.URL, "error", err)
				statuses[i] = Status{Provider: p.Name, Error: err.Error()}
				return
			}
			results[i] = conn
			statuses[i] = Status{Provider: p.Name, Connected: true, ToolCount: len(conn.Tools)}
		}()
	}
	wg.Wait()

	agg := &Aggregation{Statuses: statuses, logger: a.logger}
	var remote []tools.Tool
	for i, conn := range results {
		if conn == nil {
			continue
		}
		agg.conns = append(agg.conns, conn)
		label := providers[i].Name
		for _, t := range conn.Tools {
			remote = append(remote, bindRemote(conn, label, t))
		}
	}
	agg.Tools = a.registry.Capabilities(remote)
	return agg
}

// bindRemote wraps an MCP tool declaration as an invocable tool backed by
// its originating connection.
func bindRemote(conn *Connection, label string, t *mcp.Tool) tools.Tool {
	name := t.Name
	return tools.Tool{
		Descriptor: DescriptorFromMCP(t),
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			out, err := conn.Call(ctx, name, args)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", label, err)
			}
			return out, nil
		},
	}
}
