package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/brioai/brio/internal/log"
	"github.com/brioai/brio/internal/provider"
)

// MessageStore is the persistence surface the orchestrator needs. *Store
// satisfies it.
type MessageStore interface {
	CreateChat(ctx context.Context, c *Chat) error
	ChatByID(ctx context.Context, id uuid.UUID, userID string) (*Chat, error)
	SaveMessage(ctx context.Context, m *Message) error
	MessagesByChat(ctx context.Context, chatID uuid.UUID) ([]Message, error)
}

// ProviderSource lists the providers to aggregate for a user's turn.
// *provider.Store satisfies it.
type ProviderSource interface {
	ActiveByUser(ctx context.Context, userID string) ([]provider.Provider, error)
}

// Gatherer builds the per-turn toolset. *provider.Aggregator satisfies it.
type Gatherer interface {
	Gather(ctx context.Context, providers []provider.Provider) *provider.Aggregation
}

// OrchestratorConfig wires an orchestrator's collaborators and limits.
type OrchestratorConfig struct {
	Store     MessageStore
	Providers ProviderSource
	Gatherer  Gatherer
	Models    ModelResolver
	Titler    *Titler
	MaxSteps  int
	Limiter   *rate.Limiter
	Logger    log.Logger
}

// Orchestrator runs chat turns: it persists the user message, aggregates
// the toolset, drives the model through a bounded tool loop, and streams
// events while it goes.
type Orchestrator struct {
	store     MessageStore
	providers ProviderSource
	gatherer  Gatherer
	models    ModelResolver
	titler    *Titler
	maxSteps  int
	limiter   *rate.Limiter
	logger    log.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxSteps < 1 {
		cfg.MaxSteps = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Orchestrator{
		store:     cfg.Store,
		providers: cfg.Providers,
		gatherer:  cfg.Gatherer,
		models:    cfg.Models,
		titler:    cfg.Titler,
		maxSteps:  cfg.MaxSteps,
		limiter:   cfg.Limiter,
		logger:    cfg.Logger,
	}
}

// TurnRequest is one user turn. MessageID may be supplied by the client so
// retried requests stay idempotent; a nil ID gets a fresh one.
type TurnRequest struct {
	ChatID      uuid.UUID
	MessageID   uuid.UUID
	UserID      string
	Text        string
	Model       string
	Attachments []Attachment
}

// Stream runs a turn and returns its event stream. Validation, chat
// resolution, and the user message write happen before Stream returns, so
// a returned error means nothing was streamed; the write also means a
// crash mid-turn never loses the user's input. The channel is closed by
// the turn goroutine after a terminal EventDone or EventError. Cancelling
// ctx stops the turn; a cancelled turn persists no assistant output.
func (o *Orchestrator) Stream(ctx context.Context, req TurnRequest) (<-chan Event, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyMessage
	}
	if o.limiter != nil && !o.limiter.Allow() {
		return nil, ErrRateLimited
	}
	model, ok := o.models.Model(req.Model)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, req.Model)
	}

	chatID := req.ChatID
	if chatID == uuid.Nil {
		chatID = uuid.New()
	}
	c, err := o.store.ChatByID(ctx, chatID, req.UserID)
	if errors.Is(err, ErrChatNotFound) {
		c = &Chat{ID: chatID, UserID: req.UserID, Title: o.titler.Title(ctx, req.Text)}
		if err := o.store.CreateChat(ctx, c); err != nil {
			return nil, fmt.Errorf("create chat: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	userMsg := &Message{
		ID:          req.MessageID,
		ChatID:      c.ID,
		Role:        RoleUser,
		Parts:       []*ai.Part{ai.NewTextPart(req.Text)},
		Attachments: req.Attachments,
	}
	if err := o.store.SaveMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	stored, err := o.store.MessagesByChat(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	events := make(chan Event, 16)
	go o.run(ctx, events, c, model, historyMessages(stored))
	return events, nil
}

func (o *Orchestrator) run(ctx context.Context, events chan<- Event, c *Chat, model ModelCaller, history []*ai.Message) {
	defer close(events)
	send := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	provs, err := o.providers.ActiveByUser(ctx, c.UserID)
	if err != nil {
		o.logger.Error("loading providers failed", "chat", c.ID, "error", err)
		send(Event{Type: EventError, Error: "loading tool providers failed"})
		return
	}
	agg := o.gatherer.Gather(ctx, provs)
	defer agg.Close()
	if !send(Event{Type: EventProviders, ChatID: c.ID.String(), Providers: agg.Statuses}) {
		return
	}

	defs := toolDefinitions(agg.Tools)
	smoother := newWordSmoother(func(chunk string) {
		send(Event{Type: EventTextDelta, Text: chunk})
	})

	// One model call per step, tools invoked between steps. Tool calls
	// requested on the final step still run, but get no follow-up call.
	var assistantParts []*ai.Part
	var toolMsgs []*Message
	for step := 1; step <= o.maxSteps; step++ {
		modelReq := &ai.ModelRequest{Messages: history, Tools: defs}
		resp, err := model.Generate(ctx, modelReq, func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			for _, p := range chunk.Content {
				switch {
				case p.IsReasoning():
					send(Event{Type: EventReasoningDelta, Text: p.Text})
				case p.IsText():
					smoother.Write(p.Text)
				}
			}
			return ctx.Err()
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			o.logger.Error("model call failed", "chat", c.ID, "step", step, "error", err)
			send(Event{Type: EventError, Error: "model call failed"})
			return
		}
		smoother.Flush()
		if resp.Message == nil {
			break
		}

		history = append(history, resp.Message)
		assistantParts = append(assistantParts, resp.Message.Content...)

		requests := toolRequests(resp.Message)
		if len(requests) == 0 {
			break
		}
		toolParts := make([]*ai.Part, 0, len(requests))
		for _, tr := range requests {
			out := o.invoke(ctx, agg, tr, step, send)
			if ctx.Err() != nil {
				return
			}
			toolParts = append(toolParts, ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   tr.Name,
				Ref:    tr.Ref,
				Output: out,
			}))
		}
		history = append(history, &ai.Message{Role: ai.RoleTool, Content: toolParts})
		toolMsgs = append(toolMsgs, &Message{
			ChatID: c.ID,
			Role:   RoleTool,
			Parts:  toolParts,
		})
		if !send(Event{Type: EventStep, Step: step}) {
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	// The whole turn collapses into a single assistant row no matter how
	// many steps it took; tool outputs keep their own role so replayed
	// history pairs requests with responses. Durability here is best
	// effort: the turn already streamed, so a storage hiccup degrades
	// history, not the reply.
	generated := make([]*Message, 0, len(toolMsgs)+1)
	if len(assistantParts) > 0 {
		generated = append(generated, &Message{
			ChatID: c.ID,
			Role:   RoleAssistant,
			Parts:  assistantParts,
		})
	}
	generated = append(generated, toolMsgs...)
	for _, m := range generated {
		if err := o.store.SaveMessage(ctx, m); err != nil {
			o.logger.Warn("assistant message not persisted", "chat", c.ID, "error", err)
			break
		}
	}
	send(Event{Type: EventDone, ChatID: c.ID.String()})
}

// invoke runs one requested tool and emits its call and result events.
// Failures come back as an error payload for the model instead of ending
// the turn.
func (o *Orchestrator) invoke(ctx context.Context, agg *provider.Aggregation, tr *ai.ToolRequest, step int, send func(Event) bool) any {
	args, _ := tr.Input.(map[string]any)
	send(Event{Type: EventToolCall, ToolName: tr.Name, Args: args, Step: step})

	tool, ok := agg.Tools.Get(tr.Name)
	if !ok {
		o.logger.Warn("model requested unknown tool", "tool", tr.Name)
		out := map[string]any{"error": fmt.Sprintf("unknown tool %q", tr.Name)}
		send(Event{Type: EventToolResult, ToolName: tr.Name, Result: out, IsError: true, Step: step})
		return out
	}
	result, err := tool.Invoke(ctx, args)
	if err != nil {
		o.logger.Warn("tool invocation failed", "tool", tr.Name, "error", err)
		out := map[string]any{"error": err.Error()}
		send(Event{Type: EventToolResult, ToolName: tr.Name, Result: out, IsError: true, Step: step})
		return out
	}
	send(Event{Type: EventToolResult, ToolName: tr.Name, Result: result, Step: step})
	return result
}

func toolRequests(m *ai.Message) []*ai.ToolRequest {
	var out []*ai.ToolRequest
	for _, p := range m.Content {
		if p.IsToolRequest() {
			out = append(out, p.ToolRequest)
		}
	}
	return out
}

// wordSmoother rechunks streamed text on whitespace boundaries so clients
// see steady word-sized deltas instead of whatever the model buffered.
type wordSmoother struct {
	pending string
	emit    func(string)
}

func newWordSmoother(emit func(string)) *wordSmoother {
	return &wordSmoother{emit: emit}
}

func (w *wordSmoother) Write(text string) {
	w.pending += text
	for {
		i := strings.IndexAny(w.pending, " \n\t")
		if i < 0 {
			return
		}
		w.emit(w.pending[:i+1])
		w.pending = w.pending[i+1:]
	}
}

// Flush emits any buffered tail. Called at the end of each model step.
func (w *wordSmoother) Flush() {
	if w.pending != "" {
		w.emit(w.pending)
		w.pending = ""
	}
}
