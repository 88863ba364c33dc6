// Package api exposes the HTTP surface: the streaming chat endpoint and
// provider management, behind bearer-token auth.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/brioai/brio/internal/chat"
	"github.com/brioai/brio/internal/log"
	"github.com/brioai/brio/internal/provider"
)

// TurnStreamer runs chat turns. *chat.Orchestrator satisfies it.
type TurnStreamer interface {
	Stream(ctx context.Context, req chat.TurnRequest) (<-chan chat.Event, error)
}

// ChatStore is the chat persistence the handlers need directly.
// *chat.Store satisfies it.
type ChatStore interface {
	DeleteChat(ctx context.Context, id uuid.UUID, userID string) error
}

// ProviderService manages provider registrations. *provider.Service
// satisfies it.
type ProviderService interface {
	Validate(ctx context.Context, kind provider.TransportKind, url string) (*provider.ValidationResult, error)
	Register(ctx context.Context, userID string, kind provider.TransportKind, url, name string) (*provider.Provider, error)
	List(ctx context.Context, userID string) ([]provider.Provider, error)
	Toggle(ctx context.Context, id uuid.UUID, userID string) (*provider.Provider, error)
	Delete(ctx context.Context, id uuid.UUID, userID string) error
}

// Config wires a server.
type Config struct {
	Addr      string
	Turns     TurnStreamer
	Chats     ChatStore
	Providers ProviderService
	Auth      Authenticator
	Ready     func(ctx context.Context) error
	Logger    log.Logger
}

// Server is the HTTP server.
type Server struct {
	turns     TurnStreamer
	chats     ChatStore
	providers ProviderService
	ready     func(ctx context.Context) error
	logger    log.Logger

	httpServer *http.Server
}

// NewServer builds the server and its routes.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	s := &Server{
		turns:     cfg.Turns,
		chats:     cfg.Chats,
		providers: cfg.Providers,
		ready:     cfg.Ready,
		logger:    cfg.Logger,
	}

	mux := http.NewServeMux()
	authed := func(h http.HandlerFunc) http.Handler { return withAuth(cfg.Auth, h) }
	mux.Handle("POST /api/chat/stream", authed(s.handleChatStream))
	mux.Handle("DELETE /api/chats/{id}", authed(s.handleChatDelete))
	mux.Handle("POST /api/providers/validate", authed(s.handleProviderValidate))
	mux.Handle("POST /api/providers", authed(s.handleProviderRegister))
	mux.Handle("GET /api/providers", authed(s.handleProviderList))
	mux.Handle("POST /api/providers/{id}/toggle", authed(s.handleProviderToggle))
	mux.Handle("DELETE /api/providers/{id}", authed(s.handleProviderDelete))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: withRecovery(cfg.Logger, withLogging(cfg.Logger, mux)),
		// No write timeout: chat streams stay open for the whole turn.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
