// Package app wires configuration, storage, the model runtime, and the
// HTTP server into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/brioai/brio/db"
	"github.com/brioai/brio/internal/api"
	"github.com/brioai/brio/internal/chat"
	"github.com/brioai/brio/internal/config"
	"github.com/brioai/brio/internal/database"
	"github.com/brioai/brio/internal/log"
	"github.com/brioai/brio/internal/observability"
	"github.com/brioai/brio/internal/provider"
	"github.com/brioai/brio/internal/tools"
)

// turnsPerSecond bounds how fast turns may start across all users.
const turnsPerSecond = 5

// App holds the assembled service.
type App struct {
	Config *config.Config
	Logger log.Logger
	Pool   *pgxpool.Pool
	Server *api.Server

	shutdownTracing func(context.Context) error
}

// Setup assembles the service from configuration. Callers own the returned
// App and must Close it.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	shutdownTracing, err := observability.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName, logger)
	if err != nil {
		return nil, err
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString(), logger)
	if err != nil {
		shutdownTracing(ctx)
		return nil, err
	}
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		pool.Close()
		shutdownTracing(ctx)
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	g, err := initGenkit(ctx, cfg)
	if err != nil {
		pool.Close()
		shutdownTracing(ctx)
		return nil, err
	}

	chatStore := chat.NewStore(pool)
	providerStore := provider.NewStore(pool)

	connector := provider.NewConnector(cfg.ProviderTimeout(), logger)
	registry := tools.NewRegistry(tools.LocalTools(&http.Client{Timeout: 30 * time.Second}), logger)
	aggregator := provider.NewAggregator(connector, registry, cfg.AggregationWorkers, logger)

	describerGen := provider.GenkitGenerator(g, modelPrefix(cfg.Provider)+"/"+describerModel(cfg))
	describer := provider.NewDescriber(describerGen, logger)
	providerSvc := provider.NewService(providerStore, connector, describer, logger)

	orchestrator := chat.NewOrchestrator(chat.OrchestratorConfig{
		Store:     chatStore,
		Providers: providerStore,
		Gatherer:  aggregator,
		Models:    chat.NewGenkitResolver(g, modelPrefix(cfg.Provider), cfg.ModelName),
		Titler:    chat.NewTitler(chat.GenerateFunc(describerGen), logger),
		MaxSteps:  cfg.MaxSteps,
		Limiter:   rate.NewLimiter(rate.Limit(turnsPerSecond), turnsPerSecond*2),
		Logger:    logger,
	})

	server := api.NewServer(api.Config{
		Addr:      cfg.ServerAddr,
		Turns:     orchestrator,
		Chats:     chatStore,
		Providers: providerSvc,
		Auth:      api.TokenAuthenticator(cfg.AuthTokens),
		Ready:     pool.Ping,
		Logger:    logger,
	})

	return &App{
		Config:          cfg,
		Logger:          logger,
		Pool:            pool,
		Server:          server,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.Server.Run(ctx)
}

// Close releases the app's resources.
func (a *App) Close(ctx context.Context) {
	a.Pool.Close()
	if err := a.shutdownTracing(ctx); err != nil {
		a.Logger.Warn("trace shutdown failed", "error", err)
	}
}

func initGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	var g *genkit.Genkit
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{Name: cfg.ModelName, Type: "chat"}, nil)
		if m := describerModel(cfg); m != cfg.ModelName {
			ollamaPlugin.DefineModel(g, ollama.ModelDefinition{Name: m, Type: "chat"}, nil)
		}
	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
	default:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
	}
	return g, nil
}

// describerModel picks the model for auto-descriptions and titles.
func describerModel(cfg *config.Config) string {
	if cfg.DescriberModel != "" {
		return cfg.DescriberModel
	}
	return cfg.ModelName
}

// modelPrefix returns the genkit namespace for a configured AI provider.
func modelPrefix(providerName string) string {
	switch providerName {
	case config.ProviderOllama:
		return "ollama"
	case config.ProviderOpenAI:
		return "openai"
	default:
		return "googleai"
	}
}
