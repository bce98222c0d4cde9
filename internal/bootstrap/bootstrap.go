package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/okravchuk/devfinder/internal/config"
	"github.com/okravchuk/devfinder/internal/core/domain"
	"github.com/okravchuk/devfinder/internal/core/ports"
	"github.com/okravchuk/devfinder/internal/core/tools"
	"github.com/okravchuk/devfinder/internal/core/usecase"
	"github.com/okravchuk/devfinder/internal/infrastructure/github"
	"github.com/okravchuk/devfinder/internal/infrastructure/llm/openaicompat"
	"github.com/okravchuk/devfinder/internal/infrastructure/queue/nats"
	"github.com/okravchuk/devfinder/internal/infrastructure/repository/postgres"
	"github.com/okravchuk/devfinder/internal/infrastructure/resilience"
	"github.com/okravchuk/devfinder/internal/infrastructure/vector/supabase"
	"github.com/okravchuk/devfinder/internal/observability/metrics"
)

const serviceName = "devfinder"

// App wires configuration into the running service's dependency graph.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	ChatUC    ports.ChatService
	Memory    *usecase.MemoryService
	Queue     ports.MessageQueue
	APILimits *rate.Limiter

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	turnLog := postgres.NewTurnRepository(db)
	if err := turnLog.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	m := metrics.NewHTTPServerMetrics(serviceName)

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.AgentMaxAttempts,
		OnBreakerStateChange: func(operation, from, to string) {
			m.RecordBreakerTransition(serviceName, operation, from, to)
		},
	})

	llm := openaicompat.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMChatModel, cfg.LLMEmbedModel)
	vectors := supabase.New(cfg.VectorStoreURL, cfg.VectorStoreKey, cfg.MemoryTableName)
	gh := github.New(cfg.GitHubBaseURL, cfg.GitHubToken, cfg.GitHubRPS)

	memory := usecase.NewMemoryService(turnLog, queue, llm, vectors, logger, func(status string) {
		m.RecordMemoryWrite(serviceName, status)
	})

	registry := tools.NewRegistry(func(tool, status string) {
		m.RecordToolCall(serviceName, tool, status)
	})
	for _, tool := range []ports.Tool{
		tools.NewRepositorySearch(gh),
		tools.NewIssueSearch(gh),
		tools.NewProfileLookup(gh),
	} {
		if err := registry.Register(tool); err != nil {
			queue.Close()
			_ = db.Close()
			return nil, fmt.Errorf("register tool: %w", err)
		}
	}

	chatUC := usecase.NewChatUseCase(llm, registry, memory, executor, domain.AgentLimits{
		MaxAttempts:   cfg.AgentMaxAttempts,
		Timeout:       time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
		MemoryTopK:    cfg.AgentMemoryTopK,
		MaxToolRounds: cfg.AgentMaxToolRounds,
	}, logger, func(promptTokens, completionTokens int) {
		m.RecordTokenUsage(serviceName, llm.ChatModelName(), promptTokens, completionTokens)
	})

	limiter := rate.NewLimiter(rate.Limit(cfg.APIRateLimitRPS), cfg.APIRateLimitBurst)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   m,
		ChatUC:    chatUC,
		Memory:    memory,
		Queue:     queue,
		APILimits: limiter,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// StartIndexer subscribes the memory indexer to turn-recorded events and
// blocks until ctx is cancelled.
func (a *App) StartIndexer(ctx context.Context) error {
	return a.Queue.SubscribeTurnRecorded(ctx, a.Memory.IndexRecordedTurn)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
