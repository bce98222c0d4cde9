package ports

import (
	"context"

	"github.com/okravchuk/devfinder/internal/core/domain"
)

// ChatModel invokes the upstream model with a declared tool set and returns
// either final text or tool-invocation requests.
type ChatModel interface {
	Complete(ctx context.Context, messages []domain.ModelMessage, tools []domain.ToolSchema) (*domain.ModelResponse, error)
}

// Embedder builds the query/content vectors used by the memory store.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TurnVectorStore indexes conversation turns and performs scoped similarity
// search over them.
type TurnVectorStore interface {
	IndexTurn(ctx context.Context, turn domain.ConversationTurn, vector []float32) error
	SearchTurns(ctx context.Context, conversationID string, vector []float32, limit int, filter *domain.TurnFilter) ([]domain.TurnHit, error)
}

// TurnLog is the durable append-only record of conversation turns.
type TurnLog interface {
	AppendTurn(ctx context.Context, turn domain.ConversationTurn) error
	ListRecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error)
}

// MessageQueue carries best-effort turn-recorded events to the memory indexer.
type MessageQueue interface {
	PublishTurnRecorded(ctx context.Context, turn domain.ConversationTurn) error
	SubscribeTurnRecorded(ctx context.Context, handler func(context.Context, domain.ConversationTurn) error) error
}

// GitHubAPI is the source-hosting REST surface consumed by the tools.
type GitHubAPI interface {
	SearchRepositories(ctx context.Context, query, sort string, limit int) ([]domain.Repository, error)
	GetRepository(ctx context.Context, fullName string) (*domain.Repository, error)
	ListIssues(ctx context.Context, fullName, state, labels string, limit int) ([]domain.Issue, error)
	GetUser(ctx context.Context, username string) (*domain.UserProfile, error)
	ListUserRepositories(ctx context.Context, username string, limit int) ([]domain.Repository, error)
}

// Tool is a named, schema-described capability the model may invoke. Invoke
// never fails: every error path is reported as a textual result so the agent
// loop can keep going.
type Tool interface {
	Schema() domain.ToolSchema
	Invoke(ctx context.Context, args map[string]any) string
}

// ToolDispatcher resolves and executes model-requested tool calls.
type ToolDispatcher interface {
	Specs() []domain.ToolSchema
	Invoke(ctx context.Context, call domain.ToolCall) string
}
