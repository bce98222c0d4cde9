package ports

import (
	"context"

	"github.com/okravchuk/devfinder/internal/core/domain"
)

// ChatService is the inbound contract for one conversational request.
type ChatService interface {
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error)
}

// ConversationMemory is the memory surface the orchestrator depends on.
// Record is best-effort: callers log and discard its error. Recall failures
// likewise degrade to an empty history.
type ConversationMemory interface {
	Record(ctx context.Context, conversationID string, role domain.Role, text string) error
	Recall(ctx context.Context, conversationID, query string, limit int) ([]domain.ConversationTurn, error)
}
