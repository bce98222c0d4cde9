package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okravchuk/devfinder/internal/core/domain"
	"github.com/okravchuk/devfinder/internal/core/ports"
)

const (
	maxUserTextLen      = 1000
	maxAssistantTextLen = 2000
)

// MemoryService stores and retrieves conversation turns. Writes go to the
// durable turn log plus a turn-recorded event for asynchronous vector
// indexing; reads run a similarity search with an identity-filtered first
// pass. Every read path degrades instead of failing: the conversation must
// continue even when memory is unavailable.
type MemoryService struct {
	log      ports.TurnLog
	queue    ports.MessageQueue
	embedder ports.Embedder
	vectors  ports.TurnVectorStore
	logger   *slog.Logger

	// onWrite observes record outcomes ("ok"/"error") for metrics.
	onWrite func(status string)
}

func NewMemoryService(
	log ports.TurnLog,
	queue ports.MessageQueue,
	embedder ports.Embedder,
	vectors ports.TurnVectorStore,
	logger *slog.Logger,
	onWrite func(status string),
) *MemoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryService{
		log:      log,
		queue:    queue,
		embedder: embedder,
		vectors:  vectors,
		logger:   logger,
		onWrite:  onWrite,
	}
}

// Record appends one turn to the durable log and publishes a turn-recorded
// event. The returned error is informational: callers log and discard it.
func (s *MemoryService) Record(ctx context.Context, conversationID string, role domain.Role, text string) error {
	text = truncateForRole(role, text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	turn := domain.ConversationTurn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        text,
		Flags:          DeriveFlags(text),
		CreatedAt:      time.Now().UTC(),
	}

	var errs []error
	if err := s.log.AppendTurn(ctx, turn); err != nil {
		errs = append(errs, fmt.Errorf("append turn: %w", err))
	}
	if err := s.queue.PublishTurnRecorded(ctx, turn); err != nil {
		errs = append(errs, fmt.Errorf("publish turn recorded: %w", err))
	}

	err := errors.Join(errs...)
	if s.onWrite != nil {
		if err != nil {
			s.onWrite("error")
		} else {
			s.onWrite("ok")
		}
	}
	return err
}

// IndexRecordedTurn embeds a recorded turn and writes it to the vector store.
// Registered as the turn-recorded event handler.
func (s *MemoryService) IndexRecordedTurn(ctx context.Context, turn domain.ConversationTurn) error {
	vector, err := s.embedder.EmbedQuery(ctx, turn.Content)
	if err != nil {
		return fmt.Errorf("embed turn: %w", err)
	}
	if err := s.vectors.IndexTurn(ctx, turn, vector); err != nil {
		return fmt.Errorf("index turn: %w", err)
	}
	return nil
}

// Recall returns up to limit turns relevant to the query, oldest first. For
// identity-related queries a mentions_name-filtered search runs first and
// falls back to an unfiltered conversation-scoped search when it finds
// nothing. When embedding is unavailable the recent window of the durable log
// stands in for similarity search; any other failure yields an empty history.
func (s *MemoryService) Recall(ctx context.Context, conversationID, query string, limit int) ([]domain.ConversationTurn, error) {
	if conversationID == "" || limit <= 0 {
		return nil, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil || len(vector) == 0 {
		s.logger.Warn("memory_recall_embed_failed", "conversation_id", conversationID, "error", err)
		return s.recentWindow(ctx, conversationID, limit), nil
	}

	var hits []domain.TurnHit
	if looksIdentityRelated(query) {
		hits, err = s.vectors.SearchTurns(ctx, conversationID, vector, limit, &domain.TurnFilter{MentionsName: true})
		if err != nil {
			s.logger.Warn("memory_recall_filtered_search_failed", "conversation_id", conversationID, "error", err)
			hits = nil
		}
	}
	if len(hits) == 0 {
		hits, err = s.vectors.SearchTurns(ctx, conversationID, vector, limit, nil)
		if err != nil {
			s.logger.Warn("memory_recall_search_failed", "conversation_id", conversationID, "error", err)
			return nil, nil
		}
	}

	turns := make([]domain.ConversationTurn, 0, len(hits))
	for _, hit := range hits {
		turns = append(turns, hit.Turn)
	}
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})
	return turns, nil
}

func (s *MemoryService) recentWindow(ctx context.Context, conversationID string, limit int) []domain.ConversationTurn {
	turns, err := s.log.ListRecentTurns(ctx, conversationID, limit)
	if err != nil {
		s.logger.Warn("memory_recall_recent_window_failed", "conversation_id", conversationID, "error", err)
		return nil
	}
	return turns
}

func truncateForRole(role domain.Role, text string) string {
	limit := maxAssistantTextLen
	if role == domain.RoleUser {
		limit = maxUserTextLen
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
