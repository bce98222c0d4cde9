package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okravchuk/devfinder/internal/core/domain"
	"github.com/okravchuk/devfinder/internal/core/ports"
	"github.com/okravchuk/devfinder/internal/infrastructure/resilience"
)

const systemPrompt = `You are DevFinder, an assistant that helps developers discover GitHub repositories, track issues, and look up user profiles.
Use the available tools whenever the user asks about repositories, issues, or GitHub users; answer from your own knowledge otherwise.
Tool results are authoritative: quote names, links and numbers from them exactly.
Be concise and concrete.`

const recordTimeout = 5 * time.Second

// ChatUseCase orchestrates one conversational request: recall relevant
// history, run the tool-using model loop under the retry/breaker executor,
// and record the exchange best-effort.
type ChatUseCase struct {
	model    ports.ChatModel
	tools    ports.ToolDispatcher
	memory   ports.ConversationMemory
	executor *resilience.Executor
	limits   domain.AgentLimits
	logger   *slog.Logger

	// onTokens observes model token usage for metrics.
	onTokens func(promptTokens, completionTokens int)
}

func NewChatUseCase(
	model ports.ChatModel,
	tools ports.ToolDispatcher,
	memory ports.ConversationMemory,
	executor *resilience.Executor,
	limits domain.AgentLimits,
	logger *slog.Logger,
	onTokens func(promptTokens, completionTokens int),
) *ChatUseCase {
	if limits.MaxAttempts <= 0 {
		limits.MaxAttempts = 3
	}
	if limits.Timeout <= 0 {
		limits.Timeout = 30 * time.Second
	}
	if limits.MemoryTopK <= 0 {
		limits.MemoryTopK = 6
	}
	if limits.MaxToolRounds <= 0 {
		limits.MaxToolRounds = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		model:    model,
		tools:    tools,
		memory:   memory,
		executor: executor,
		limits:   limits,
		logger:   logger,
		onTokens: onTokens,
	}
}

func (uc *ChatUseCase) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("message is required"))
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	ephemeral := conversationID == ""
	if ephemeral {
		// Nobody will ever supply this id again, so the exchange is not
		// persisted either.
		conversationID = uuid.NewString()
	}

	var history []domain.ConversationTurn
	if !ephemeral {
		recalled, err := uc.memory.Recall(ctx, conversationID, message, uc.limits.MemoryTopK)
		if err != nil {
			uc.logger.Warn("memory_recall_failed", "conversation_id", conversationID, "error", err)
		} else {
			history = recalled
		}
	}

	userCtx := ExtractUserContext(history)
	outbound := message
	if IsIdentityQuestion(message) {
		name := userCtx.Name
		if name == "" {
			name = "unknown"
		}
		// The annotation exists only for this model invocation; the stored
		// turn keeps the user's original text.
		outbound = fmt.Sprintf("[Known user context: the user's name is %s]\n%s", name, message)
	}

	messages := uc.buildPrompt(history, outbound)

	runCtx, cancel := context.WithTimeout(ctx, uc.limits.Timeout)
	defer cancel()

	var answer string
	var toolsInvoked []string
	attempts, err := uc.executor.Execute(runCtx, "model.chat", func(ctx context.Context) error {
		text, tools, convErr := uc.converse(ctx, messages)
		if convErr != nil {
			return convErr
		}
		answer = text
		toolsInvoked = tools
		return nil
	}, resilience.ClassifyByMessage)

	result := &domain.ChatResult{
		ConversationID: conversationID,
		Attempts:       attempts,
		MemoryHits:     len(history),
		ToolsInvoked:   toolsInvoked,
		Ephemeral:      ephemeral,
	}

	if err != nil {
		result.Answer = apologyFor(err)
		result.FallbackReason = fallbackReason(runCtx, err)
		uc.logger.Error("chat_failed",
			"conversation_id", conversationID,
			"attempts", attempts,
			"reason", result.FallbackReason,
			"error", err,
		)
		return result, nil
	}

	result.Answer = answer
	if !ephemeral {
		uc.recordExchange(ctx, conversationID, message, answer)
	}
	return result, nil
}

func (uc *ChatUseCase) buildPrompt(history []domain.ConversationTurn, outbound string) []domain.ModelMessage {
	messages := make([]domain.ModelMessage, 0, len(history)+2)
	messages = append(messages, domain.ModelMessage{Role: domain.RoleSystem, Content: systemPrompt})
	for _, turn := range history {
		if turn.Role != domain.RoleUser && turn.Role != domain.RoleAssistant {
			continue
		}
		messages = append(messages, domain.ModelMessage{Role: turn.Role, Content: turn.Content})
	}
	return append(messages, domain.ModelMessage{Role: domain.RoleUser, Content: outbound})
}

// converse drives the tool loop within a single attempt: the model either
// answers directly or requests tool calls, whose results are fed back. After
// the round cap the model answers from what it has, with no tools declared.
func (uc *ChatUseCase) converse(ctx context.Context, base []domain.ModelMessage) (string, []string, error) {
	messages := make([]domain.ModelMessage, len(base))
	copy(messages, base)

	specs := uc.tools.Specs()
	var toolsInvoked []string
	seen := make(map[string]bool)

	for round := 0; round < uc.limits.MaxToolRounds; round++ {
		resp, err := uc.model.Complete(ctx, messages, specs)
		if err != nil {
			return "", nil, err
		}
		uc.observeTokens(resp)

		if len(resp.ToolCalls) == 0 {
			return resp.Content, toolsInvoked, nil
		}

		messages = append(messages, domain.ModelMessage{
			Role:      domain.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			output := uc.tools.Invoke(ctx, call)
			if !seen[call.Name] {
				seen[call.Name] = true
				toolsInvoked = append(toolsInvoked, call.Name)
			}
			messages = append(messages, domain.ModelMessage{
				Role:       domain.RoleTool,
				Content:    output,
				ToolCallID: call.ID,
			})
		}
	}

	resp, err := uc.model.Complete(ctx, messages, nil)
	if err != nil {
		return "", nil, err
	}
	uc.observeTokens(resp)
	return resp.Content, toolsInvoked, nil
}

func (uc *ChatUseCase) observeTokens(resp *domain.ModelResponse) {
	if uc.onTokens != nil {
		uc.onTokens(resp.PromptTokens, resp.CompletionTokens)
	}
}

// recordExchange persists both turns best-effort. It runs on a detached
// context so that the already-answered request's cancellation does not lose
// the write, bounded by its own short deadline.
func (uc *ChatUseCase) recordExchange(ctx context.Context, conversationID, userText, assistantText string) {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := uc.memory.Record(recordCtx, conversationID, domain.RoleUser, userText); err != nil {
		uc.logger.Warn("memory_record_failed", "conversation_id", conversationID, "role", "user", "error", err)
	}
	if err := uc.memory.Record(recordCtx, conversationID, domain.RoleAssistant, assistantText); err != nil {
		uc.logger.Warn("memory_record_failed", "conversation_id", conversationID, "role", "assistant", "error", err)
	}
}

func apologyFor(err error) string {
	return fmt.Sprintf("I'm sorry, I ran into a problem while answering: %s. Please try again in a moment.", err.Error())
}

func fallbackReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		return "timeout"
	case resilience.IsCircuitOpen(err):
		return "circuit_open"
	case resilience.RetryableMessage(err):
		return "retries_exhausted"
	default:
		return "model_error"
	}
}
