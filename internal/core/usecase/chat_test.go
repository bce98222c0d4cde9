package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okravchuk/devfinder/internal/core/domain"
	"github.com/okravchuk/devfinder/internal/infrastructure/resilience"
)

type fakeModel struct {
	responses []func(messages []domain.ModelMessage, tools []domain.ToolSchema) (*domain.ModelResponse, error)
	calls     int
}

func (f *fakeModel) Complete(_ context.Context, messages []domain.ModelMessage, tools []domain.ToolSchema) (*domain.ModelResponse, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx](messages, tools)
}

func textResponse(text string) func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error) {
	return func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error) {
		return &domain.ModelResponse{Content: text}, nil
	}
}

type fakeDispatcher struct {
	invoked []string
	result  string
}

func (f *fakeDispatcher) Specs() []domain.ToolSchema {
	return []domain.ToolSchema{{Name: "repository_search"}}
}

func (f *fakeDispatcher) Invoke(_ context.Context, call domain.ToolCall) string {
	f.invoked = append(f.invoked, call.Name)
	if f.result != "" {
		return f.result
	}
	return "tool output"
}

// inMemoryMemory is a ConversationMemory backed by a slice, close enough to
// the real service for orchestrator tests.
type inMemoryMemory struct {
	turns      map[string][]domain.ConversationTurn
	recordErr  error
	recallErr  error
	recordHits int
}

func newInMemoryMemory() *inMemoryMemory {
	return &inMemoryMemory{turns: make(map[string][]domain.ConversationTurn)}
}

func (m *inMemoryMemory) Record(_ context.Context, conversationID string, role domain.Role, text string) error {
	m.recordHits++
	if m.recordErr != nil {
		return m.recordErr
	}
	m.turns[conversationID] = append(m.turns[conversationID], domain.ConversationTurn{
		ConversationID: conversationID,
		Role:           role,
		Content:        text,
		CreatedAt:      time.Now(),
	})
	return nil
}

func (m *inMemoryMemory) Recall(_ context.Context, conversationID, _ string, limit int) ([]domain.ConversationTurn, error) {
	if m.recallErr != nil {
		return nil, m.recallErr
	}
	turns := m.turns[conversationID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
}

func newChat(model *fakeModel, tools *fakeDispatcher, memory *inMemoryMemory) *ChatUseCase {
	return NewChatUseCase(model, tools, memory, testExecutor(), domain.AgentLimits{}, nil, nil)
}

func TestChatDirectAnswer(t *testing.T) {
	model := &fakeModel{responses: []func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error){
		textResponse("Here are some ideas."),
	}}
	memory := newInMemoryMemory()
	uc := newChat(model, &fakeDispatcher{}, memory)

	result, err := uc.Chat(context.Background(), domain.ChatRequest{ConversationID: "conv-1", Message: "suggest a project"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if result.Answer != "Here are some ideas." {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.Attempts != 1 || result.Ephemeral {
		t.Errorf("result = %+v, want 1 attempt, not ephemeral", result)
	}
	if len(memory.turns["conv-1"]) != 2 {
		t.Errorf("recorded %d turns, want user+assistant", len(memory.turns["conv-1"]))
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	uc := newChat(&fakeModel{responses: []func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error){textResponse("x")}}, &fakeDispatcher{}, newInMemoryMemory())

	_, err := uc.Chat(context.Background(), domain.ChatRequest{Message: "   "})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want invalid input", err)
	}
}

func TestChatGeneratesEphemeralConversation(t *testing.T) {
	model := &fakeModel{responses: []func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error){
		textResponse("hello"),
	}}
	memory := newInMemoryMemory()
	uc := newChat(model, &fakeDispatcher{}, memory)

	result, err := uc.Chat(context.Background(), domain.ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !result.Ephemeral || result.ConversationID == "" {
		t.Errorf("result = %+v, want generated ephemeral conversation", result)
	}
	if memory.recordHits != 0 {
		t.Errorf("recorded %d turns for ephemeral conversation, want 0", memory.recordHits)
	}
}

func TestChatToolLoopFeedsResultsBack(t *testing.T) {
	tools := &fakeDispatcher{result: "1. gin-gonic/gin"}
	model := &fakeModel{responses: []func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error){
		func(_ []domain.ModelMessage, declared []domain.ToolSchema) (*domain.ModelResponse, error) {
			if len(declared) != 1 {
				return nil, errors.New("tools not declared")
			}
			return &domain.ModelResponse{ToolCalls: []domain.ToolCall{
				{ID: "call-1", Name: "repository_search", Arguments: map[string]any{"query": "web framework"}},
			}}, nil
		},
		func(messages []domain.ModelMessage, _ []domain.ToolSchema) (*domain.ModelResponse, error) {
			last := messages[len(messages)-1]
			if last.Role != domain.RoleTool || last.ToolCallID != "call-1" {
				return nil, errors.New("tool result not fed back")
			}
			return &domain.ModelResponse{Content: "Try gin-gonic/gin."}, nil
		},
	}}
	uc := newChat(model, tools, newInMemoryMemory())

	result, err := uc.Chat(context.Background(), domain.ChatRequest{ConversationID: "conv-1", Message: "find a web framework"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if result.Answer != "Try gin-gonic/gin." {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(result.ToolsInvoked) != 1 || result.ToolsInvoked[0] != "repository_search" {
		t.Errorf("tools invoked = %v", result.ToolsInvoked)
	}
	if len(tools.invoked) != 1 {
		t.Errorf("dispatcher invoked %d times, want 1", len(tools.invoked))
	}
}

func TestChatToolRoundCapForcesFinalAnswer(t *testing.T) {
	toolCall := func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error) {
		return &domain.ModelResponse{ToolCalls: []domain.ToolCall{
			{ID: "c", Name: "repository_search", Arguments: map[string]any{"query": "x"}},
		}}, nil
	}
	model := &fakeModel{responses: []func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error){
		toolCall, toolCall, toolCall,
		func(_ []domain.ModelMessage, declared []domain.ToolSchema) (*domain.ModelResponse, error) {
			if len(declared) != 0 {
				return nil, errors.New("final call should not declare tools")
			}
			return &domain.ModelResponse{Content: "Based on what I found, try gin."}, nil
		},
	}}
	tools := &fakeDispatcher{}
	uc := newChat(model, tools, newInMemoryMemory())

	result, err := uc.Chat(context.Background(), domain.ChatRequest{ConversationID: "conv-1", Message: "find"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if result.Answer != "Based on what I found, try gin." {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(tools.invoked) != 3 {
		t.Errorf("tool rounds = %d, want capped at 3", len(tools.invoked))
	}
	if model.calls != 4 {
		t.Errorf("model calls = %d, want 3 rounds + forced final", model.calls)
	}
}

func TestChatRetriesTransientModelFailure(t *testing.T) {
	model := &fakeModel{responses: []func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error){
		func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error) {
			return nil, errors.New("upstream timeout")
		},
		textResponse("recovered"),
	}}
	uc := newChat(model, &fakeDispatcher{}, newInMemoryMemory())

	result, err := uc.Chat(context.Background(), domain.ChatRequest{ConversationID: "conv-1", Message: "hi"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if result.Answer != "recovered" || result.Attempts != 2 {
		t.Errorf("result = %+v, want recovery on attempt 2", result)
	}
}

func TestChatExhaustedRetriesReturnApology(t *testing.T) {
	model := &fakeModel{responses: []func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error){
		func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error) {
			return nil, errors.New("rate limit exceeded")
		},
	}}
	uc := newChat(model, &fakeDispatcher{}, newInMemoryMemory())

	result, err := uc.Chat(context.Background(), domain.ChatRequest{ConversationID: "conv-1", Message: "hi"})
	if err != nil {
		t.Fatalf("failures must not surface as errors, got %v", err)
	}
	if !strings.Contains(result.Answer, "I'm sorry") || !strings.Contains(result.Answer, "rate limit exceeded") {
		t.Errorf("answer = %q, want apology embedding last error", result.Answer)
	}
	if result.Attempts != 3 || result.FallbackReason != "retries_exhausted" {
		t.Errorf("result = %+v, want 3 attempts, retries_exhausted", result)
	}
}

func TestChatNonRetryableFailureStopsImmediately(t *testing.T) {
	model := &fakeModel{responses: []func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error){
		func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error) {
			return nil, errors.New("invalid api key")
		},
	}}
	uc := newChat(model, &fakeDispatcher{}, newInMemoryMemory())

	result, err := uc.Chat(context.Background(), domain.ChatRequest{ConversationID: "conv-1", Message: "hi"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if result.Attempts != 1 || result.FallbackReason != "model_error" {
		t.Errorf("result = %+v, want single attempt, model_error", result)
	}
}

func TestChatAnnotatesIdentityQuestionFromPriorTurns(t *testing.T) {
	memory := newInMemoryMemory()
	first := &fakeModel{responses: []func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error){
		textResponse("Nice to meet you, Dana!"),
	}}
	uc := newChat(first, &fakeDispatcher{}, memory)
	if _, err := uc.Chat(context.Background(), domain.ChatRequest{ConversationID: "conv-1", Message: "My name is Dana and I know Python"}); err != nil {
		t.Fatalf("first chat: %v", err)
	}

	var outbound string
	second := &fakeModel{responses: []func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error){
		func(messages []domain.ModelMessage, _ []domain.ToolSchema) (*domain.ModelResponse, error) {
			outbound = messages[len(messages)-1].Content
			return &domain.ModelResponse{Content: "Your name is Dana."}, nil
		},
	}}
	uc = newChat(second, &fakeDispatcher{}, memory)
	result, err := uc.Chat(context.Background(), domain.ChatRequest{ConversationID: "conv-1", Message: "What is my name?"})
	if err != nil {
		t.Fatalf("second chat: %v", err)
	}

	if !strings.Contains(outbound, "the user's name is Dana") {
		t.Errorf("outbound = %q, want identity annotation", outbound)
	}
	if !strings.HasSuffix(outbound, "What is my name?") {
		t.Errorf("outbound = %q, want original question preserved", outbound)
	}
	if result.MemoryHits == 0 {
		t.Errorf("memory hits = %d, want prior turns recalled", result.MemoryHits)
	}

	turns := memory.turns["conv-1"]
	for _, turn := range turns {
		if strings.Contains(turn.Content, "[Known user context") {
			t.Errorf("annotation leaked into stored turn: %q", turn.Content)
		}
	}
}

func TestChatRecallFailureDegradesToEmptyHistory(t *testing.T) {
	memory := newInMemoryMemory()
	memory.recallErr = errors.New("memory down")
	model := &fakeModel{responses: []func([]domain.ModelMessage, []domain.ToolSchema) (*domain.ModelResponse, error){
		textResponse("still works"),
	}}
	uc := newChat(model, &fakeDispatcher{}, memory)

	result, err := uc.Chat(context.Background(), domain.ChatRequest{ConversationID: "conv-1", Message: "hi"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if result.Answer != "still works" || result.MemoryHits != 0 {
		t.Errorf("result = %+v, want answer with empty history", result)
	}
}
