// Package openaicompat talks to any OpenAI-compatible chat-completions API.
// The provider's tool-calling wire format is confined to this package; the
// core only sees domain.ModelMessage and domain.ToolSchema.
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okravchuk/devfinder/internal/core/domain"
)

type Client struct {
	baseURL    string
	apiKey     string
	chatModel  string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, apiKey, chatModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) ChatModelName() string {
	return c.chatModel
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

// Complete invokes the chat model with the declared tool set and returns
// either final text or the requested tool calls.
func (c *Client) Complete(ctx context.Context, messages []domain.ModelMessage, tools []domain.ToolSchema) (*domain.ModelResponse, error) {
	request := map[string]any{
		"model":    c.chatModel,
		"messages": encodeMessages(messages),
	}
	if len(tools) > 0 {
		request["tools"] = encodeTools(tools)
		request["tool_choice"] = "auto"
	}

	var response struct {
		Choices []struct {
			Message wireMessage `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := c.postJSON(ctx, "/chat/completions", request, &response, "chat"); err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("model chat: empty choices in response")
	}

	message := response.Choices[0].Message
	out := &domain.ModelResponse{
		Content:          strings.TrimSpace(message.Content),
		PromptTokens:     response.Usage.PromptTokens,
		CompletionTokens: response.Usage.CompletionTokens,
	}
	for _, call := range message.ToolCalls {
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("failed to parse stream of tool arguments for %s: %w", call.Function.Name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

// EmbedQuery builds the vector for one text via the embeddings endpoint.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": c.embedModel,
		"input": []string{text},
	}

	var response struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/embeddings", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Data[0].Embedding, nil
}

func encodeMessages(messages []domain.ModelMessage) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		wire := wireMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			arguments, _ := json.Marshal(call.Arguments)
			encoded := wireToolCall{ID: call.ID, Type: "function"}
			encoded.Function.Name = call.Name
			encoded.Function.Arguments = string(arguments)
			wire.ToolCalls = append(wire.ToolCalls, encoded)
		}
		out = append(out, wire)
	}
	return out
}

func encodeTools(tools []domain.ToolSchema) []wireTool {
	out := make([]wireTool, 0, len(tools))
	for _, schema := range tools {
		properties := make(map[string]any, len(schema.Properties))
		for name, prop := range schema.Properties {
			field := map[string]any{
				"type":        prop.Type,
				"description": prop.Description,
			}
			if len(prop.Enum) > 0 {
				field["enum"] = prop.Enum
			}
			properties[name] = field
		}

		tool := wireTool{Type: "function"}
		tool.Function.Name = schema.Name
		tool.Function.Description = schema.Description
		tool.Function.Parameters = map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(schema.Required) > 0 {
			tool.Function.Parameters["required"] = schema.Required
		}
		out = append(out, tool)
	}
	return out
}
