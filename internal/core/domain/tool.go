package domain

// ToolProperty describes one argument field in a tool schema.
type ToolProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolSchema is the model-facing declaration of a tool. Each tool keeps this
// schema in sync with its typed argument struct by hand; nothing is derived
// reflectively.
type ToolSchema struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Properties  map[string]ToolProperty `json:"properties"`
	Required    []string                `json:"required,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ModelMessage is one entry in the prompt sent to the chat model.
type ModelMessage struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ModelResponse is either a final answer (Content, no tool calls) or a request
// to invoke one or more tools.
type ModelResponse struct {
	Content          string     `json:"content"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
}
