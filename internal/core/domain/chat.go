package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// DerivedFlags mark what a turn's text mentions. They are computed once at
// record time and never change afterwards; the memory search uses them as
// payload filters.
type DerivedFlags struct {
	MentionsName      bool `json:"mentions_name"`
	MentionsSkills    bool `json:"mentions_skills"`
	MentionsInterests bool `json:"mentions_interests"`
}

// ConversationTurn is one persisted message in a conversation. Immutable once
// created.
type ConversationTurn struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	Role           Role         `json:"role"`
	Content        string       `json:"content"`
	Flags          DerivedFlags `json:"flags"`
	CreatedAt      time.Time    `json:"created_at"`
}

// TurnHit is a similarity-search result with its score.
type TurnHit struct {
	Turn  ConversationTurn `json:"turn"`
	Score float64          `json:"score"`
}

// TurnFilter narrows a memory search beyond the conversation scope.
type TurnFilter struct {
	MentionsName bool `json:"mentions_name"`
}

type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceAdvanced     ExperienceLevel = "advanced"
)

// UserContext holds facts inferred from prior user turns. Built fresh per
// request and never persisted directly.
type UserContext struct {
	Name       string          `json:"name,omitempty"`
	Skills     []string        `json:"skills,omitempty"`
	Interests  []string        `json:"interests,omitempty"`
	Experience ExperienceLevel `json:"experience,omitempty"`
}

type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type ChatResult struct {
	ConversationID string   `json:"conversation_id"`
	Answer         string   `json:"answer"`
	Attempts       int      `json:"attempts"`
	MemoryHits     int      `json:"memory_hits"`
	ToolsInvoked   []string `json:"tools_invoked,omitempty"`
	Ephemeral      bool     `json:"ephemeral"`
	FallbackReason string   `json:"fallback_reason,omitempty"`
}

type AgentLimits struct {
	MaxAttempts   int           `json:"max_attempts"`
	Timeout       time.Duration `json:"timeout"`
	MemoryTopK    int           `json:"memory_top_k"`
	MaxToolRounds int           `json:"max_tool_rounds"`
}
