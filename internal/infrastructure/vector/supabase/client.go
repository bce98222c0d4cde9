// Package supabase implements the memory vector store against a Supabase
// REST endpoint: turns are rows in the memory table, similarity search goes
// through the table's match_<table> RPC function.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okravchuk/devfinder/internal/core/domain"
)

type Client struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
}

func New(baseURL, apiKey, table string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		table:      table,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type turnRow struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	Role              string    `json:"role"`
	Content           string    `json:"content"`
	MentionsName      bool      `json:"mentions_name"`
	MentionsSkills    bool      `json:"mentions_skills"`
	MentionsInterests bool      `json:"mentions_interests"`
	Embedding         []float32 `json:"embedding,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	Similarity        float64   `json:"similarity,omitempty"`
}

func (c *Client) IndexTurn(ctx context.Context, turn domain.ConversationTurn, vector []float32) error {
	if len(vector) == 0 {
		return nil
	}

	row := turnRow{
		ID:                turn.ID,
		ConversationID:    turn.ConversationID,
		Role:              string(turn.Role),
		Content:           turn.Content,
		MentionsName:      turn.Flags.MentionsName,
		MentionsSkills:    turn.Flags.MentionsSkills,
		MentionsInterests: turn.Flags.MentionsInterests,
		Embedding:         vector,
		CreatedAt:         turn.CreatedAt,
	}

	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, c.table)
	return c.postJSON(ctx, url, row, nil, "memory upsert")
}

func (c *Client) SearchTurns(
	ctx context.Context,
	conversationID string,
	vector []float32,
	limit int,
	filter *domain.TurnFilter,
) ([]domain.TurnHit, error) {
	if len(vector) == 0 || strings.TrimSpace(conversationID) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 6
	}

	request := map[string]any{
		"query_embedding": vector,
		"match_count":     limit,
		"conversation_id": conversationID,
	}
	if filter != nil && filter.MentionsName {
		request["require_mentions_name"] = true
	}

	url := fmt.Sprintf("%s/rest/v1/rpc/match_%s", c.baseURL, c.table)
	var rows []turnRow
	if err := c.postJSON(ctx, url, request, &rows, "memory query"); err != nil {
		return nil, err
	}

	out := make([]domain.TurnHit, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.TurnHit{
			Score: row.Similarity,
			Turn: domain.ConversationTurn{
				ID:             row.ID,
				ConversationID: row.ConversationID,
				Role:           domain.Role(row.Role),
				Content:        row.Content,
				Flags: domain.DerivedFlags{
					MentionsName:      row.MentionsName,
					MentionsSkills:    row.MentionsSkills,
					MentionsInterests: row.MentionsInterests,
				},
				CreatedAt: row.CreatedAt,
			},
		})
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s status: %s: %s", operation, resp.Status, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
