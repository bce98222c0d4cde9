// Package github is a thin client for the GitHub REST API covering the
// surface the agent tools need: repository search, repository lookup, issue
// listing, and user profiles.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okravchuk/devfinder/internal/core/domain"
)

const apiVersion = "2022-11-28"

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New builds a client with a client-side rate limiter so bursts of tool calls
// stay inside GitHub's secondary limits. rps <= 0 disables the limiter.
func New(baseURL, token string, rps int) *Client {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    limiter,
	}
}

type repositoryItem struct {
	FullName    string    `json:"full_name"`
	HTMLURL     string    `json:"html_url"`
	Description string    `json:"description"`
	Stars       int       `json:"stargazers_count"`
	Forks       int       `json:"forks_count"`
	Language    string    `json:"language"`
	OpenIssues  int       `json:"open_issues_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r repositoryItem) toDomain() domain.Repository {
	return domain.Repository{
		FullName:    r.FullName,
		HTMLURL:     r.HTMLURL,
		Description: r.Description,
		Stars:       r.Stars,
		Forks:       r.Forks,
		Language:    r.Language,
		OpenIssues:  r.OpenIssues,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (c *Client) SearchRepositories(ctx context.Context, query, sort string, limit int) ([]domain.Repository, error) {
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{}
	params.Set("q", query)
	if sort != "" {
		params.Set("sort", sort)
	}
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(limit))

	var response struct {
		Items []repositoryItem `json:"items"`
	}
	if err := c.getJSON(ctx, "/search/repositories", params, &response); err != nil {
		return nil, err
	}

	out := make([]domain.Repository, 0, len(response.Items))
	for _, item := range response.Items {
		out = append(out, item.toDomain())
	}
	return out, nil
}

func (c *Client) GetRepository(ctx context.Context, fullName string) (*domain.Repository, error) {
	var item repositoryItem
	if err := c.getJSON(ctx, "/repos/"+strings.Trim(fullName, "/"), nil, &item); err != nil {
		return nil, err
	}
	repo := item.toDomain()
	return &repo, nil
}

func (c *Client) ListIssues(ctx context.Context, fullName, state, labels string, limit int) ([]domain.Issue, error) {
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{}
	if state != "" {
		params.Set("state", state)
	}
	if labels != "" {
		params.Set("labels", labels)
	}
	params.Set("sort", "updated")
	params.Set("direction", "desc")
	params.Set("per_page", strconv.Itoa(limit))

	var items []struct {
		Number  int    `json:"number"`
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
		State   string `json:"state"`
		User    struct {
			Login string `json:"login"`
		} `json:"user"`
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
		Comments    int             `json:"comments"`
		PullRequest json.RawMessage `json:"pull_request,omitempty"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}
	path := fmt.Sprintf("/repos/%s/issues", strings.Trim(fullName, "/"))
	if err := c.getJSON(ctx, path, params, &items); err != nil {
		return nil, err
	}

	out := make([]domain.Issue, 0, len(items))
	for _, item := range items {
		labelNames := make([]string, 0, len(item.Labels))
		for _, label := range item.Labels {
			labelNames = append(labelNames, label.Name)
		}
		out = append(out, domain.Issue{
			Number:        item.Number,
			Title:         item.Title,
			HTMLURL:       item.HTMLURL,
			State:         item.State,
			Author:        item.User.Login,
			Labels:        labelNames,
			Comments:      item.Comments,
			IsPullRequest: len(item.PullRequest) > 0,
			CreatedAt:     item.CreatedAt,
			UpdatedAt:     item.UpdatedAt,
		})
	}
	return out, nil
}

func (c *Client) GetUser(ctx context.Context, username string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(username), nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) ListUserRepositories(ctx context.Context, username string, limit int) ([]domain.Repository, error) {
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{}
	params.Set("sort", "updated")
	params.Set("per_page", strconv.Itoa(limit))

	var items []repositoryItem
	if err := c.getJSON(ctx, fmt.Sprintf("/users/%s/repos", url.PathEscape(username)), params, &items); err != nil {
		return nil, err
	}

	out := make([]domain.Repository, 0, len(items))
	for _, item := range items {
		out = append(out, item.toDomain())
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("github rate wait: %w", err)
		}
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.WrapError(domain.ErrNotFound, "github "+path, fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode == http.StatusForbidden:
		return domain.WrapError(domain.ErrRateLimited, "github "+path, fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode >= 300:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("github %s status: %s: %s", path, resp.Status, strings.TrimSpace(string(raw)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	return nil
}
