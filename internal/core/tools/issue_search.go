package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okravchuk/devfinder/internal/core/domain"
	"github.com/okravchuk/devfinder/internal/core/ports"
)

const (
	issueListLimit   = 10
	invocationWindow = 2
)

// IssueSearch lists issues for a repository named loosely by the model: a bare
// name, owner/name, or a full URL all resolve to a canonical repository before
// the issue listing runs.
type IssueSearch struct {
	github ports.GitHubAPI

	mu     sync.Mutex
	recent []IssueInvocation
}

type IssueInvocation struct {
	Input    string
	Resolved string
	At       time.Time
}

func NewIssueSearch(github ports.GitHubAPI) *IssueSearch {
	return &IssueSearch{github: github}
}

func (t *IssueSearch) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        "issue_search",
		Description: "List recent issues of a GitHub repository. Accepts a repository name, owner/name, or full URL. Optionally filter by labels and state.",
		Properties: map[string]domain.ToolProperty{
			"repository": {
				Type:        "string",
				Description: "Repository to inspect: 'react', 'facebook/react', or 'https://github.com/facebook/react'.",
			},
			"labels": {
				Type:        "string",
				Description: "Comma-separated label filter, e.g. 'good first issue,bug'.",
			},
			"state": {
				Type:        "string",
				Description: "Issue state filter. Defaults to open.",
				Enum:        []string{"open", "closed", "all"},
			},
		},
		Required: []string{"repository"},
	}
}

func (t *IssueSearch) Invoke(ctx context.Context, args map[string]any) string {
	input := stringArg(args, "repository")
	if input == "" {
		return "A repository name is required to look up issues."
	}

	state := strings.ToLower(stringArg(args, "state"))
	switch state {
	case "open", "closed", "all":
	default:
		state = "open"
	}
	labels := stringArg(args, "labels")

	fullName, result := t.resolve(ctx, input)
	t.remember(input, fullName)
	if fullName == "" {
		return result
	}

	issues, err := t.github.ListIssues(ctx, fullName, state, labels, issueListLimit)
	if err != nil {
		return describeGitHubError(fmt.Sprintf("issues of %s", fullName), err)
	}

	filtered := issues[:0]
	for _, issue := range issues {
		if !issue.IsPullRequest {
			filtered = append(filtered, issue)
		}
	}
	if len(filtered) == 0 {
		return fmt.Sprintf("No %s issues found in %s%s.", state, fullName, labelSuffix(labels))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d %s issues in %s%s:\n\n", len(filtered), state, fullName, labelSuffix(labels))
	for i, issue := range filtered {
		fmt.Fprintf(&b, "%d. #%d %s\n   %s\n   state: %s | author: %s", i+1, issue.Number, issue.Title, issue.HTMLURL, issue.State, issue.Author)
		if len(issue.Labels) > 0 {
			fmt.Fprintf(&b, " | labels: %s", strings.Join(issue.Labels, ", "))
		}
		fmt.Fprintf(&b, "\n   created %s, updated %s\n\n",
			issue.CreatedAt.Format("2006-01-02"), issue.UpdatedAt.Format("2006-01-02"))
	}
	return b.String()
}

// resolve turns loose user input into a canonical owner/name. On failure it
// returns an empty name and the user-facing message to emit instead.
func (t *IssueSearch) resolve(ctx context.Context, input string) (string, string) {
	name := normalizeRepositoryInput(input)
	if name == "" {
		return "", fmt.Sprintf("Could not understand %q as a repository name.", input)
	}

	if strings.Contains(name, "/") {
		repo, err := t.github.GetRepository(ctx, name)
		if err == nil {
			return repo.FullName, ""
		}
		// Direct lookup may fail on stale or guessed owners; fall through to
		// search using the repository part alone.
		name = name[strings.LastIndex(name, "/")+1:]
		if name == "" {
			return "", describeGitHubError(fmt.Sprintf("repository %q", input), err)
		}
	}

	queries := []string{
		fmt.Sprintf("%s in:name", name),
		fmt.Sprintf("org:%s", name),
		fmt.Sprintf("%s in:name,description", name),
	}
	for _, q := range queries {
		repos, err := t.github.SearchRepositories(ctx, q, "stars", 1)
		if err != nil || len(repos) == 0 {
			continue
		}
		return repos[0].FullName, ""
	}
	return "", fmt.Sprintf("Repository %q was not found on GitHub. Try the full owner/name form.", input)
}

func normalizeRepositoryInput(input string) string {
	name := strings.ToLower(strings.TrimSpace(input))
	for _, prefix := range []string{"https://", "http://"} {
		name = strings.TrimPrefix(name, prefix)
	}
	name = strings.TrimPrefix(name, "www.")
	name = strings.TrimPrefix(name, "github.com/")
	name = strings.TrimSuffix(name, ".git")
	return strings.Trim(name, "/")
}

func labelSuffix(labels string) string {
	if labels == "" {
		return ""
	}
	return fmt.Sprintf(" labeled %q", labels)
}

func (t *IssueSearch) remember(input, resolved string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recent = append(t.recent, IssueInvocation{Input: input, Resolved: resolved, At: time.Now()})
	if len(t.recent) > invocationWindow {
		t.recent = t.recent[len(t.recent)-invocationWindow:]
	}
}

// RecentInvocations reports the last resolutions performed, newest last. Used
// for diagnostics only.
func (t *IssueSearch) RecentInvocations() []IssueInvocation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]IssueInvocation, len(t.recent))
	copy(out, t.recent)
	return out
}
