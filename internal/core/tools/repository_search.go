package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/okravchuk/devfinder/internal/core/domain"
	"github.com/okravchuk/devfinder/internal/core/ports"
)

const repoSearchLimit = 5

var validRepoSorts = map[string]bool{
	"stars":              true,
	"forks":              true,
	"help-wanted-issues": true,
	"updated":            true,
}

// RepositorySearch finds public repositories matching a free-text query, with
// optional language and beginner-friendliness qualifiers.
type RepositorySearch struct {
	github ports.GitHubAPI
}

func NewRepositorySearch(github ports.GitHubAPI) *RepositorySearch {
	return &RepositorySearch{github: github}
}

func (t *RepositorySearch) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        "repository_search",
		Description: "Search GitHub for public repositories matching a topic or keyword. Returns up to 5 repositories with stars, forks, language and links.",
		Properties: map[string]domain.ToolProperty{
			"query": {
				Type:        "string",
				Description: "Free-text search terms, e.g. 'web framework' or 'json parser'.",
			},
			"language": {
				Type:        "string",
				Description: "Restrict results to a programming language, e.g. 'go' or 'typescript'.",
			},
			"sort": {
				Type:        "string",
				Description: "Sort key: stars, forks, help-wanted-issues or updated. Defaults to stars.",
				Enum:        []string{"stars", "forks", "help-wanted-issues", "updated"},
			},
			"beginner_friendly": {
				Type:        "boolean",
				Description: "Only repositories that have good-first-issue labels.",
			},
		},
		Required: []string{"query"},
	}
}

func (t *RepositorySearch) Invoke(ctx context.Context, args map[string]any) string {
	query := stringArg(args, "query")
	if query == "" {
		return "A search query is required to look up repositories."
	}

	terms := []string{query}
	if language := stringArg(args, "language"); language != "" {
		terms = append(terms, "language:"+language)
	}
	if beginner, _ := args["beginner_friendly"].(bool); beginner {
		terms = append(terms, "good-first-issues:>0")
	}

	sort := strings.ToLower(stringArg(args, "sort"))
	if !validRepoSorts[sort] {
		sort = "stars"
	}

	repos, err := t.github.SearchRepositories(ctx, strings.Join(terms, " "), sort, repoSearchLimit)
	if err != nil {
		return describeGitHubError(fmt.Sprintf("repositories matching %q", query), err)
	}
	if len(repos) == 0 {
		return fmt.Sprintf("No repositories found for %q. Try broader search terms or drop the language filter.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d repositories for %q:\n\n", len(repos), query)
	for i, repo := range repos {
		desc := repo.Description
		if desc == "" {
			desc = "No description provided."
		}
		lang := repo.Language
		if lang == "" {
			lang = "n/a"
		}
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n   ⭐ %d stars | 🍴 %d forks | %s | updated %s\n\n",
			i+1, repo.FullName, repo.HTMLURL, desc,
			repo.Stars, repo.Forks, lang, repo.UpdatedAt.Format("2006-01-02"))
	}

	b.WriteString("Quick Links:\n")
	for _, repo := range repos {
		fmt.Fprintf(&b, "- %s: %s\n", repo.FullName, repo.HTMLURL)
	}
	return b.String()
}
