package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okravchuk/devfinder/internal/core/domain"
	"github.com/okravchuk/devfinder/internal/core/ports"
)

const profileRepoLimit = 5

// ProfileLookup fetches a public GitHub profile with the user's most recently
// updated repositories. The result is structured JSON so the model can quote
// individual fields instead of re-parsing prose.
type ProfileLookup struct {
	github ports.GitHubAPI
}

type profileRecord struct {
	Login           string       `json:"login"`
	Name            string       `json:"name,omitempty"`
	Bio             string       `json:"bio,omitempty"`
	Company         string       `json:"company,omitempty"`
	Location        string       `json:"location,omitempty"`
	Blog            string       `json:"blog,omitempty"`
	PublicRepos     int          `json:"public_repos"`
	Followers       int          `json:"followers"`
	Following       int          `json:"following"`
	ProfileURL      string       `json:"profile_url"`
	MemberSince     string       `json:"member_since"`
	TopRepositories []repoRecord `json:"top_repositories"`
}

type repoRecord struct {
	FullName    string `json:"full_name"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Stars       int    `json:"stars"`
	Language    string `json:"language,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

func NewProfileLookup(github ports.GitHubAPI) *ProfileLookup {
	return &ProfileLookup{github: github}
}

func (t *ProfileLookup) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        "profile_lookup",
		Description: "Fetch a GitHub user's public profile and their 5 most recently updated repositories.",
		Properties: map[string]domain.ToolProperty{
			"username": {
				Type:        "string",
				Description: "GitHub login, e.g. 'torvalds'.",
			},
		},
		Required: []string{"username"},
	}
}

func (t *ProfileLookup) Invoke(ctx context.Context, args map[string]any) string {
	username := stringArg(args, "username")
	if username == "" {
		return "A username is required to look up a profile."
	}

	profile, err := t.github.GetUser(ctx, username)
	if err != nil {
		return describeGitHubError(fmt.Sprintf("user %q", username), err)
	}

	record := profileRecord{
		Login:       profile.Login,
		Name:        profile.Name,
		Bio:         profile.Bio,
		Company:     profile.Company,
		Location:    profile.Location,
		Blog:        profile.Blog,
		PublicRepos: profile.PublicRepos,
		Followers:   profile.Followers,
		Following:   profile.Following,
		ProfileURL:  profile.HTMLURL,
		MemberSince: profile.CreatedAt.Format("2006-01-02"),
	}

	// A profile without its repositories is still useful; repo listing
	// failures degrade to an empty array rather than failing the whole call.
	repos, err := t.github.ListUserRepositories(ctx, profile.Login, profileRepoLimit)
	if err == nil {
		for _, repo := range repos {
			record.TopRepositories = append(record.TopRepositories, repoRecord{
				FullName:    repo.FullName,
				URL:         repo.HTMLURL,
				Description: repo.Description,
				Stars:       repo.Stars,
				Language:    repo.Language,
				UpdatedAt:   repo.UpdatedAt.Format(time.RFC3339),
			})
		}
	}
	if record.TopRepositories == nil {
		record.TopRepositories = []repoRecord{}
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Sprintf("Could not format the profile of %q: %v.", username, err)
	}
	return string(out)
}
