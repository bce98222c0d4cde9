package tools

import (
	"errors"
	"fmt"

	"github.com/okravchuk/devfinder/internal/core/domain"
)

// describeGitHubError renders an API failure as user-facing tool output.
// Tools never surface Go errors to the orchestrator.
func describeGitHubError(subject string, err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("%s was not found on GitHub. It may be private, renamed, or misspelled.", subject)
	case errors.Is(err, domain.ErrRateLimited):
		return fmt.Sprintf("GitHub rate limit reached while looking up %s. Please try again in a minute.", subject)
	default:
		return fmt.Sprintf("GitHub request for %s failed: %v.", subject, err)
	}
}
