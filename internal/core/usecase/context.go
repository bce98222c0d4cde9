package usecase

import (
	"regexp"
	"strings"

	"github.com/okravchuk/devfinder/internal/core/domain"
)

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmy name is ([a-zA-Z][a-zA-Z'-]*)`),
		regexp.MustCompile(`(?i)\bi'm ([a-zA-Z][a-zA-Z'-]*)`),
		regexp.MustCompile(`(?i)\bi am ([a-zA-Z][a-zA-Z'-]*)`),
	}

	skillPattern      = regexp.MustCompile(`(?i)\b(javascript|python|react|node|angular|vue|typescript)\b`)
	interestPattern   = regexp.MustCompile(`(?i)\b(frontend|backend|fullstack|devops|mobile|machine learning|open source)\b`)
	experiencePattern = regexp.MustCompile(`(?i)\b(beginner|intermediate|advanced)\b`)

	// Words the introduction patterns capture that are never names:
	// "I'm a beginner", "I am not sure".
	nonNameWords = map[string]bool{
		"a": true, "an": true, "the": true, "not": true, "so": true,
		"just": true, "very": true, "really": true, "new": true,
		"also": true, "still": true, "currently": true,
	}
)

// ExtractUserContext infers stable user facts from prior turns. Pure function:
// scans turns in order, user role only; name and experience are first-match-
// wins, skills and interests accumulate as sets.
func ExtractUserContext(turns []domain.ConversationTurn) domain.UserContext {
	var uc domain.UserContext
	seenSkills := make(map[string]bool)
	seenInterests := make(map[string]bool)

	for _, turn := range turns {
		if turn.Role != domain.RoleUser {
			continue
		}

		if uc.Name == "" {
			uc.Name = extractName(turn.Content)
		}
		for _, match := range skillPattern.FindAllStringSubmatch(turn.Content, -1) {
			skill := strings.ToLower(match[1])
			if !seenSkills[skill] {
				seenSkills[skill] = true
				uc.Skills = append(uc.Skills, skill)
			}
		}
		for _, match := range interestPattern.FindAllStringSubmatch(turn.Content, -1) {
			interest := strings.ToLower(match[1])
			if !seenInterests[interest] {
				seenInterests[interest] = true
				uc.Interests = append(uc.Interests, interest)
			}
		}
		if uc.Experience == "" {
			if match := experiencePattern.FindStringSubmatch(turn.Content); match != nil {
				uc.Experience = domain.ExperienceLevel(strings.ToLower(match[1]))
			}
		}
	}
	return uc
}

func extractName(text string) string {
	for _, pattern := range namePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		candidate := strings.ToLower(match[1])
		if nonNameWords[candidate] || experiencePattern.MatchString(candidate) {
			continue
		}
		return strings.ToUpper(candidate[:1]) + candidate[1:]
	}
	return ""
}

// DeriveFlags marks what a turn's text mentions; computed once at record time.
func DeriveFlags(text string) domain.DerivedFlags {
	return domain.DerivedFlags{
		MentionsName:      mentionsName(text),
		MentionsSkills:    skillPattern.MatchString(text),
		MentionsInterests: interestPattern.MatchString(text),
	}
}

func mentionsName(text string) bool {
	if strings.Contains(strings.ToLower(text), "name") {
		return true
	}
	return extractName(text) != ""
}

// IsIdentityQuestion reports whether the current input asks about the user's
// own identity, which makes the orchestrator annotate the outbound text.
func IsIdentityQuestion(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "name") || strings.Contains(lower, "who am i")
}

// looksIdentityRelated widens IsIdentityQuestion for memory recall, where a
// filtered search pass is worth trying for any self-referential query.
func looksIdentityRelated(query string) bool {
	if IsIdentityQuestion(query) {
		return true
	}
	return strings.Contains(strings.ToLower(query), "about me")
}
