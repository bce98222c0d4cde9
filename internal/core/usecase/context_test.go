package usecase

import (
	"testing"
	"time"

	"github.com/okravchuk/devfinder/internal/core/domain"
)

func userTurn(content string) domain.ConversationTurn {
	return domain.ConversationTurn{Role: domain.RoleUser, Content: content, CreatedAt: time.Now()}
}

func TestExtractUserContextIntroduction(t *testing.T) {
	uc := ExtractUserContext([]domain.ConversationTurn{
		userTurn("My name is Dana, I know React and Python, I'm a beginner"),
	})

	if uc.Name != "Dana" {
		t.Errorf("name = %q, want Dana", uc.Name)
	}
	if len(uc.Skills) != 2 || uc.Skills[0] != "react" || uc.Skills[1] != "python" {
		t.Errorf("skills = %v, want [react python]", uc.Skills)
	}
	if uc.Experience != domain.ExperienceBeginner {
		t.Errorf("experience = %q, want beginner", uc.Experience)
	}
}

func TestExtractUserContextFirstMatchWins(t *testing.T) {
	uc := ExtractUserContext([]domain.ConversationTurn{
		userTurn("my name is alice and I am an advanced developer"),
		userTurn("actually my name is Bob and I'm a beginner"),
	})

	if uc.Name != "Alice" {
		t.Errorf("name = %q, want Alice", uc.Name)
	}
	if uc.Experience != domain.ExperienceAdvanced {
		t.Errorf("experience = %q, want advanced", uc.Experience)
	}
}

func TestExtractUserContextAccumulatesSkillsAcrossTurns(t *testing.T) {
	uc := ExtractUserContext([]domain.ConversationTurn{
		userTurn("I use TypeScript daily"),
		userTurn("also some typescript and Vue"),
	})

	if len(uc.Skills) != 2 || uc.Skills[0] != "typescript" || uc.Skills[1] != "vue" {
		t.Errorf("skills = %v, want deduplicated [typescript vue]", uc.Skills)
	}
}

func TestExtractUserContextWholeWordOnly(t *testing.T) {
	uc := ExtractUserContext([]domain.ConversationTurn{
		userTurn("I like reactive programming and nodemon"),
	})

	if len(uc.Skills) != 0 {
		t.Errorf("skills = %v, want none from substring matches", uc.Skills)
	}
}

func TestExtractUserContextIgnoresAssistantTurns(t *testing.T) {
	uc := ExtractUserContext([]domain.ConversationTurn{
		{Role: domain.RoleAssistant, Content: "My name is DevFinder and I know Python"},
	})

	if uc.Name != "" || len(uc.Skills) != 0 {
		t.Errorf("context = %+v, want empty from assistant-only history", uc)
	}
}

func TestExtractUserContextInterests(t *testing.T) {
	uc := ExtractUserContext([]domain.ConversationTurn{
		userTurn("I'm interested in open source and machine learning, mostly backend"),
	})

	want := []string{"open source", "machine learning", "backend"}
	if len(uc.Interests) != len(want) {
		t.Fatalf("interests = %v, want %v", uc.Interests, want)
	}
	for i, interest := range want {
		if uc.Interests[i] != interest {
			t.Errorf("interests[%d] = %q, want %q", i, uc.Interests[i], interest)
		}
	}
}

func TestExtractNameSkipsFillerWords(t *testing.T) {
	uc := ExtractUserContext([]domain.ConversationTurn{
		userTurn("I'm a beginner looking for projects"),
	})

	if uc.Name != "" {
		t.Errorf("name = %q, want empty for non-name introduction", uc.Name)
	}
}

func TestDeriveFlags(t *testing.T) {
	cases := []struct {
		text string
		want domain.DerivedFlags
	}{
		{"my name is Dana", domain.DerivedFlags{MentionsName: true}},
		{"what is my name?", domain.DerivedFlags{MentionsName: true}},
		{"I know python", domain.DerivedFlags{MentionsSkills: true}},
		{"I love devops", domain.DerivedFlags{MentionsInterests: true}},
		{"show me gin issues", domain.DerivedFlags{}},
	}
	for _, tc := range cases {
		if got := DeriveFlags(tc.text); got != tc.want {
			t.Errorf("DeriveFlags(%q) = %+v, want %+v", tc.text, got, tc.want)
		}
	}
}

func TestIsIdentityQuestion(t *testing.T) {
	cases := map[string]bool{
		"What is my name?":        true,
		"WHO AM I to you":         true,
		"find me a go repository": false,
	}
	for text, want := range cases {
		if got := IsIdentityQuestion(text); got != want {
			t.Errorf("IsIdentityQuestion(%q) = %v, want %v", text, got, want)
		}
	}
}
