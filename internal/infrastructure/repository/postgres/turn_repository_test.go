package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/okravchuk/devfinder/internal/core/domain"
)

func TestAppendTurn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewTurnRepository(db)
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO conversation_turns").
		WithArgs("turn-1", "conv-1", "user", "my name is Dana", true, false, false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.AppendTurn(context.Background(), domain.ConversationTurn{
		ID:             "turn-1",
		ConversationID: "conv-1",
		Role:           domain.RoleUser,
		Content:        "my name is Dana",
		Flags:          domain.DerivedFlags{MentionsName: true},
		CreatedAt:      now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentTurnsReturnsChronologicalOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewTurnRepository(db)
	older := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Minute)

	rows := sqlmock.NewRows([]string{
		"id", "conversation_id", "role", "content",
		"mentions_name", "mentions_skills", "mentions_interests", "created_at",
	}).
		AddRow("t2", "conv-1", "assistant", "hello Dana", false, false, false, newer).
		AddRow("t1", "conv-1", "user", "my name is Dana", true, false, false, older)

	mock.ExpectQuery("SELECT id, conversation_id, role, content").
		WithArgs("conv-1", 6).
		WillReturnRows(rows)

	turns, err := repo.ListRecentTurns(context.Background(), "conv-1", 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].ID != "t1" || turns[1].ID != "t2" {
		t.Fatalf("expected oldest-first order, got %s then %s", turns[0].ID, turns[1].ID)
	}
	if turns[0].Role != domain.RoleUser || !turns[0].Flags.MentionsName {
		t.Fatalf("unexpected turn %+v", turns[0])
	}
}

func TestListRecentTurnsZeroLimit(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewTurnRepository(db)
	turns, err := repo.ListRecentTurns(context.Background(), "conv-1", 0)
	if err != nil || turns != nil {
		t.Fatalf("zero limit should be a no-op, got turns=%v err=%v", turns, err)
	}
}
