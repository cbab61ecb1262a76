package memory

import (
	"context"
	"testing"
	"time"

	"quizcode-service/internal/domain"
)

func TestAttemptStoreOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	seed := []domain.Attempt{
		{QuizID: "q", UserID: "u1", TotalPoints: 50, CompletedAt: time.Unix(300, 0)},
		{QuizID: "q", UserID: "u2", TotalPoints: 90, CompletedAt: time.Unix(100, 0)},
		{QuizID: "q", UserID: "u3", TotalPoints: 50, CompletedAt: time.Unix(200, 0)},
		{QuizID: "other", UserID: "u1", TotalPoints: 999, CompletedAt: time.Unix(400, 0)},
	}
	for _, a := range seed {
		if _, err := store.Append(ctx, a); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	top, err := store.TopByQuiz(ctx, "q", 10)
	if err != nil {
		t.Fatalf("top by quiz: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 attempts for quiz, got %d", len(top))
	}
	if top[0].UserID != "u2" {
		t.Fatalf("expected highest points first, got %+v", top[0])
	}
	// Equal points: earlier completion wins.
	if top[1].UserID != "u3" || top[2].UserID != "u1" {
		t.Fatalf("tie-break violated: %+v", top)
	}

	limited, err := store.TopByQuiz(ctx, "q", 2)
	if err != nil {
		t.Fatalf("top limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit respected, got %d", len(limited))
	}
}

func TestAttemptStoreUserQueries(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	seed := []domain.Attempt{
		{QuizID: "q", UserID: "u1", TotalPoints: 20, CompletedAt: time.Unix(100, 0)},
		{QuizID: "q", UserID: "u1", TotalPoints: 60, CompletedAt: time.Unix(200, 0)},
		{QuizID: "q", UserID: "u2", TotalPoints: 80, CompletedAt: time.Unix(300, 0)},
	}
	for _, a := range seed {
		if _, err := store.Append(ctx, a); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	best, err := store.BestByQuizAndUser(ctx, "q", "u1", 1)
	if err != nil {
		t.Fatalf("best by user: %v", err)
	}
	if len(best) != 1 || best[0].TotalPoints != 60 {
		t.Fatalf("expected best attempt with 60 points, got %+v", best)
	}

	count, err := store.CountWithMorePoints(ctx, "q", 60)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 attempt above 60 points, got %d", count)
	}

	history, err := store.ByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("by user: %v", err)
	}
	if len(history) != 2 || !history[0].CompletedAt.After(history[1].CompletedAt) {
		t.Fatalf("expected newest-first history, got %+v", history)
	}
}
