package redis

import (
	"context"
	"testing"
	"time"

	"quizcode-service/internal/domain"
	"quizcode-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCachedCatalogCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)

	source := memory.NewStaticCatalog()
	quiz, err := source.AddQuiz(ctx, domain.Quiz{ID: "quiz-1", Title: "Quiz", Code: "1234", Questions: sampleQuestions()})
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	counting := &countingCatalog{StaticCatalog: source}
	cached := NewCachedCatalog(client, counting, time.Minute)

	got, err := cached.GetQuizByCode(ctx, quiz.Code)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if got.Title != "Quiz" || got.Questions[0].CorrectOption != "4" {
		t.Fatalf("unexpected quiz from source: %+v", got)
	}
	if counting.calls != 1 {
		t.Fatalf("expected source loaded once, got %d", counting.calls)
	}
	if !mr.Exists("quiz:code:1234") || !mr.Exists("quiz:id:quiz-1") {
		t.Fatalf("expected quiz cached under both keys")
	}

	// Second read of either key must hit Redis, not the source.
	if _, err := cached.GetQuizByCode(ctx, quiz.Code); err != nil {
		t.Fatalf("get quiz again: %v", err)
	}
	if _, err := cached.GetQuizByID(ctx, quiz.ID); err != nil {
		t.Fatalf("get quiz by id: %v", err)
	}
	if counting.calls != 1 {
		t.Fatalf("expected cache hits, source calls=%d", counting.calls)
	}
}

type countingCatalog struct {
	*memory.StaticCatalog
	calls int
}

func (c *countingCatalog) GetQuizByCode(ctx context.Context, code string) (domain.Quiz, error) {
	c.calls++
	return c.StaticCatalog.GetQuizByCode(ctx, code)
}

func (c *countingCatalog) GetQuizByID(ctx context.Context, id string) (domain.Quiz, error) {
	c.calls++
	return c.StaticCatalog.GetQuizByID(ctx, id)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			Text:          "What is 2 + 2?",
			Options:       []string{"3", "4", "5"},
			CorrectOption: "4",
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
