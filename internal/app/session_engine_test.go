package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"quizcode-service/internal/app"
	"quizcode-service/internal/domain"
	"quizcode-service/internal/infra/memory"
)

func TestLoadByCodeStartsSession(t *testing.T) {
	catalog := newTestCatalog(t, threeQuestionQuiz())
	engine := app.NewEngineWithClock(catalog, memory.NewAttemptStore(), app.StaticAuth{UserID: "u1", DisplayName: "Alice"}, time.Now, time.Hour)

	engine.LoadByCode(context.Background(), "1234")

	state := engine.State()
	if state.Phase != domain.PhaseInProgress {
		t.Fatalf("expected session in progress, got %s (err=%q)", state.Phase, state.Err)
	}
	if !state.TimerRunning || state.TimeRemaining != app.QuestionTimeLimit {
		t.Fatalf("expected a fresh 30s countdown, got running=%v remaining=%d", state.TimerRunning, state.TimeRemaining)
	}
	if state.MaxPossiblePoints != 3*app.QuestionTimeLimit {
		t.Fatalf("expected max points 90, got %d", state.MaxPossiblePoints)
	}
	if state.CurrentQuestion != 0 || state.Completed {
		t.Fatalf("expected session at question 0, got %+v", state)
	}
}

func TestLoadByCodeSamplesLargeQuizzes(t *testing.T) {
	quiz := domain.Quiz{ID: "quiz-big", Title: "Big", Code: "9876"}
	prompts := make(map[string]bool)
	for i := 0; i < 15; i++ {
		text := fmt.Sprintf("question %d", i)
		prompts[text] = true
		quiz.Questions = append(quiz.Questions, domain.Question{
			Text:          text,
			Options:       []string{"right", "wrong"},
			CorrectOption: "right",
		})
	}
	catalog := newTestCatalog(t, quiz)
	engine := app.NewEngineWithClock(catalog, memory.NewAttemptStore(), app.StaticAuth{UserID: "u1"}, time.Now, time.Hour)

	engine.LoadByCode(context.Background(), "9876")

	state := engine.State()
	if state.Quiz == nil || len(state.Quiz.Questions) != 10 {
		t.Fatalf("expected 10 sampled questions, got %+v", state.Quiz)
	}
	if state.MaxPossiblePoints != 10*app.QuestionTimeLimit {
		t.Fatalf("expected max points from sampled count, got %d", state.MaxPossiblePoints)
	}
	for _, q := range state.Quiz.Questions {
		if !prompts[q.Text] {
			t.Fatalf("sampled question %q is not from the source quiz", q.Text)
		}
		if q.CorrectOption != "right" {
			t.Fatalf("correct option lost in shuffle: %+v", q)
		}
		if len(q.Options) != 2 {
			t.Fatalf("options lost in shuffle: %+v", q)
		}
	}
}

func TestLoadByCodeNotFound(t *testing.T) {
	catalog := newTestCatalog(t, threeQuestionQuiz())
	engine := app.NewEngineWithClock(catalog, memory.NewAttemptStore(), app.StaticAuth{UserID: "u1"}, time.Now, time.Hour)

	engine.LoadByCode(context.Background(), "0000")

	state := engine.State()
	if state.Phase != domain.PhaseError || state.Err == "" {
		t.Fatalf("expected error state for unknown code, got %+v", state)
	}
	if state.TimerRunning {
		t.Fatalf("timer must not start when no quiz was found")
	}
}

func TestTimedRunScoresAttempt(t *testing.T) {
	catalog := newTestCatalog(t, threeQuestionQuiz())
	store := memory.NewAttemptStore()
	engine := app.NewEngineWithClock(catalog, store, app.StaticAuth{UserID: "u1", DisplayName: "Alice"}, time.Now, time.Millisecond)

	updates, cancel := engine.Subscribe()
	defer cancel()

	engine.LoadByCode(context.Background(), "1234")
	engine.SelectAnswerAt(0, "A", 25)
	engine.SelectAnswerAt(1, "B", 10)
	engine.GoToQuestion(2) // leave the last question to time out

	waitForState(t, updates, func(s domain.SessionState) bool { return s.Completed })

	attempt := waitForAttempt(t, store, "quiz-3q")
	if attempt.CorrectAnswers != 1 {
		t.Fatalf("expected 1 correct answer, got %d", attempt.CorrectAnswers)
	}
	if attempt.TotalPoints != 25 || attempt.MaxPossiblePoints != 90 {
		t.Fatalf("expected 25/90 points, got %d/%d", attempt.TotalPoints, attempt.MaxPossiblePoints)
	}
	if attempt.Score != 28 {
		t.Fatalf("expected score 28, got %d", attempt.Score)
	}
	if len(attempt.Answers) != 3 {
		t.Fatalf("expected one answer per question, got %d", len(attempt.Answers))
	}
	timedOut := attempt.Answers[2]
	if timedOut.SelectedOption != "" || timedOut.TimeRemaining != 0 || timedOut.PointsEarned != 0 || timedOut.IsCorrect {
		t.Fatalf("timed out question should yield an empty zero-point answer, got %+v", timedOut)
	}
	sum := 0
	for _, a := range attempt.Answers {
		sum += a.PointsEarned
	}
	if sum != attempt.TotalPoints {
		t.Fatalf("answer points sum %d does not match attempt total %d", sum, attempt.TotalPoints)
	}
}

func TestTimeoutRecordsEmptyAnswerAndAdvances(t *testing.T) {
	quiz := threeQuestionQuiz()
	catalog := newTestCatalog(t, quiz)
	engine := app.NewEngineWithClock(catalog, memory.NewAttemptStore(), app.StaticAuth{}, time.Now, time.Millisecond)

	updates, cancel := engine.Subscribe()
	defer cancel()

	engine.LoadByCode(context.Background(), "1234")

	state := waitForState(t, updates, func(s domain.SessionState) bool { return s.CurrentQuestion == 1 })
	if got, ok := state.SelectedAnswers[0]; !ok || got != "" {
		t.Fatalf("expected empty answer recorded on timeout, got %q (recorded=%v)", got, ok)
	}
	if state.AnswerTimes[0] != 0 {
		t.Fatalf("expected zero time remaining on timeout, got %d", state.AnswerTimes[0])
	}
	if state.TimeRemaining != app.QuestionTimeLimit && state.TimeRemaining < app.QuestionTimeLimit-2 {
		t.Fatalf("countdown should restart after auto-advance, got %d", state.TimeRemaining)
	}
}

func TestCompleteWithoutAuthWritesNothing(t *testing.T) {
	catalog := newTestCatalog(t, threeQuestionQuiz())
	store := memory.NewAttemptStore()
	engine := app.NewEngineWithClock(catalog, store, app.StaticAuth{}, time.Now, time.Hour)

	engine.LoadByCode(context.Background(), "1234")
	engine.SelectAnswerAt(0, "A", 25)
	engine.CompleteQuiz(context.Background())

	state := engine.State()
	if state.Completed {
		t.Fatalf("anonymous completion must not mark the session completed")
	}
	if state.Err == "" {
		t.Fatalf("expected a not-authenticated error on the snapshot")
	}

	time.Sleep(50 * time.Millisecond)
	attempts, err := store.TopByQuiz(context.Background(), "quiz-3q", 10)
	if err != nil {
		t.Fatalf("query store: %v", err)
	}
	if len(attempts) != 0 {
		t.Fatalf("expected no stored attempt, got %d", len(attempts))
	}
}

func TestNavigationClampsAndRestartsCountdown(t *testing.T) {
	catalog := newTestCatalog(t, threeQuestionQuiz())
	engine := app.NewEngineWithClock(catalog, memory.NewAttemptStore(), app.StaticAuth{UserID: "u1"}, time.Now, 30*time.Millisecond)

	updates, cancel := engine.Subscribe()
	defer cancel()

	engine.LoadByCode(context.Background(), "1234")
	waitForState(t, updates, func(s domain.SessionState) bool { return s.TimeRemaining <= app.QuestionTimeLimit-2 })

	engine.NextQuestion()
	state := waitForState(t, updates, func(s domain.SessionState) bool { return s.CurrentQuestion == 1 })
	if state.TimeRemaining < app.QuestionTimeLimit-1 {
		t.Fatalf("countdown should reset on navigation, got %d", state.TimeRemaining)
	}

	// Ticks must decrement one second at a time; a leftover timer from before
	// the navigation would show up as a double decrement.
	previous := state.TimeRemaining
	for i := 0; i < 3; i++ {
		state = waitForState(t, updates, func(s domain.SessionState) bool { return s.TimeRemaining < previous })
		if state.TimeRemaining != previous-1 {
			t.Fatalf("expected single decrement from %d, got %d", previous, state.TimeRemaining)
		}
		previous = state.TimeRemaining
	}

	engine.GoToQuestion(10)
	state = waitForState(t, updates, func(s domain.SessionState) bool { return s.CurrentQuestion == 2 })
	if state.TimeRemaining < app.QuestionTimeLimit-1 {
		t.Fatalf("countdown should reset on clamped jump, got %d", state.TimeRemaining)
	}

	engine.GoToQuestion(-5)
	waitForState(t, updates, func(s domain.SessionState) bool { return s.CurrentQuestion == 0 })
}

func TestPauseAndResume(t *testing.T) {
	catalog := newTestCatalog(t, threeQuestionQuiz())
	engine := app.NewEngineWithClock(catalog, memory.NewAttemptStore(), app.StaticAuth{UserID: "u1"}, time.Now, 10*time.Millisecond)

	engine.LoadByCode(context.Background(), "1234")
	engine.PauseTimer()

	state := engine.State()
	if state.TimerRunning {
		t.Fatalf("expected timer paused")
	}
	frozen := state.TimeRemaining
	time.Sleep(60 * time.Millisecond)
	if got := engine.State().TimeRemaining; got != frozen {
		t.Fatalf("paused countdown moved from %d to %d", frozen, got)
	}

	engine.ResumeTimer()
	if !engine.State().TimerRunning {
		t.Fatalf("expected timer running after resume")
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	catalog := newTestCatalog(t, threeQuestionQuiz())
	engine := app.NewEngineWithClock(catalog, memory.NewAttemptStore(), app.StaticAuth{UserID: "u1"}, time.Now, time.Millisecond)

	engine.LoadByCode(context.Background(), "1234")
	engine.SelectAnswer(0, "A")
	engine.ResetQuiz()

	state := engine.State()
	if state.Phase != domain.PhaseIdle || state.Quiz != nil || state.TimerRunning {
		t.Fatalf("expected idle state after reset, got %+v", state)
	}
	if len(state.SelectedAnswers) != 0 || state.TimeRemaining != app.QuestionTimeLimit {
		t.Fatalf("reset should clear per-session fields, got %+v", state)
	}

	// No stray ticks from the cancelled timer.
	time.Sleep(50 * time.Millisecond)
	if got := engine.State().TimeRemaining; got != app.QuestionTimeLimit {
		t.Fatalf("cancelled timer still ticking, remaining=%d", got)
	}
}

func TestSelectAnswerLastWriteWins(t *testing.T) {
	catalog := newTestCatalog(t, threeQuestionQuiz())
	engine := app.NewEngineWithClock(catalog, memory.NewAttemptStore(), app.StaticAuth{UserID: "u1"}, time.Now, time.Hour)

	engine.LoadByCode(context.Background(), "1234")
	engine.SelectAnswerAt(0, "B", 20)
	engine.SelectAnswerAt(0, "A", 12)

	state := engine.State()
	if state.SelectedAnswers[0] != "A" || state.AnswerTimes[0] != 12 {
		t.Fatalf("expected last selection to win, got %q at %d", state.SelectedAnswers[0], state.AnswerTimes[0])
	}
}

func TestStoreFailureStillCompletes(t *testing.T) {
	catalog := newTestCatalog(t, threeQuestionQuiz())
	engine := app.NewEngineWithClock(catalog, failingStore{}, app.StaticAuth{UserID: "u1", DisplayName: "Alice"}, time.Now, time.Hour)

	engine.LoadByCode(context.Background(), "1234")
	engine.SelectAnswerAt(0, "A", 25)
	engine.CompleteQuiz(context.Background())

	if state := engine.State(); !state.Completed || state.Phase != domain.PhaseCompleted {
		t.Fatalf("session should complete locally despite store failure, got %+v", state)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if engine.State().Err != "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("store failure never surfaced on a snapshot")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitForState(t *testing.T, updates <-chan domain.SessionState, pred func(domain.SessionState) bool) domain.SessionState {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case state, ok := <-updates:
			if !ok {
				t.Fatalf("subscription closed while waiting for state")
			}
			if pred(state) {
				return state
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state")
		}
	}
}

func waitForAttempt(t *testing.T, store *memory.AttemptStore, quizID string) domain.Attempt {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		attempts, err := store.TopByQuiz(context.Background(), quizID, 10)
		if err != nil {
			t.Fatalf("query store: %v", err)
		}
		if len(attempts) > 0 {
			return attempts[0]
		}
		if time.Now().After(deadline) {
			t.Fatalf("attempt was never persisted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newTestCatalog(t *testing.T, quizzes ...domain.Quiz) *memory.StaticCatalog {
	t.Helper()
	catalog := memory.NewStaticCatalog()
	for _, quiz := range quizzes {
		if _, err := catalog.AddQuiz(context.Background(), quiz); err != nil {
			t.Fatalf("seed quiz: %v", err)
		}
	}
	return catalog
}

func threeQuestionQuiz() domain.Quiz {
	questions := make([]domain.Question, 3)
	for i := range questions {
		questions[i] = domain.Question{
			Text:          fmt.Sprintf("question %d", i),
			Options:       []string{"A", "B", "C"},
			CorrectOption: "A",
		}
	}
	return domain.Quiz{
		ID:        "quiz-3q",
		Title:     "Threes",
		Code:      "1234",
		Questions: questions,
	}
}

type failingStore struct{}

func (failingStore) Append(context.Context, domain.Attempt) (string, error) {
	return "", errors.New("store down")
}

func (failingStore) TopByQuiz(context.Context, string, int) ([]domain.Attempt, error) {
	return nil, errors.New("store down")
}

func (failingStore) BestByQuizAndUser(context.Context, string, string, int) ([]domain.Attempt, error) {
	return nil, errors.New("store down")
}

func (failingStore) CountWithMorePoints(context.Context, string, int) (int, error) {
	return 0, errors.New("store down")
}

func (failingStore) ByUser(context.Context, string) ([]domain.Attempt, error) {
	return nil, errors.New("store down")
}
