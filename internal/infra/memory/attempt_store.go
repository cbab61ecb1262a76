package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quizcode-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore, used in
// demo mode and tests. Attempts are append-only; queries sort copies.
type AttemptStore struct {
	mu       sync.RWMutex
	seq      int
	attempts []domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{}
}

func (s *AttemptStore) Append(_ context.Context, attempt domain.Attempt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	attempt.ID = fmt.Sprintf("attempt-%d", s.seq)
	s.attempts = append(s.attempts, attempt)
	return attempt.ID, nil
}

func (s *AttemptStore) TopByQuiz(_ context.Context, quizID string, limit int) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := s.filterLocked(func(a domain.Attempt) bool { return a.QuizID == quizID })
	sortByPointsDesc(matched)
	return truncate(matched, limit), nil
}

func (s *AttemptStore) BestByQuizAndUser(_ context.Context, quizID, userID string, limit int) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := s.filterLocked(func(a domain.Attempt) bool { return a.QuizID == quizID && a.UserID == userID })
	sortByPointsDesc(matched)
	return truncate(matched, limit), nil
}

func (s *AttemptStore) CountWithMorePoints(_ context.Context, quizID string, points int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.TotalPoints > points {
			count++
		}
	}
	return count, nil
}

func (s *AttemptStore) ByUser(_ context.Context, userID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := s.filterLocked(func(a domain.Attempt) bool { return a.UserID == userID })
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CompletedAt.After(matched[j].CompletedAt)
	})
	return matched, nil
}

func (s *AttemptStore) filterLocked(keep func(domain.Attempt) bool) []domain.Attempt {
	matched := make([]domain.Attempt, 0)
	for _, a := range s.attempts {
		if keep(a) {
			matched = append(matched, a)
		}
	}
	return matched
}

// sortByPointsDesc orders by total points descending; ties go to the earlier
// completion.
func sortByPointsDesc(attempts []domain.Attempt) {
	sort.SliceStable(attempts, func(i, j int) bool {
		if attempts[i].TotalPoints != attempts[j].TotalPoints {
			return attempts[i].TotalPoints > attempts[j].TotalPoints
		}
		return attempts[i].CompletedAt.Before(attempts[j].CompletedAt)
	})
}

func truncate(attempts []domain.Attempt, limit int) []domain.Attempt {
	if limit > 0 && len(attempts) > limit {
		return attempts[:limit]
	}
	return attempts
}
