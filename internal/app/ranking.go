package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"quizcode-service/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultRankingLimit is the leaderboard size when the caller does not ask
// for a specific one.
const DefaultRankingLimit = 10

// RankingCache stores fully resolved rankings keyed by quiz id. Entries are
// written once, complete, and never mutated in place.
type RankingCache interface {
	Get(ctx context.Context, quizID string) (domain.QuizRanking, bool)
	Set(ctx context.Context, quizID string, ranking domain.QuizRanking)
	Clear(ctx context.Context)
}

// RankingService computes leaderboards and per-user ranks from completed
// attempts, caching results per quiz. A ranking is published to the cache only
// after every constituent query (top-N, user best, user rank) has resolved, so
// concurrent readers see either the previous complete entry or the next one,
// never a half-built ranking.
type RankingService struct {
	catalog  Catalog
	attempts AttemptStore
	auth     AuthContext
	cache    RankingCache
	sf       singleflight.Group
}

func NewRankingService(catalog Catalog, attempts AttemptStore, auth AuthContext, cache RankingCache) *RankingService {
	return &RankingService{
		catalog:  catalog,
		attempts: attempts,
		auth:     auth,
		cache:    cache,
	}
}

// GetQuizRanking returns the leaderboard for a quiz. Cache hits come back
// unchanged; misses resolve against the catalog and attempt store. An unknown
// quiz fails the call; a failing attempt store degrades to an empty
// leaderboard which is returned but never cached.
func (s *RankingService) GetQuizRanking(ctx context.Context, quizID string, limit int) (domain.QuizRanking, error) {
	if limit <= 0 {
		limit = DefaultRankingLimit
	}
	if ranking, ok := s.cache.Get(ctx, quizID); ok {
		return ranking, nil
	}

	result, err, _ := s.sf.Do(quizID, func() (interface{}, error) {
		// Re-check in case a concurrent resolution already published.
		if ranking, ok := s.cache.Get(ctx, quizID); ok {
			return ranking, nil
		}
		ranking, cacheable, err := s.resolve(ctx, quizID, limit)
		if err != nil {
			return domain.QuizRanking{}, err
		}
		if cacheable {
			s.cache.Set(ctx, quizID, ranking)
		}
		return ranking, nil
	})
	if err != nil {
		return domain.QuizRanking{}, err
	}
	return result.(domain.QuizRanking), nil
}

func (s *RankingService) resolve(ctx context.Context, quizID string, limit int) (domain.QuizRanking, bool, error) {
	quiz, err := s.catalog.GetQuizByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return domain.QuizRanking{}, false, fmt.Errorf("ranking for quiz %s: %w", quizID, domain.ErrQuizNotFound)
		}
		log.Printf("ranking: load quiz %s: %v", quizID, err)
		return degradedRanking(quizID), false, nil
	}

	ranking := domain.QuizRanking{
		QuizID:    quizID,
		QuizTitle: quiz.Title,
	}

	top, err := s.attempts.TopByQuiz(ctx, quizID, limit)
	if err != nil {
		log.Printf("ranking: top attempts for quiz %s: %v", quizID, err)
		degraded := degradedRanking(quizID)
		degraded.QuizTitle = quiz.Title
		return degraded, false, nil
	}
	ranking.TopAttempts = top

	if userID, ok := s.auth.CurrentUserID(); ok {
		if err := s.resolveUserRank(ctx, &ranking, userID); err != nil {
			// Leaderboard itself is intact; user fields degrade to absent.
			log.Printf("ranking: user rank for quiz %s: %v", quizID, err)
			return ranking, false, nil
		}
	}
	return ranking, true, nil
}

// resolveUserRank fills UserBestAttempt and UserRank in place, before the
// ranking is published anywhere.
func (s *RankingService) resolveUserRank(ctx context.Context, ranking *domain.QuizRanking, userID string) error {
	for i := range ranking.TopAttempts {
		if ranking.TopAttempts[i].UserID == userID {
			best := ranking.TopAttempts[i]
			ranking.UserBestAttempt = &best
			ranking.UserRank = i + 1
			return nil
		}
	}

	attempts, err := s.attempts.BestByQuizAndUser(ctx, ranking.QuizID, userID, 1)
	if err != nil {
		return fmt.Errorf("best attempt: %w", err)
	}
	if len(attempts) == 0 {
		return nil
	}
	best := attempts[0]

	better, err := s.attempts.CountWithMorePoints(ctx, ranking.QuizID, best.TotalPoints)
	if err != nil {
		return fmt.Errorf("count better attempts: %w", err)
	}
	ranking.UserBestAttempt = &best
	ranking.UserRank = better + 1
	return nil
}

func degradedRanking(quizID string) domain.QuizRanking {
	return domain.QuizRanking{
		QuizID:      quizID,
		QuizTitle:   "Unknown quiz",
		TopAttempts: []domain.Attempt{},
	}
}

// GetAllQuizRankings resolves a ranking for every quiz in the catalog. Each
// quiz resolves independently and concurrently; results come back in catalog
// order.
func (s *RankingService) GetAllQuizRankings(ctx context.Context, limit int) ([]domain.QuizRanking, error) {
	quizzes, err := s.catalog.GetAllQuizzes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	rankings := make([]domain.QuizRanking, len(quizzes))
	g, ctx := errgroup.WithContext(ctx)
	for i, quiz := range quizzes {
		i, quizID := i, quiz.ID
		g.Go(func() error {
			ranking, err := s.GetQuizRanking(ctx, quizID, limit)
			if err != nil {
				return err
			}
			rankings[i] = ranking
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rankings, nil
}

// UserHistory returns the requesting user's attempts, newest first, with quiz
// titles resolved from the catalog. Anonymous callers get an empty history.
func (s *RankingService) UserHistory(ctx context.Context) ([]domain.HistoryItem, error) {
	userID, ok := s.auth.CurrentUserID()
	if !ok {
		return []domain.HistoryItem{}, nil
	}

	attempts, err := s.attempts.ByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user attempts: %w", err)
	}

	titles := make(map[string]string)
	for _, attempt := range attempts {
		if _, seen := titles[attempt.QuizID]; seen {
			continue
		}
		quiz, err := s.catalog.GetQuizByID(ctx, attempt.QuizID)
		if err != nil {
			titles[attempt.QuizID] = "Unknown quiz"
			continue
		}
		titles[attempt.QuizID] = quiz.Title
	}

	items := make([]domain.HistoryItem, 0, len(attempts))
	for _, attempt := range attempts {
		items = append(items, domain.HistoryItem{
			AttemptID:         attempt.ID,
			QuizID:            attempt.QuizID,
			QuizTitle:         titles[attempt.QuizID],
			Score:             attempt.Score,
			TotalPoints:       attempt.TotalPoints,
			MaxPossiblePoints: attempt.MaxPossiblePoints,
			CorrectAnswers:    attempt.CorrectAnswers,
			TotalQuestions:    attempt.TotalQuestions,
			CompletedAt:       attempt.CompletedAt,
		})
	}
	return items, nil
}

// ClearCache evicts every cached ranking; the next read per quiz recomputes.
func (s *RankingService) ClearCache(ctx context.Context) {
	s.cache.Clear(ctx)
}
