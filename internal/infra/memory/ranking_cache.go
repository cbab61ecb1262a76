package memory

import (
	"context"
	"sync"

	"quizcode-service/internal/domain"
)

// RankingCache is an in-memory implementation of app.RankingCache. Reads and
// writes for different quizzes never block each other beyond the map lock.
type RankingCache struct {
	mu      sync.RWMutex
	entries map[string]domain.QuizRanking
}

func NewRankingCache() *RankingCache {
	return &RankingCache{entries: make(map[string]domain.QuizRanking)}
}

func (c *RankingCache) Get(_ context.Context, quizID string) (domain.QuizRanking, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ranking, ok := c.entries[quizID]
	return ranking, ok
}

func (c *RankingCache) Set(_ context.Context, quizID string, ranking domain.QuizRanking) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[quizID] = ranking
}

func (c *RankingCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]domain.QuizRanking)
}
