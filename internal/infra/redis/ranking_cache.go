package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"quizcode-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const rankingHashKey = "rankings"

// RankingCache stores resolved rankings in a Redis hash, one field per quiz
// id, so every instance sharing the Redis sees the same leaderboards and
// Clear is a single DEL. Failures degrade to cache misses; the aggregator
// recomputes.
type RankingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRankingCache(client *redis.Client, ttl time.Duration) *RankingCache {
	return &RankingCache{client: client, ttl: ttl}
}

func (c *RankingCache) Get(ctx context.Context, quizID string) (domain.QuizRanking, bool) {
	raw, err := c.client.HGet(ctx, rankingHashKey, quizID).Bytes()
	if err != nil {
		return domain.QuizRanking{}, false
	}
	var ranking domain.QuizRanking
	if err := json.Unmarshal(raw, &ranking); err != nil {
		log.Printf("redis ranking cache: corrupt entry for quiz %s: %v", quizID, err)
		return domain.QuizRanking{}, false
	}
	return ranking, true
}

func (c *RankingCache) Set(ctx context.Context, quizID string, ranking domain.QuizRanking) {
	raw, err := json.Marshal(ranking)
	if err != nil {
		log.Printf("redis ranking cache: marshal ranking for quiz %s: %v", quizID, err)
		return
	}
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, rankingHashKey, quizID, raw)
	if c.ttl > 0 {
		pipe.Expire(ctx, rankingHashKey, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("redis ranking cache: store ranking for quiz %s: %v", quizID, err)
	}
}

func (c *RankingCache) Clear(ctx context.Context) {
	if err := c.client.Del(ctx, rankingHashKey).Err(); err != nil {
		log.Printf("redis ranking cache: clear: %v", err)
	}
}
