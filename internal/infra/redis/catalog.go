package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"time"

	"quizcode-service/internal/app"
	"quizcode-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CachedCatalog caches whole quizzes in Redis as JSON and falls back to the
// source catalog on a miss. Keys:
//
//	SET quiz:id:{id}     {quiz JSON}
//	SET quiz:code:{code} {quiz JSON}
type CachedCatalog struct {
	client *redis.Client
	source app.Catalog
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCachedCatalog(client *redis.Client, source app.Catalog, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CachedCatalog) GetQuizByCode(ctx context.Context, code string) (domain.Quiz, error) {
	return c.cached(ctx, codeKey(code), func() (domain.Quiz, error) {
		return c.source.GetQuizByCode(ctx, code)
	})
}

func (c *CachedCatalog) GetQuizByID(ctx context.Context, id string) (domain.Quiz, error) {
	return c.cached(ctx, idKey(id), func() (domain.Quiz, error) {
		return c.source.GetQuizByID(ctx, id)
	})
}

// GetAllQuizzes is not cached; listings are rare relative to per-quiz reads.
func (c *CachedCatalog) GetAllQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return c.source.GetAllQuizzes(ctx)
}

func (c *CachedCatalog) cached(ctx context.Context, key string, load func() (domain.Quiz, error)) (domain.Quiz, error) {
	if quiz, ok := c.fetch(ctx, key); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := c.fetch(ctx, key); ok {
			return quiz, nil
		}
		quiz, err := load()
		if err != nil {
			return domain.Quiz{}, err
		}
		c.put(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *CachedCatalog) fetch(ctx context.Context, key string) (domain.Quiz, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		log.Printf("redis catalog: corrupt entry %s: %v", key, err)
		return domain.Quiz{}, false
	}
	return quiz, true
}

// put is best-effort; a cache write failure only costs a reload later.
func (c *CachedCatalog) put(ctx context.Context, quiz domain.Quiz) {
	raw, err := json.Marshal(quiz)
	if err != nil {
		log.Printf("redis catalog: marshal quiz %s: %v", quiz.ID, err)
		return
	}
	ttl := c.ttlWithJitter()
	pipe := c.client.Pipeline()
	pipe.Set(ctx, idKey(quiz.ID), raw, ttl)
	if quiz.Code != "" {
		pipe.Set(ctx, codeKey(quiz.Code), raw, ttl)
	}
	_, _ = pipe.Exec(ctx)
}

func idKey(id string) string {
	return "quiz:id:" + id
}

func codeKey(code string) string {
	return "quiz:code:" + code
}

func (c *CachedCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
