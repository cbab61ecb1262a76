package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"quizcode-service/internal/app"
	"quizcode-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// StaticCatalog is a quiz catalog backed by an in-memory map, useful for
// tests and demo mode. Quizzes added without a join code get a unique one
// assigned.
type StaticCatalog struct {
	mu      sync.RWMutex
	rnd     *rand.Rand
	quizzes map[string]domain.Quiz
}

func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		quizzes: make(map[string]domain.Quiz),
	}
}

// AddQuiz stores a quiz, assigning an id and join code when missing, and
// returns the stored value.
func (c *StaticCatalog) AddQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if quiz.ID == "" {
		quiz.ID = fmt.Sprintf("quiz-%d", len(c.quizzes)+1)
	}
	if quiz.Code == "" {
		code, err := app.GenerateUniqueCode(ctx, lockedUniqueness{c}, c.rnd)
		if err != nil {
			return domain.Quiz{}, err
		}
		quiz.Code = code
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now()
	}
	c.quizzes[quiz.ID] = quiz
	return quiz, nil
}

func (c *StaticCatalog) GetQuizByCode(_ context.Context, code string) (domain.Quiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, quiz := range c.quizzes {
		if quiz.Code == code {
			return quiz, nil
		}
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (c *StaticCatalog) GetQuizByID(_ context.Context, id string) (domain.Quiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if quiz, ok := c.quizzes[id]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (c *StaticCatalog) GetAllQuizzes(_ context.Context) ([]domain.Quiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	quizzes := make([]domain.Quiz, 0, len(c.quizzes))
	for _, quiz := range c.quizzes {
		quizzes = append(quizzes, quiz)
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].ID < quizzes[j].ID })
	return quizzes, nil
}

// IsCodeUnique reports whether no stored quiz uses the code.
func (c *StaticCatalog) IsCodeUnique(_ context.Context, code string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.codeUniqueLocked(code), nil
}

func (c *StaticCatalog) codeUniqueLocked(code string) bool {
	for _, quiz := range c.quizzes {
		if quiz.Code == code {
			return false
		}
	}
	return true
}

// lockedUniqueness answers uniqueness checks while AddQuiz already holds the
// catalog lock.
type lockedUniqueness struct {
	c *StaticCatalog
}

func (u lockedUniqueness) IsCodeUnique(_ context.Context, code string) (bool, error) {
	return u.c.codeUniqueLocked(code), nil
}

// CachedCatalog wraps a catalog with a TTL cache to avoid repeated backing
// store hits; concurrent misses for the same key collapse into one load.
type CachedCatalog struct {
	source app.Catalog
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu     sync.RWMutex
	byID   map[string]cachedQuiz
	byCode map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewCachedCatalog(source app.Catalog, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		byID:   make(map[string]cachedQuiz),
		byCode: make(map[string]cachedQuiz),
	}
}

func (c *CachedCatalog) GetQuizByCode(ctx context.Context, code string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(c.byCode, code); ok {
		return quiz, nil
	}
	result, err, _ := c.sf.Do("code:"+code, func() (interface{}, error) {
		if quiz, ok := c.lookup(c.byCode, code); ok {
			return quiz, nil
		}
		quiz, err := c.source.GetQuizByCode(ctx, code)
		if err != nil {
			return domain.Quiz{}, err
		}
		c.store(quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *CachedCatalog) GetQuizByID(ctx context.Context, id string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(c.byID, id); ok {
		return quiz, nil
	}
	result, err, _ := c.sf.Do("id:"+id, func() (interface{}, error) {
		if quiz, ok := c.lookup(c.byID, id); ok {
			return quiz, nil
		}
		quiz, err := c.source.GetQuizByID(ctx, id)
		if err != nil {
			return domain.Quiz{}, err
		}
		c.store(quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// GetAllQuizzes always goes to the source; listings are rare and staleness
// across the whole set is harder to reason about than per-quiz TTLs.
func (c *CachedCatalog) GetAllQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return c.source.GetAllQuizzes(ctx)
}

func (c *CachedCatalog) lookup(cache map[string]cachedQuiz, key string) (domain.Quiz, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := cache[key]; ok && entry.expiresAt.After(now) {
		return entry.quiz, true
	}
	return domain.Quiz{}, false
}

func (c *CachedCatalog) store(quiz domain.Quiz) {
	entry := cachedQuiz{quiz: quiz, expiresAt: c.clock().Add(c.ttlWithJitter())}
	c.mu.Lock()
	c.byID[quiz.ID] = entry
	if quiz.Code != "" {
		c.byCode[quiz.Code] = entry
	}
	c.mu.Unlock()
}

func (c *CachedCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
