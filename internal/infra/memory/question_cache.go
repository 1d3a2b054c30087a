package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"certexam-service/internal/app"
	"certexam-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionCache caches question lists with TTL to avoid repeated DB hits.
type QuestionCache struct {
	loader app.QuestionRepository
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader app.QuestionRepository, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestions),
	}
}

func (c *QuestionCache) ByChapterExcludingSets(ctx context.Context, chapter int) ([]domain.Question, error) {
	return c.get(ctx, "chapter:"+strconv.Itoa(chapter), func(ctx context.Context) ([]domain.Question, error) {
		return c.loader.ByChapterExcludingSets(ctx, chapter)
	})
}

func (c *QuestionCache) BySet(ctx context.Context, set string) ([]domain.Question, error) {
	return c.get(ctx, "set:"+set, func(ctx context.Context) ([]domain.Question, error) {
		return c.loader.BySet(ctx, set)
	})
}

func (c *QuestionCache) get(ctx context.Context, key string, load func(context.Context) ([]domain.Question, error)) ([]domain.Question, error) {
	if qs, ok := c.lookup(key); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if qs, ok := c.lookup(key); ok {
			return qs, nil
		}

		qs, err := load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = cachedQuestions{
			questions: qs,
			expiresAt: c.clock().Add(c.ttlWithJitterLocked()),
		}
		c.mu.Unlock()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), result.([]domain.Question)...), nil
}

func (c *QuestionCache) lookup(key string) ([]domain.Question, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return append([]domain.Question(nil), entry.questions...), true
}

func (c *QuestionCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
