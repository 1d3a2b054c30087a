package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"certexam-service/internal/app"
	"certexam-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionCache caches question lists in Redis and falls back to a loader on cache miss.
// Lists are stored as JSON strings:
//
//	SET questions:chapter:{chapter} [...]
//	SET questions:set:{set}         [...]
type QuestionCache struct {
	client *redis.Client
	loader app.QuestionRepository
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader app.QuestionRepository, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) ByChapterExcludingSets(ctx context.Context, chapter int) ([]domain.Question, error) {
	return c.get(ctx, chapterKey(chapter), func(ctx context.Context) ([]domain.Question, error) {
		return c.loader.ByChapterExcludingSets(ctx, chapter)
	})
}

func (c *QuestionCache) BySet(ctx context.Context, set string) ([]domain.Question, error) {
	return c.get(ctx, setKey(set), func(ctx context.Context) ([]domain.Question, error) {
		return c.loader.BySet(ctx, set)
	})
}

// Invalidate removes every cached question list.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	keys := make([]string, 0, 10)
	for ch := 1; ch <= 6; ch++ {
		keys = append(keys, chapterKey(ch))
	}
	for _, set := range domain.OfficialSets {
		keys = append(keys, setKey(set))
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *QuestionCache) get(ctx context.Context, key string, load func(context.Context) ([]domain.Question, error)) ([]domain.Question, error) {
	if qs, ok := c.lookup(ctx, key); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := c.lookup(ctx, key); ok {
			return qs, nil
		}

		qs, err := load(ctx)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(qs)
		if err != nil {
			return nil, err
		}
		// best-effort: a cache write failure still serves the loaded list
		_ = c.client.Set(ctx, key, payload, c.ttlWithJitter()).Err()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), result.([]domain.Question)...), nil
}

func (c *QuestionCache) lookup(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil on a miss; other errors degrade to the loader
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, false
	}
	return qs, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func chapterKey(chapter int) string {
	return "questions:chapter:" + strconv.Itoa(chapter)
}

func setKey(set string) string {
	return "questions:set:" + set
}
