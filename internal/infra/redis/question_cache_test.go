package redis

import (
	"context"
	"testing"
	"time"

	"certexam-service/internal/domain"
	"certexam-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{QuestionBank: memory.NewQuestionBank(sampleQuestions())}
	cache := NewQuestionCache(client, loader, time.Minute)

	qs, err := cache.ByChapterExcludingSets(context.Background(), 1)
	if err != nil {
		t.Fatalf("by chapter: %v", err)
	}
	if loader.calls != 1 || len(qs) != 1 {
		t.Fatalf("expected loader called once with 1 question, got calls=%d len=%d", loader.calls, len(qs))
	}
	if !mr.Exists("questions:chapter:1") {
		t.Fatalf("expected chapter list cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	qs, _ = cache.ByChapterExcludingSets(context.Background(), 1)
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if qs[0].Options["B"] != "bravo" || qs[0].Answer != "B" {
		t.Fatalf("expected full question from cache, got %+v", qs[0])
	}
}

func TestQuestionCacheSetsAndExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuestionBank: memory.NewQuestionBank(sampleQuestions())}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute)
	ctx := context.Background()

	set, err := cache.BySet(ctx, "A")
	if err != nil {
		t.Fatalf("by set: %v", err)
	}
	if len(set) != 1 || set[0].ExamPosition == nil || *set[0].ExamPosition != 1 {
		t.Fatalf("unexpected set A %+v", set)
	}

	mr.FastForward(2 * time.Minute)
	_, _ = cache.BySet(ctx, "A")
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls=%d", loader.calls)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("questions:set:A") {
		t.Fatalf("expected set key removed")
	}
}

type countingLoader struct {
	*memory.QuestionBank
	calls int
}

func (l *countingLoader) ByChapterExcludingSets(ctx context.Context, chapter int) ([]domain.Question, error) {
	l.calls++
	return l.QuestionBank.ByChapterExcludingSets(ctx, chapter)
}

func (l *countingLoader) BySet(ctx context.Context, set string) ([]domain.Question, error) {
	l.calls++
	return l.QuestionBank.BySet(ctx, set)
}

func sampleQuestions() []domain.Question {
	set, pos := "A", 1
	options := map[string]string{"A": "alpha", "B": "bravo", "C": "charlie", "D": "delta"}
	return []domain.Question{
		{ID: 1, Chapter: 1, ChapterTitle: "Fundamentals", Text: "Pick B", Options: options, Answer: "B"},
		{ID: 2, Chapter: 2, ChapterTitle: "Lifecycle", Text: "Pick A", Options: options, Answer: "A", ExamSet: &set, ExamPosition: &pos},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
