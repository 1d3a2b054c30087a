package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"certexam-service/internal/app"
	"certexam-service/internal/domain"
	"certexam-service/internal/infra/memory"
)

var fourOptions = map[string]string{"A": "alpha", "B": "bravo", "C": "charlie", "D": "delta"}

// chapterQuestions builds n single-select questions for chapter with answer A.
func chapterQuestions(chapter, n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			ID:           chapter*100 + i + 1,
			Chapter:      chapter,
			ChapterTitle: fmt.Sprintf("Chapter %d", chapter),
			Text:         "question",
			Options:      fourOptions,
			Answer:       "A",
		}
	}
	return qs
}

func officialQuestions(set string, positions ...int) []domain.Question {
	qs := make([]domain.Question, len(positions))
	for i, pos := range positions {
		s, p := set, pos
		qs[i] = domain.Question{
			ID:           1000 + pos,
			Chapter:      1 + i%6,
			ChapterTitle: "Official",
			Text:         "official question",
			Options:      fourOptions,
			Answer:       "B",
			ExamSet:      &s,
			ExamPosition: &p,
		}
	}
	return qs
}

func fullBank(perChapter int) []domain.Question {
	var qs []domain.Question
	for ch := 1; ch <= 6; ch++ {
		qs = append(qs, chapterQuestions(ch, perChapter)...)
	}
	return qs
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errStoreDown = errors.New("store down")

// flakyStore wraps the memory store with switchable failures and call counters.
type flakyStore struct {
	*memory.SessionStore

	mu             sync.Mutex
	failCreate    bool
	failUpdate    bool
	failBulk      bool
	finalizeCalls int
	bulkCalls     int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{SessionStore: memory.NewSessionStore()}
}

func (s *flakyStore) set(f func(*flakyStore)) {
	s.mu.Lock()
	f(s)
	s.mu.Unlock()
}

func (s *flakyStore) CreateSession(ctx context.Context, draft domain.ExamSession) (domain.ExamSession, error) {
	s.mu.Lock()
	fail := s.failCreate
	s.mu.Unlock()
	if fail {
		return domain.ExamSession{}, errStoreDown
	}
	return s.SessionStore.CreateSession(ctx, draft)
}

func (s *flakyStore) UpdateAnswer(ctx context.Context, sessionID string, questionID int, selected *string, at time.Time) error {
	s.mu.Lock()
	fail := s.failUpdate
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.SessionStore.UpdateAnswer(ctx, sessionID, questionID, selected, at)
}

func (s *flakyStore) BulkUpsertAnswers(ctx context.Context, sessionID string, answers []domain.ExamAnswer) error {
	s.mu.Lock()
	s.bulkCalls++
	fail := s.failBulk
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.SessionStore.BulkUpsertAnswers(ctx, sessionID, answers)
}

func (s *flakyStore) FinalizeSession(ctx context.Context, sessionID string, status domain.SessionStatus, score int, at time.Time) (domain.ExamSession, error) {
	s.mu.Lock()
	s.finalizeCalls++
	s.mu.Unlock()
	return s.SessionStore.FinalizeSession(ctx, sessionID, status, score, at)
}

type failingRepo struct{}

func (failingRepo) ByChapterExcludingSets(context.Context, int) ([]domain.Question, error) {
	return nil, errStoreDown
}

func (failingRepo) BySet(context.Context, string) ([]domain.Question, error) {
	return nil, errStoreDown
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func mustStart(t *testing.T, e *app.Engine, mode domain.ExamMode) {
	t.Helper()
	if err := e.StartExam(context.Background(), mode); err != nil {
		t.Fatalf("start exam: %v", err)
	}
}
