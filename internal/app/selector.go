package app

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"certexam-service/internal/domain"
)

// ChapterQuota is the number of questions drawn from one chapter for a random exam.
type ChapterQuota struct {
	Chapter int `yaml:"chapter"`
	Count   int `yaml:"count"`
}

// DefaultQuota follows the syllabus chapter weights and sums to 40.
var DefaultQuota = []ChapterQuota{
	{Chapter: 1, Count: 10},
	{Chapter: 2, Count: 7},
	{Chapter: 3, Count: 4},
	{Chapter: 4, Count: 8},
	{Chapter: 5, Count: 7},
	{Chapter: 6, Count: 4},
}

// Selector produces the ordered question list for an exam mode.
type Selector struct {
	repo  QuestionRepository
	quota []ChapterQuota
}

// NewSelector builds a selector; an empty quota falls back to DefaultQuota.
func NewSelector(repo QuestionRepository, quota []ChapterQuota) *Selector {
	if len(quota) == 0 {
		quota = DefaultQuota
	}
	q := make([]ChapterQuota, len(quota))
	copy(q, quota)
	// Chapter order must be stable so seeded draws are reproducible.
	sort.Slice(q, func(i, j int) bool { return q[i].Chapter < q[j].Chapter })
	return &Selector{repo: repo, quota: q}
}

// Select returns questions with positions 1..n, nothing selected and nothing flagged.
func (s *Selector) Select(ctx context.Context, mode domain.ExamMode, rnd *rand.Rand) ([]domain.ActiveQuestion, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if mode.Type == domain.ModeOfficial {
		return s.selectOfficial(ctx, mode.Set)
	}
	return s.selectRandom(ctx, rnd)
}

func (s *Selector) selectOfficial(ctx context.Context, set string) ([]domain.ActiveQuestion, error) {
	questions, err := s.repo.BySet(ctx, set)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "by set " + set, Err: err}
	}
	if len(questions) == 0 {
		return nil, &domain.EmptySetError{Set: set}
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return examPosition(questions[i]) < examPosition(questions[j])
	})

	active := make([]domain.ActiveQuestion, len(questions))
	for i, q := range questions {
		active[i] = activate(q, i+1)
	}
	return active, nil
}

func (s *Selector) selectRandom(ctx context.Context, rnd *rand.Rand) ([]domain.ActiveQuestion, error) {
	if err := ValidateQuota(s.quota); err != nil {
		return nil, err
	}
	picked := make([]domain.Question, 0, quotaTotal(s.quota))
	for _, cq := range s.quota {
		pool, err := s.repo.ByChapterExcludingSets(ctx, cq.Chapter)
		if err != nil {
			return nil, &domain.RepositoryError{Op: "by chapter", Err: err}
		}
		pool = withoutSets(pool)
		if len(pool) == 0 {
			return nil, &domain.EmptyChapterError{Chapter: cq.Chapter}
		}
		picked = append(picked, draw(pool, cq.Count, rnd)...)
	}

	rnd.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})

	active := make([]domain.ActiveQuestion, len(picked))
	for i, q := range picked {
		active[i] = activate(q, i+1)
	}
	return active, nil
}

// ValidateQuota requires every entry to name a distinct chapter in 1..6 with a
// positive count. A chapter listed twice would place its questions in the
// session more than once.
func ValidateQuota(quota []ChapterQuota) error {
	seen := make(map[int]bool, len(quota))
	for _, cq := range quota {
		if cq.Chapter < 1 || cq.Chapter > 6 {
			return fmt.Errorf("%w: chapter %d out of range", domain.ErrInvalidQuota, cq.Chapter)
		}
		if cq.Count <= 0 {
			return fmt.Errorf("%w: chapter %d count %d", domain.ErrInvalidQuota, cq.Chapter, cq.Count)
		}
		if seen[cq.Chapter] {
			return fmt.Errorf("%w: chapter %d listed twice", domain.ErrInvalidQuota, cq.Chapter)
		}
		seen[cq.Chapter] = true
	}
	return nil
}

// draw takes min(n, len(pool)) questions uniformly without replacement using a
// partial Fisher-Yates shuffle over a copy of pool.
func draw(pool []domain.Question, n int, rnd *rand.Rand) []domain.Question {
	buf := make([]domain.Question, len(pool))
	copy(buf, pool)
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		j := i + rnd.Intn(len(buf)-i)
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf[:n]
}

func withoutSets(pool []domain.Question) []domain.Question {
	out := pool[:0:0]
	for _, q := range pool {
		if q.ExamSet == nil || *q.ExamSet == "" {
			out = append(out, q)
		}
	}
	return out
}

func activate(q domain.Question, position int) domain.ActiveQuestion {
	return domain.ActiveQuestion{Question: q, Position: position}
}

func examPosition(q domain.Question) int {
	if q.ExamPosition == nil {
		return 0
	}
	return *q.ExamPosition
}

func quotaTotal(quota []ChapterQuota) int {
	total := 0
	for _, q := range quota {
		total += q.Count
	}
	return total
}
