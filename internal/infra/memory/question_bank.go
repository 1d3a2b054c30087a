package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"certexam-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// QuestionBank is a static question repository held in memory.
type QuestionBank struct {
	byChapter map[int][]domain.Question
	bySet     map[string][]domain.Question
	all       []domain.Question
}

// NewQuestionBank indexes questions by chapter and official set.
func NewQuestionBank(questions []domain.Question) *QuestionBank {
	b := &QuestionBank{
		byChapter: make(map[int][]domain.Question),
		bySet:     make(map[string][]domain.Question),
		all:       append([]domain.Question(nil), questions...),
	}
	for _, q := range b.all {
		if q.ExamSet != nil && *q.ExamSet != "" {
			b.bySet[*q.ExamSet] = append(b.bySet[*q.ExamSet], q)
			continue
		}
		b.byChapter[q.Chapter] = append(b.byChapter[q.Chapter], q)
	}
	for set := range b.bySet {
		qs := b.bySet[set]
		sort.SliceStable(qs, func(i, j int) bool { return position(qs[i]) < position(qs[j]) })
	}
	return b
}

func (b *QuestionBank) ByChapterExcludingSets(_ context.Context, chapter int) ([]domain.Question, error) {
	return append([]domain.Question(nil), b.byChapter[chapter]...), nil
}

func (b *QuestionBank) BySet(_ context.Context, set string) ([]domain.Question, error) {
	return append([]domain.Question(nil), b.bySet[set]...), nil
}

// All returns every question in the bank in file order.
func (b *QuestionBank) All() []domain.Question {
	return append([]domain.Question(nil), b.all...)
}

func position(q domain.Question) int {
	if q.ExamPosition == nil {
		return 0
	}
	return *q.ExamPosition
}

type questionFile struct {
	Questions []domain.Question `yaml:"questions"`
}

// ReadQuestionFile parses a YAML (or JSON) question bank and validates it.
func ReadQuestionFile(path string) ([]domain.Question, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}
	var f questionFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse question file: %w", err)
	}
	if err := ValidateQuestions(f.Questions); err != nil {
		return nil, err
	}
	return f.Questions, nil
}

// LoadQuestionBank reads path into a QuestionBank.
func LoadQuestionBank(path string) (*QuestionBank, error) {
	questions, err := ReadQuestionFile(path)
	if err != nil {
		return nil, err
	}
	return NewQuestionBank(questions), nil
}

// ValidateQuestions checks every question plus bank-wide uniqueness of ids and
// official set positions. All problems are reported together.
func ValidateQuestions(questions []domain.Question) error {
	var errs []error
	ids := make(map[int]struct{}, len(questions))
	slots := make(map[string]int)
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			errs = append(errs, err)
		}
		if _, dup := ids[q.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate id %d", domain.ErrInvalidQuestion, q.ID))
		}
		ids[q.ID] = struct{}{}
		if q.ExamSet != nil && q.ExamPosition != nil {
			slot := fmt.Sprintf("%s/%d", *q.ExamSet, *q.ExamPosition)
			if other, taken := slots[slot]; taken {
				errs = append(errs, fmt.Errorf("%w: questions %d and %d share set position %s",
					domain.ErrInvalidQuestion, other, q.ID, slot))
			}
			slots[slot] = q.ID
		}
	}
	return errors.Join(errs...)
}
