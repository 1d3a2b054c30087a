package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"certexam-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const questionColumns = `id, chapter, chapter_title, syllabus_section, topic, bloom, question, options, answer, explanation, exam_set, exam_position`

// QuestionLoader reads the question bank from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) ByChapterExcludingSets(ctx context.Context, chapter int) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE chapter=$1 AND exam_set IS NULL ORDER BY id`, chapter)
	if err != nil {
		return nil, fmt.Errorf("load chapter %d: %w", chapter, err)
	}
	return scanQuestions(rows)
}

func (l *QuestionLoader) BySet(ctx context.Context, set string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE exam_set=$1 ORDER BY exam_position`, set)
	if err != nil {
		return nil, fmt.Errorf("load set %s: %w", set, err)
	}
	return scanQuestions(rows)
}

func scanQuestions(rows pgx.Rows) ([]domain.Question, error) {
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q       domain.Question
			options []byte
		)
		if err := rows.Scan(&q.ID, &q.Chapter, &q.ChapterTitle, &q.SyllabusSection, &q.Topic, &q.Bloom,
			&q.Text, &options, &q.Answer, &q.Explanation, &q.ExamSet, &q.ExamPosition); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options of question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return questions, nil
}
