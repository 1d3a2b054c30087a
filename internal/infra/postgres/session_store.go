package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"certexam-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const sessionColumns = `id, started_at, completed_at, total_questions, time_limit_secs, score, pass_score, status`

// SessionStore persists exam sessions and answers in Postgres.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) CreateSession(ctx context.Context, draft domain.ExamSession) (domain.ExamSession, error) {
	if draft.StartedAt.IsZero() {
		draft.StartedAt = time.Now()
	}
	if draft.Status == "" {
		draft.Status = domain.SessionStatusInProgress
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (id, started_at, total_questions, time_limit_secs, pass_score, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+sessionColumns,
		uuid.NewString(), draft.StartedAt, draft.TotalQuestions, draft.TimeLimitSecs, draft.PassScore, string(draft.Status))
	sess, err := scanSession(row)
	if err != nil {
		return domain.ExamSession{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) LinkQuestions(ctx context.Context, sessionID string, links []domain.SessionQuestion) error {
	rows := make([][]interface{}, len(links))
	for i, l := range links {
		rows[i] = []interface{}{sessionID, l.QuestionID, l.Position}
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"session_questions"},
		[]string{"session_id", "question_id", "position"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy session questions: %w", err)
	}
	return nil
}

func (s *SessionStore) InitAnswers(ctx context.Context, sessionID string, questionIDs []int) error {
	rows := make([][]interface{}, len(questionIDs))
	for i, id := range questionIDs {
		rows[i] = []interface{}{sessionID, id}
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"exam_answers"},
		[]string{"session_id", "question_id"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy answers: %w", err)
	}
	return nil
}

func (s *SessionStore) UpdateAnswer(ctx context.Context, sessionID string, questionID int, selected *string, answeredAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO exam_answers (session_id, question_id, selected_answer, answered_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, question_id)
		 DO UPDATE SET selected_answer = EXCLUDED.selected_answer, answered_at = EXCLUDED.answered_at`,
		sessionID, questionID, selected, answeredAt)
	if err != nil {
		return fmt.Errorf("update answer: %w", err)
	}
	return nil
}

// BulkUpsertAnswers writes all rows in one transaction.
func (s *SessionStore) BulkUpsertAnswers(ctx context.Context, sessionID string, answers []domain.ExamAnswer) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range answers {
		batch.Queue(
			`INSERT INTO exam_answers (session_id, question_id, selected_answer, is_correct, answered_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (session_id, question_id)
			 DO UPDATE SET selected_answer = EXCLUDED.selected_answer,
			               is_correct = EXCLUDED.is_correct,
			               answered_at = EXCLUDED.answered_at`,
			sessionID, a.QuestionID, a.SelectedAnswer, a.IsCorrect, a.AnsweredAt)
	}

	br := tx.SendBatch(ctx, batch)
	for range answers {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert answer: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *SessionStore) FinalizeSession(ctx context.Context, sessionID string, status domain.SessionStatus, score int, completedAt time.Time) (domain.ExamSession, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE exam_sessions SET status=$2, score=$3, completed_at=$4 WHERE id=$1 RETURNING `+sessionColumns,
		sessionID, string(status), score, completedAt)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ExamSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.ExamSession{}, fmt.Errorf("finalize session: %w", err)
	}
	return sess, nil
}

// GetSession loads one session by id.
func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (domain.ExamSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM exam_sessions WHERE id=$1`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ExamSession{}, domain.ErrSessionNotFound
	}
	return sess, err
}

// Answers returns the answer rows of a session ordered by question position.
func (s *SessionStore) Answers(ctx context.Context, sessionID string) ([]domain.ExamAnswer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.question_id, a.selected_answer, a.is_correct, a.answered_at
		 FROM exam_answers a
		 JOIN session_questions sq ON sq.session_id = a.session_id AND sq.question_id = a.question_id
		 WHERE a.session_id=$1
		 ORDER BY sq.position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.ExamAnswer
	for rows.Next() {
		a := domain.ExamAnswer{SessionID: sessionID}
		if err := rows.Scan(&a.QuestionID, &a.SelectedAnswer, &a.IsCorrect, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func scanSession(row pgx.Row) (domain.ExamSession, error) {
	var (
		sess   domain.ExamSession
		status string
	)
	err := row.Scan(&sess.ID, &sess.StartedAt, &sess.CompletedAt, &sess.TotalQuestions,
		&sess.TimeLimitSecs, &sess.Score, &sess.PassScore, &status)
	if err != nil {
		return domain.ExamSession{}, err
	}
	sess.Status = domain.SessionStatus(status)
	return sess, nil
}
