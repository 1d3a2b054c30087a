package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"certexam-service/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS questions (
  id INTEGER PRIMARY KEY,
  chapter INTEGER NOT NULL CHECK (chapter BETWEEN 1 AND 6),
  chapter_title TEXT NOT NULL,
  syllabus_section TEXT NOT NULL DEFAULT '',
  topic TEXT NOT NULL DEFAULT '',
  bloom TEXT NOT NULL DEFAULT '',
  question TEXT NOT NULL,
  options_json TEXT NOT NULL,
  answer TEXT NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  exam_set TEXT,
  exam_position INTEGER,
  UNIQUE (exam_set, exam_position)
);

CREATE TABLE IF NOT EXISTS exam_sessions (
  id TEXT PRIMARY KEY,
  started_at INTEGER NOT NULL,
  completed_at INTEGER,
  total_questions INTEGER NOT NULL,
  time_limit_secs INTEGER NOT NULL DEFAULT 3600,
  score INTEGER,
  pass_score INTEGER NOT NULL DEFAULT 26,
  status TEXT NOT NULL DEFAULT 'in_progress'
);

CREATE TABLE IF NOT EXISTS session_questions (
  session_id TEXT NOT NULL REFERENCES exam_sessions(id) ON DELETE CASCADE,
  question_id INTEGER NOT NULL REFERENCES questions(id),
  position INTEGER NOT NULL,
  PRIMARY KEY (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS exam_answers (
  session_id TEXT NOT NULL REFERENCES exam_sessions(id) ON DELETE CASCADE,
  question_id INTEGER NOT NULL REFERENCES questions(id),
  selected_answer TEXT,
  is_correct INTEGER,
  answered_at INTEGER,
  PRIMARY KEY (session_id, question_id)
);
`

const questionColumns = `id, chapter, chapter_title, syllabus_section, topic, bloom, question, options_json, answer, explanation, exam_set, exam_position`

// Store keeps the question bank and exam sessions in a single SQLite file.
// It serves both as question repository and session store for offline use.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "certexam.db"
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ImportQuestions inserts or replaces questions in one transaction.
func (s *Store) ImportQuestions(ctx context.Context, questions []domain.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO questions (`+questionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		  chapter=excluded.chapter, chapter_title=excluded.chapter_title,
		  syllabus_section=excluded.syllabus_section, topic=excluded.topic, bloom=excluded.bloom,
		  question=excluded.question, options_json=excluded.options_json, answer=excluded.answer,
		  explanation=excluded.explanation, exam_set=excluded.exam_set, exam_position=excluded.exam_position`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, q.ID, q.Chapter, q.ChapterTitle, q.SyllabusSection, q.Topic, q.Bloom,
			q.Text, string(options), q.Answer, q.Explanation, nullString(q.ExamSet), nullInt(q.ExamPosition)); err != nil {
			return fmt.Errorf("import question %d: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ByChapterExcludingSets(ctx context.Context, chapter int) ([]domain.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE chapter = ? AND exam_set IS NULL ORDER BY id`, chapter)
	if err != nil {
		return nil, err
	}
	return scanQuestions(rows)
}

func (s *Store) BySet(ctx context.Context, set string) ([]domain.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE exam_set = ? ORDER BY exam_position`, set)
	if err != nil {
		return nil, err
	}
	return scanQuestions(rows)
}

func scanQuestions(rows *sql.Rows) ([]domain.Question, error) {
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q        domain.Question
			options  string
			set      sql.NullString
			position sql.NullInt64
		)
		if err := rows.Scan(&q.ID, &q.Chapter, &q.ChapterTitle, &q.SyllabusSection, &q.Topic, &q.Bloom,
			&q.Text, &options, &q.Answer, &q.Explanation, &set, &position); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("question %d options: %w", q.ID, err)
		}
		if set.Valid {
			v := set.String
			q.ExamSet = &v
		}
		if position.Valid {
			v := int(position.Int64)
			q.ExamPosition = &v
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) CreateSession(ctx context.Context, draft domain.ExamSession) (domain.ExamSession, error) {
	sess := draft
	sess.ID = uuid.NewString()
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	if sess.Status == "" {
		sess.Status = domain.SessionStatusInProgress
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exam_sessions (id, started_at, total_questions, time_limit_secs, pass_score, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.StartedAt.UnixMilli(), sess.TotalQuestions, sess.TimeLimitSecs, sess.PassScore, string(sess.Status))
	if err != nil {
		return domain.ExamSession{}, err
	}
	return sess, nil
}

func (s *Store) LinkQuestions(ctx context.Context, sessionID string, links []domain.SessionQuestion) error {
	return s.inTx(ctx, `INSERT INTO session_questions (session_id, question_id, position) VALUES (?, ?, ?)`,
		len(links), func(i int) []any {
			return []any{sessionID, links[i].QuestionID, links[i].Position}
		})
}

func (s *Store) InitAnswers(ctx context.Context, sessionID string, questionIDs []int) error {
	return s.inTx(ctx, `INSERT INTO exam_answers (session_id, question_id) VALUES (?, ?)`,
		len(questionIDs), func(i int) []any {
			return []any{sessionID, questionIDs[i]}
		})
}

func (s *Store) UpdateAnswer(ctx context.Context, sessionID string, questionID int, selected *string, answeredAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exam_answers (session_id, question_id, selected_answer, answered_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (session_id, question_id)
		 DO UPDATE SET selected_answer=excluded.selected_answer, answered_at=excluded.answered_at`,
		sessionID, questionID, nullString(selected), answeredAt.UnixMilli())
	return err
}

func (s *Store) BulkUpsertAnswers(ctx context.Context, sessionID string, answers []domain.ExamAnswer) error {
	return s.inTx(ctx,
		`INSERT INTO exam_answers (session_id, question_id, selected_answer, is_correct, answered_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, question_id)
		 DO UPDATE SET selected_answer=excluded.selected_answer, is_correct=excluded.is_correct, answered_at=excluded.answered_at`,
		len(answers), func(i int) []any {
			a := answers[i]
			return []any{sessionID, a.QuestionID, nullString(a.SelectedAnswer), nullBool(a.IsCorrect), nullMillis(a.AnsweredAt)}
		})
}

func (s *Store) FinalizeSession(ctx context.Context, sessionID string, status domain.SessionStatus, score int, completedAt time.Time) (domain.ExamSession, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_sessions SET status = ?, score = ?, completed_at = ? WHERE id = ?`,
		string(status), score, completedAt.UnixMilli(), sessionID)
	if err != nil {
		return domain.ExamSession{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ExamSession{}, domain.ErrSessionNotFound
	}
	return s.GetSession(ctx, sessionID)
}

// GetSession loads one session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.ExamSession, error) {
	var (
		sess        domain.ExamSession
		startedAt   int64
		completedAt sql.NullInt64
		score       sql.NullInt64
		status      string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, completed_at, total_questions, time_limit_secs, score, pass_score, status
		 FROM exam_sessions WHERE id = ?`, sessionID).
		Scan(&sess.ID, &startedAt, &completedAt, &sess.TotalQuestions, &sess.TimeLimitSecs, &score, &sess.PassScore, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExamSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.ExamSession{}, err
	}
	sess.StartedAt = time.UnixMilli(startedAt)
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64)
		sess.CompletedAt = &t
	}
	if score.Valid {
		v := int(score.Int64)
		sess.Score = &v
	}
	sess.Status = domain.SessionStatus(status)
	return sess, nil
}

// Answers returns the answer rows of a session ordered by question position.
func (s *Store) Answers(ctx context.Context, sessionID string) ([]domain.ExamAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.question_id, a.selected_answer, a.is_correct, a.answered_at
		 FROM exam_answers a
		 JOIN session_questions sq ON sq.session_id = a.session_id AND sq.question_id = a.question_id
		 WHERE a.session_id = ?
		 ORDER BY sq.position`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []domain.ExamAnswer
	for rows.Next() {
		var (
			a          = domain.ExamAnswer{SessionID: sessionID}
			selected   sql.NullString
			correct    sql.NullBool
			answeredAt sql.NullInt64
		)
		if err := rows.Scan(&a.QuestionID, &selected, &correct, &answeredAt); err != nil {
			return nil, err
		}
		if selected.Valid {
			v := selected.String
			a.SelectedAnswer = &v
		}
		if correct.Valid {
			v := correct.Bool
			a.IsCorrect = &v
		}
		if answeredAt.Valid {
			t := time.UnixMilli(answeredAt.Int64)
			a.AnsweredAt = &t
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// inTx runs query once per row inside a single transaction.
func (s *Store) inTx(ctx context.Context, query string, n int, args func(i int) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func nullMillis(v *time.Time) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v.UnixMilli(), Valid: true}
}
