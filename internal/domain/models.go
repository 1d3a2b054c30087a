package domain

import "time"

// Question is an immutable exam question as stored in the question bank.
type Question struct {
	ID              int               `json:"id" yaml:"id"`
	Chapter         int               `json:"chapter" yaml:"chapter"`
	ChapterTitle    string            `json:"chapter_title" yaml:"chapter_title"`
	SyllabusSection string            `json:"syllabus_section" yaml:"syllabus_section"`
	Topic           string            `json:"topic" yaml:"topic"`
	Bloom           string            `json:"bloom" yaml:"bloom"`
	Text            string            `json:"question" yaml:"question"`
	Options         map[string]string `json:"options" yaml:"options"`
	Answer          string            `json:"answer" yaml:"answer"`
	Explanation     string            `json:"explanation" yaml:"explanation"`
	ExamSet         *string           `json:"exam_set,omitempty" yaml:"exam_set,omitempty"`
	ExamPosition    *int              `json:"exam_position,omitempty" yaml:"exam_position,omitempty"`
}

// ActiveQuestion is a question enriched with the state of one running exam.
type ActiveQuestion struct {
	Question
	Position       int     `json:"position"`
	SelectedAnswer *string `json:"selected_answer"`
	Flagged        bool    `json:"flagged"`
}

// Answered reports whether any option is currently selected.
func (q ActiveQuestion) Answered() bool {
	return q.SelectedAnswer != nil && *q.SelectedAnswer != ""
}

// MultiSelect reports whether the question expects more than one key.
func (q ActiveQuestion) MultiSelect() bool {
	return IsMultiSelect(q.Answer)
}

// SessionStatus enumerates persisted exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusAbandoned  SessionStatus = "abandoned"
)

const (
	DefaultTimeLimitSecs = 3600
	DefaultPassScore     = 26
)

// ExamSession is the durable record of one exam attempt.
type ExamSession struct {
	ID             string        `json:"id"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at"`
	TotalQuestions int           `json:"total_questions"`
	TimeLimitSecs  int           `json:"time_limit_secs"`
	Score          *int          `json:"score"`
	PassScore      int           `json:"pass_score"`
	Status         SessionStatus `json:"status"`
}

// SessionQuestion links a question to a session at a fixed position.
type SessionQuestion struct {
	SessionID  string `json:"session_id"`
	QuestionID int    `json:"question_id"`
	Position   int    `json:"position"`
}

// ExamAnswer is one persisted answer row, keyed by (session, question).
type ExamAnswer struct {
	SessionID      string     `json:"session_id"`
	QuestionID     int        `json:"question_id"`
	SelectedAnswer *string    `json:"selected_answer"`
	IsCorrect      *bool      `json:"is_correct"`
	AnsweredAt     *time.Time `json:"answered_at"`
}

// ChapterResult summarizes correctness for one syllabus chapter.
type ChapterResult struct {
	Chapter      int    `json:"chapter"`
	ChapterTitle string `json:"chapter_title"`
	Total        int    `json:"total"`
	Correct      int    `json:"correct"`
	Pct          int    `json:"pct"`
}

// ExamResult is assembled once an exam is submitted. It is never persisted as such.
type ExamResult struct {
	Session        ExamSession      `json:"session"`
	Score          int              `json:"score"`
	Total          int              `json:"total"`
	Passed         bool             `json:"passed"`
	Pct            int              `json:"pct"`
	TimeTakenSecs  int              `json:"time_taken_secs"`
	ChapterResults []ChapterResult  `json:"chapter_results"`
	Questions      []ActiveQuestion `json:"questions"`
}

// EngineState is the lifecycle state of an exam engine.
type EngineState string

const (
	StateIdle       EngineState = "idle"
	StateInProgress EngineState = "in_progress"
	StateSubmitted  EngineState = "submitted"
)
