package app

import (
	"context"
	"time"

	"certexam-service/internal/domain"
)

// QuestionRepository is the read-only source of question content.
type QuestionRepository interface {
	// ByChapterExcludingSets returns every question of a chapter that belongs to no official set.
	ByChapterExcludingSets(ctx context.Context, chapter int) ([]domain.Question, error)
	// BySet returns the questions of an official set ordered by exam position.
	BySet(ctx context.Context, set string) ([]domain.Question, error)
}

// SessionStore durably records sessions and their answers.
type SessionStore interface {
	// CreateSession persists draft and returns it with its id assigned. A zero
	// StartedAt is filled in by the store.
	CreateSession(ctx context.Context, draft domain.ExamSession) (domain.ExamSession, error)
	LinkQuestions(ctx context.Context, sessionID string, links []domain.SessionQuestion) error
	InitAnswers(ctx context.Context, sessionID string, questionIDs []int) error
	UpdateAnswer(ctx context.Context, sessionID string, questionID int, selected *string, answeredAt time.Time) error
	// BulkUpsertAnswers writes all rows or none, keyed by (session_id, question_id).
	BulkUpsertAnswers(ctx context.Context, sessionID string, answers []domain.ExamAnswer) error
	FinalizeSession(ctx context.Context, sessionID string, status domain.SessionStatus, score int, completedAt time.Time) (domain.ExamSession, error)
}

// EngineRegistry keeps one exam engine per client (in-memory, Redis, etc).
type EngineRegistry interface {
	GetOrCreate(clientID string) *Engine
	Get(clientID string) (*Engine, bool)
	// Delete resets and drops the client's engine.
	Delete(clientID string)
}
