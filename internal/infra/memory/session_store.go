package memory

import (
	"context"
	"sync"
	"time"

	"certexam-service/internal/domain"
	"github.com/google/uuid"
)

// SessionStore is an in-memory implementation of app.SessionStore.
type SessionStore struct {
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]*domain.ExamSession
	links    map[string][]domain.SessionQuestion
	answers  map[string]map[int]domain.ExamAnswer
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		clock:    time.Now,
		sessions: make(map[string]*domain.ExamSession),
		links:    make(map[string][]domain.SessionQuestion),
		answers:  make(map[string]map[int]domain.ExamAnswer),
	}
}

func (s *SessionStore) CreateSession(_ context.Context, draft domain.ExamSession) (domain.ExamSession, error) {
	sess := draft
	sess.ID = uuid.NewString()
	if sess.StartedAt.IsZero() {
		sess.StartedAt = s.clock()
	}
	if sess.Status == "" {
		sess.Status = domain.SessionStatusInProgress
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = &sess
	s.answers[sess.ID] = make(map[int]domain.ExamAnswer)
	return sess, nil
}

func (s *SessionStore) LinkQuestions(_ context.Context, sessionID string, links []domain.SessionQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	s.links[sessionID] = append(s.links[sessionID], links...)
	return nil
}

func (s *SessionStore) InitAnswers(_ context.Context, sessionID string, questionIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.answers[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	for _, id := range questionIDs {
		rows[id] = domain.ExamAnswer{SessionID: sessionID, QuestionID: id}
	}
	return nil
}

func (s *SessionStore) UpdateAnswer(_ context.Context, sessionID string, questionID int, selected *string, answeredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.answers[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	row := rows[questionID]
	row.SessionID = sessionID
	row.QuestionID = questionID
	row.SelectedAnswer = copyString(selected)
	at := answeredAt
	row.AnsweredAt = &at
	rows[questionID] = row
	return nil
}

func (s *SessionStore) BulkUpsertAnswers(_ context.Context, sessionID string, answers []domain.ExamAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.answers[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	for _, a := range answers {
		a.SessionID = sessionID
		a.SelectedAnswer = copyString(a.SelectedAnswer)
		rows[a.QuestionID] = a
	}
	return nil
}

func (s *SessionStore) FinalizeSession(_ context.Context, sessionID string, status domain.SessionStatus, score int, completedAt time.Time) (domain.ExamSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.ExamSession{}, domain.ErrSessionNotFound
	}
	sess.Status = status
	sc := score
	sess.Score = &sc
	at := completedAt
	sess.CompletedAt = &at
	return *sess, nil
}

// Session returns a stored session by id.
func (s *SessionStore) Session(sessionID string) (domain.ExamSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.ExamSession{}, false
	}
	return *sess, true
}

// Links returns the question links of a session in insertion order.
func (s *SessionStore) Links(sessionID string) []domain.SessionQuestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.SessionQuestion(nil), s.links[sessionID]...)
}

// Answer returns the stored answer row for a question of a session.
func (s *SessionStore) Answer(sessionID string, questionID int) (domain.ExamAnswer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.answers[sessionID][questionID]
	return row, ok
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
