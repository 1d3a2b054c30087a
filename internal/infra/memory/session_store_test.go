package memory

import (
	"context"
	"testing"
	"time"

	"certexam-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	sess, err := store.CreateSession(ctx, domain.ExamSession{TotalQuestions: 2, TimeLimitSecs: 3600, PassScore: 1})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.ID == "" || sess.StartedAt.IsZero() || sess.Status != domain.SessionStatusInProgress {
		t.Fatalf("expected id, start time and in_progress status, got %+v", sess)
	}

	links := []domain.SessionQuestion{{SessionID: sess.ID, QuestionID: 10, Position: 1}, {SessionID: sess.ID, QuestionID: 11, Position: 2}}
	if err := store.LinkQuestions(ctx, sess.ID, links); err != nil {
		t.Fatalf("link questions: %v", err)
	}
	if err := store.InitAnswers(ctx, sess.ID, []int{10, 11}); err != nil {
		t.Fatalf("init answers: %v", err)
	}

	sel := "B"
	at := time.Date(2026, 1, 1, 9, 1, 0, 0, time.UTC)
	if err := store.UpdateAnswer(ctx, sess.ID, 10, &sel, at); err != nil {
		t.Fatalf("update answer: %v", err)
	}
	row, ok := store.Answer(sess.ID, 10)
	if !ok || row.SelectedAnswer == nil || *row.SelectedAnswer != "B" || !row.AnsweredAt.Equal(at) {
		t.Fatalf("unexpected answer row %+v", row)
	}

	correct, wrong := true, false
	err = store.BulkUpsertAnswers(ctx, sess.ID, []domain.ExamAnswer{
		{QuestionID: 10, SelectedAnswer: &sel, IsCorrect: &correct, AnsweredAt: &at},
		{QuestionID: 11, IsCorrect: &wrong},
	})
	if err != nil {
		t.Fatalf("bulk upsert: %v", err)
	}
	if row, _ := store.Answer(sess.ID, 11); row.IsCorrect == nil || *row.IsCorrect {
		t.Fatalf("expected question 11 scored incorrect, got %+v", row)
	}

	final, err := store.FinalizeSession(ctx, sess.ID, domain.SessionStatusCompleted, 1, at)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Status != domain.SessionStatusCompleted || final.Score == nil || *final.Score != 1 {
		t.Fatalf("unexpected finalized session %+v", final)
	}
	if got := store.Links(sess.ID); len(got) != 2 {
		t.Fatalf("expected 2 links, got %d", len(got))
	}
}

func TestSessionStoreUnknownSession(t *testing.T) {
	store := NewSessionStore()
	if err := store.InitAnswers(context.Background(), "missing", []int{1}); err != domain.ErrSessionNotFound {
		t.Fatalf("expected session not found, got %v", err)
	}
	if _, err := store.FinalizeSession(context.Background(), "missing", domain.SessionStatusCompleted, 0, time.Now()); err != domain.ErrSessionNotFound {
		t.Fatalf("expected session not found, got %v", err)
	}
}
