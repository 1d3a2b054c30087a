package app_test

import (
	"testing"
	"time"

	"certexam-service/internal/app"
	"certexam-service/internal/domain"
)

func active(id, chapter int, answer string, selected *string) domain.ActiveQuestion {
	return domain.ActiveQuestion{
		Question: domain.Question{
			ID:           id,
			Chapter:      chapter,
			ChapterTitle: "Chapter",
			Options:      map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
			Answer:       answer,
		},
		Position:       id,
		SelectedAnswer: selected,
	}
}

func str(s string) *string { return &s }

func TestIsCorrect(t *testing.T) {
	cases := []struct {
		name     string
		answer   string
		selected *string
		want     bool
	}{
		{name: "unanswered", answer: "A", selected: nil, want: false},
		{name: "single match", answer: "A", selected: str("A"), want: true},
		{name: "single miss", answer: "A", selected: str("B"), want: false},
		{name: "multi order-insensitive", answer: "A,C", selected: str("C,A"), want: true},
		{name: "multi partial", answer: "A,C", selected: str("A"), want: false},
		{name: "multi superset", answer: "A,C", selected: str("A,B,C"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := app.IsCorrect(active(1, 1, tc.answer, tc.selected)); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestChapterBreakdown(t *testing.T) {
	qs := []domain.ActiveQuestion{
		active(1, 2, "A", str("A")),
		active(2, 1, "B", str("B")),
		active(3, 1, "C", str("A")),
		active(4, 2, "D", nil),
		active(5, 2, "A", str("A")),
	}

	got := app.ChapterBreakdown(qs)
	if len(got) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(got))
	}
	if got[0].Chapter != 1 || got[0].Total != 2 || got[0].Correct != 1 || got[0].Pct != 50 {
		t.Fatalf("unexpected chapter 1 result %+v", got[0])
	}
	if got[1].Chapter != 2 || got[1].Total != 3 || got[1].Correct != 2 || got[1].Pct != 67 {
		t.Fatalf("unexpected chapter 2 result %+v", got[1])
	}

	correct := 0
	for _, cr := range got {
		correct += cr.Correct
		if cr.Pct < 0 || cr.Pct > 100 {
			t.Fatalf("pct out of range: %+v", cr)
		}
	}
	if correct != 3 {
		t.Fatalf("expected chapter totals to sum to score 3, got %d", correct)
	}
}

func TestBuildResult(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	session := domain.ExamSession{ID: "s1", StartedAt: started, PassScore: 2}
	qs := []domain.ActiveQuestion{
		active(1, 1, "A", str("A")),
		active(2, 1, "B", str("B")),
		active(3, 3, "C", nil),
	}

	res := app.BuildResult(session, qs, started.Add(90*time.Second+700*time.Millisecond))
	if res.Score != 2 || res.Total != 3 || !res.Passed || res.Pct != 67 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.TimeTakenSecs != 90 {
		t.Fatalf("expected floored time of 90s, got %d", res.TimeTakenSecs)
	}
	if len(res.Questions) != 3 || len(res.ChapterResults) != 2 {
		t.Fatalf("expected questions and chapter results in result, got %+v", res)
	}

	empty := app.BuildResult(session, nil, started)
	if empty.Pct != 0 || empty.Passed {
		t.Fatalf("expected empty exam to score 0 and fail, got %+v", empty)
	}
}
