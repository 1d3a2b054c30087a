package domain

import (
	"errors"
	"testing"
)

func TestCanonicalAnswer(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"A":       "A",
		"B,A":     "A,B",
		" C, A ":  "A,C",
		"E,B,D,A": "A,B,D,E",
	}
	for in, want := range cases {
		if got := CanonicalAnswer(in); got != want {
			t.Fatalf("CanonicalAnswer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToggleKeyRoundTrip(t *testing.T) {
	start := "A,C"
	once := ToggleKey(&start, "B")
	if once == nil || *once != "A,B,C" {
		t.Fatalf("expected A,B,C, got %v", once)
	}
	twice := ToggleKey(once, "B")
	if twice == nil || *twice != start {
		t.Fatalf("expected toggle pair to restore %q, got %v", start, twice)
	}
}

func TestToggleKeyEmptiesToNil(t *testing.T) {
	first := ToggleKey(nil, "D")
	if first == nil || *first != "D" {
		t.Fatalf("expected D, got %v", first)
	}
	if got := ToggleKey(first, "D"); got != nil {
		t.Fatalf("expected nil selection, got %q", *got)
	}
}

func TestIsMultiSelect(t *testing.T) {
	if IsMultiSelect("B") {
		t.Fatalf("single key reported as multi-select")
	}
	if !IsMultiSelect("A,D") {
		t.Fatalf("two keys not reported as multi-select")
	}
}

func TestQuestionValidate(t *testing.T) {
	set := "A"
	pos := 3
	blank := ""
	base := func() Question {
		return Question{
			ID:      1,
			Chapter: 2,
			Options: map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
			Answer:  "B",
		}
	}

	tests := []struct {
		name    string
		mutate  func(q *Question)
		wantErr bool
	}{
		{name: "valid single", mutate: func(q *Question) {}},
		{name: "valid multi with E", mutate: func(q *Question) { q.Options["E"] = "e"; q.Answer = "A,E" }},
		{name: "valid official", mutate: func(q *Question) { q.ExamSet = &set; q.ExamPosition = &pos }},
		{name: "chapter out of range", mutate: func(q *Question) { q.Chapter = 7 }, wantErr: true},
		{name: "answer not an option", mutate: func(q *Question) { q.Answer = "E" }, wantErr: true},
		{name: "answer not canonical", mutate: func(q *Question) { q.Answer = "C,A" }, wantErr: true},
		{name: "missing option", mutate: func(q *Question) { delete(q.Options, "D") }, wantErr: true},
		{name: "set without position", mutate: func(q *Question) { q.ExamSet = &set }, wantErr: true},
		{name: "empty set", mutate: func(q *Question) { q.ExamSet = &blank }, wantErr: true},
		{name: "empty set with position", mutate: func(q *Question) { q.ExamSet = &blank; q.ExamPosition = &pos }, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := base()
			tc.mutate(&q)
			err := q.Validate()
			if tc.wantErr && !errors.Is(err, ErrInvalidQuestion) {
				t.Fatalf("expected invalid question error, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestExamModeValidate(t *testing.T) {
	if err := RandomMode().Validate(); err != nil {
		t.Fatalf("random mode: %v", err)
	}
	if err := OfficialMode("C").Validate(); err != nil {
		t.Fatalf("official C: %v", err)
	}
	if err := OfficialMode("Z").Validate(); !errors.Is(err, ErrInvalidExamMode) {
		t.Fatalf("expected invalid mode, got %v", err)
	}
}

func TestInvalidStateErrorMatchesSentinel(t *testing.T) {
	var err error = &InvalidStateError{Op: "goto", State: StateIdle}
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected errors.Is to match ErrInvalidState")
	}
}
