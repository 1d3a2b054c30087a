package domain

import (
	"fmt"
	"sort"
	"strings"
)

// OptionKeys are the keys an option map may contain, in display order.
var OptionKeys = []string{"A", "B", "C", "D", "E"}

// SplitAnswer splits a comma-joined answer into trimmed, non-empty keys.
func SplitAnswer(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if k := strings.TrimSpace(p); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// CanonicalAnswer returns the sorted, comma-joined form of raw.
func CanonicalAnswer(raw string) string {
	keys := SplitAnswer(raw)
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// IsMultiSelect reports whether an answer key names more than one option.
func IsMultiSelect(answer string) bool {
	return len(SplitAnswer(answer)) > 1
}

// ToggleKey flips key's membership in a multi-select selection. The result is
// canonical, or nil when nothing remains selected.
func ToggleKey(selection *string, key string) *string {
	var current []string
	if selection != nil {
		current = SplitAnswer(*selection)
	}
	next := make([]string, 0, len(current)+1)
	found := false
	for _, k := range current {
		if k == key {
			found = true
			continue
		}
		next = append(next, k)
	}
	if !found {
		next = append(next, key)
	}
	if len(next) == 0 {
		return nil
	}
	sort.Strings(next)
	joined := strings.Join(next, ",")
	return &joined
}

// Validate checks the structural invariants of a bank question.
func (q Question) Validate() error {
	if q.Chapter < 1 || q.Chapter > 6 {
		return fmt.Errorf("%w: question %d: chapter %d out of range", ErrInvalidQuestion, q.ID, q.Chapter)
	}
	for _, k := range OptionKeys[:4] {
		if _, ok := q.Options[k]; !ok {
			return fmt.Errorf("%w: question %d: missing option %s", ErrInvalidQuestion, q.ID, k)
		}
	}
	for k := range q.Options {
		if !isOptionKey(k) {
			return fmt.Errorf("%w: question %d: unexpected option key %q", ErrInvalidQuestion, q.ID, k)
		}
	}
	keys := SplitAnswer(q.Answer)
	if len(keys) == 0 {
		return fmt.Errorf("%w: question %d: empty answer", ErrInvalidQuestion, q.ID)
	}
	for _, k := range keys {
		if _, ok := q.Options[k]; !ok {
			return fmt.Errorf("%w: question %d: answer key %s is not an option", ErrInvalidQuestion, q.ID, k)
		}
	}
	if q.Answer != CanonicalAnswer(q.Answer) {
		return fmt.Errorf("%w: question %d: answer %q is not canonical", ErrInvalidQuestion, q.ID, q.Answer)
	}
	if q.ExamSet != nil && *q.ExamSet == "" {
		return fmt.Errorf("%w: question %d: exam_set is empty, omit it for random-pool questions", ErrInvalidQuestion, q.ID)
	}
	hasSet := q.ExamSet != nil
	hasPos := q.ExamPosition != nil && *q.ExamPosition > 0
	if hasSet != hasPos {
		return fmt.Errorf("%w: question %d: exam_set and exam_position must be set together", ErrInvalidQuestion, q.ID)
	}
	if hasSet && !IsOfficialSet(*q.ExamSet) {
		return fmt.Errorf("%w: question %d: unknown exam set %q", ErrInvalidQuestion, q.ID, *q.ExamSet)
	}
	return nil
}

// HasOption reports whether key is one of the question's options.
func (q Question) HasOption(key string) bool {
	_, ok := q.Options[key]
	return ok
}

func isOptionKey(k string) bool {
	for _, o := range OptionKeys {
		if o == k {
			return true
		}
	}
	return false
}
