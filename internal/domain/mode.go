package domain

import "fmt"

// ModeType selects how an exam's questions are chosen.
type ModeType string

const (
	ModeRandom   ModeType = "random"
	ModeOfficial ModeType = "official"
)

// OfficialSets lists the identifiers of the fixed official exams.
var OfficialSets = []string{"A", "B", "C", "D"}

// ExamMode is either a quota-based random draw or one of the official sets.
type ExamMode struct {
	Type ModeType `json:"type"`
	Set  string   `json:"set,omitempty"`
}

// RandomMode returns the default exam mode.
func RandomMode() ExamMode {
	return ExamMode{Type: ModeRandom}
}

// OfficialMode returns the mode for a fixed official set.
func OfficialMode(set string) ExamMode {
	return ExamMode{Type: ModeOfficial, Set: set}
}

// Validate checks the mode type and, for official exams, the set identifier.
func (m ExamMode) Validate() error {
	switch m.Type {
	case ModeRandom:
		return nil
	case ModeOfficial:
		if IsOfficialSet(m.Set) {
			return nil
		}
		return fmt.Errorf("%w: unknown official set %q", ErrInvalidExamMode, m.Set)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidExamMode, m.Type)
	}
}

func (m ExamMode) String() string {
	if m.Type == ModeOfficial {
		return "official:" + m.Set
	}
	return string(m.Type)
}

// IsOfficialSet reports whether set names one of the official exams.
func IsOfficialSet(set string) bool {
	for _, s := range OfficialSets {
		if s == set {
			return true
		}
	}
	return false
}
