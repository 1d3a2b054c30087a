package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is matched by every InvalidStateError.
	ErrInvalidState = errors.New("operation not allowed in current exam state")
	// ErrInvalidExamMode indicates an unknown mode type or official set.
	ErrInvalidExamMode = errors.New("invalid exam mode")
	// ErrUnknownOption is returned when a selected key is not an option of the question.
	ErrUnknownOption = errors.New("option not found")
	// ErrInvalidQuestion marks question bank content that breaks a data invariant.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidQuota marks a chapter quota that cannot produce a well-formed exam.
	ErrInvalidQuota = errors.New("invalid chapter quota")
	// ErrSessionNotFound is returned by stores for unknown session ids.
	ErrSessionNotFound = errors.New("exam session not found")
)

// EmptySetError means an official set has no questions configured.
type EmptySetError struct {
	Set string
}

func (e *EmptySetError) Error() string {
	return fmt.Sprintf("no questions found for official exam %s", e.Set)
}

// EmptyChapterError means a chapter has no questions eligible for random exams.
type EmptyChapterError struct {
	Chapter int
}

func (e *EmptyChapterError) Error() string {
	return fmt.Sprintf("no questions found for chapter %d", e.Chapter)
}

// RepositoryError wraps a failure reading questions.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("question repository: %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// PersistenceError wraps a failure writing sessions or answers.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// InvalidStateError reports an engine operation attempted in a state that forbids it.
type InvalidStateError struct {
	Op    string
	State EngineState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed while exam is %s", e.Op, e.State)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}
