package session

import "errors"

var (
	ErrNotFound = errors.New("session not found")
	// ErrConflict means the stored version moved since it was read.
	ErrConflict = errors.New("session version conflict")
	// ErrAnswerExists is returned when an answer slot is written twice.
	ErrAnswerExists = errors.New("answer already recorded")
	// ErrInvalidState is returned when a write would leave an unknown state.
	ErrInvalidState = errors.New("invalid session state")
	// ErrSkip aborts a Mutate without writing.
	ErrSkip = errors.New("skip session write")
)
