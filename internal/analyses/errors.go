package analyses

import "errors"

var (
	ErrNotFound      = errors.New("analysis not found")
	ErrInvalidRecord = errors.New("invalid analysis record")
)
