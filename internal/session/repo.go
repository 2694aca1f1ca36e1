package session

import "context"

// Repo persists sessions with optimistic concurrency. Version starts at 1 on
// Create and is bumped by every successful CompareAndSwap.
type Repo interface {
	Get(ctx context.Context, userID string) (Session, error)
	Create(ctx context.Context, s Session) error
	CompareAndSwap(ctx context.Context, s Session, expectedVersion int64) error
}
