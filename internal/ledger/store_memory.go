package ledger

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string][]Entry)}
}

func (s *memoryStore) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.UserID] = append(s.entries[e.UserID], e)
	return nil
}

func (s *memoryStore) Entries(ctx context.Context, userID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries[userID]...), nil
}

func (s *memoryStore) Balance(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Balance(s.entries[userID]), nil
}

func (s *memoryStore) Consume(ctx context.Context, e Entry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	balance := Balance(s.entries[e.UserID])
	if balance < e.Amount {
		return balance, ErrInsufficientCredits
	}
	s.entries[e.UserID] = append(s.entries[e.UserID], e)
	return balance - e.Amount, nil
}

func (s *memoryStore) FreeClaimed(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FreeClaimed(s.entries[userID]), nil
}

func (s *memoryStore) ClaimFree(ctx context.Context, e Entry, limit, done int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if max(FreeClaimed(s.entries[e.UserID]), done)+e.Amount > limit {
		return false, nil
	}
	s.entries[e.UserID] = append(s.entries[e.UserID], e)
	return true, nil
}
