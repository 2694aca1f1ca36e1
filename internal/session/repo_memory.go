package session

import (
	"context"
	"sync"
)

type MemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{sessions: make(map[string]Session)}
}

func (r *MemoryRepo) Get(ctx context.Context, userID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s.clone(), nil
}

func (r *MemoryRepo) Create(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.UserID]; ok {
		return ErrConflict
	}
	s = s.clone()
	s.Version = 1
	r.sessions[s.UserID] = s
	return nil
}

func (r *MemoryRepo) CompareAndSwap(ctx context.Context, s Session, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[s.UserID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrConflict
	}
	s = s.clone()
	s.Version = expectedVersion + 1
	r.sessions[s.UserID] = s
	return nil
}
