package users

import (
	"context"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User)}
}

func (r *MemoryRepo) Ensure(ctx context.Context, user User) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[user.ID]; ok {
		return existing, nil
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) IncrementCVCount(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return 0, ErrNotFound
	}
	user.TotalCVAnalyzed++
	user.UpdatedAt = time.Now().UTC()
	r.users[userID] = user
	return user.TotalCVAnalyzed, nil
}

func (r *MemoryRepo) RedeemPromo(ctx context.Context, userID, code string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return "", ErrNotFound
	}
	if user.RedeemedPromoCode != "" {
		return user.RedeemedPromoCode, nil
	}
	now := time.Now().UTC()
	user.RedeemedPromoCode = code
	user.HasUnlimitedAccess = true
	user.PromoRedeemedAt = &now
	user.UpdatedAt = now
	r.users[userID] = user
	return code, nil
}
