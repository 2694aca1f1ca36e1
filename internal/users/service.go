package users

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrPromoAlreadyRedeemed is wrapped in a *PromoConflictError.
	ErrPromoAlreadyRedeemed = errors.New("user already redeemed a promo code")
)

// PromoConflictError reports the code a user redeemed first.
type PromoConflictError struct {
	FirstCode string
}

func (e *PromoConflictError) Error() string {
	return "promo code already redeemed: " + e.FirstCode
}

func (e *PromoConflictError) Unwrap() error { return ErrPromoAlreadyRedeemed }

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

func (s *Service) configured() error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	return nil
}

// EnsureUser creates the user record on first contact.
func (s *Service) EnsureUser(ctx context.Context, userID, transport, displayName string) (User, error) {
	if err := s.configured(); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.Ensure(ctx, User{ID: userID, Transport: transport, DisplayName: displayName})
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if err := s.configured(); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// IncrementCVCount bumps totalCVAnalyzed, creating the user if needed.
func (s *Service) IncrementCVCount(ctx context.Context, userID string) (int, error) {
	if err := s.configured(); err != nil {
		return 0, err
	}
	n, err := s.Repo.IncrementCVCount(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		if _, err := s.Repo.Ensure(ctx, User{ID: userID}); err != nil {
			return 0, err
		}
		return s.Repo.IncrementCVCount(ctx, userID)
	}
	return n, err
}

// HasUnlimitedAccess reports whether a promo was redeemed. Unknown users have none.
func (s *Service) HasUnlimitedAccess(ctx context.Context, userID string) (bool, error) {
	user, err := s.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.HasUnlimitedAccess, nil
}

// RedeemPromo grants unlimited access. First write wins: redeeming the same
// code again succeeds, a different code fails with *PromoConflictError.
func (s *Service) RedeemPromo(ctx context.Context, userID, code string) error {
	if err := s.configured(); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("promo code is required")
	}
	if _, err := s.Repo.Ensure(ctx, User{ID: userID}); err != nil {
		return err
	}
	stored, err := s.Repo.RedeemPromo(ctx, userID, code)
	if err != nil {
		return err
	}
	if !strings.EqualFold(stored, code) {
		return &PromoConflictError{FirstCode: stored}
	}
	return nil
}
