package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type store interface {
	Append(ctx context.Context, e Entry) error
	Entries(ctx context.Context, userID string) ([]Entry, error)
	Balance(ctx context.Context, userID string) (int, error)
	// Consume appends e only if the balance covers it, atomically.
	Consume(ctx context.Context, e Entry) (remaining int, err error)
	FreeClaimed(ctx context.Context, userID string) (int, error)
	// ClaimFree appends e only while claims and done analyses stay within
	// limit, atomically.
	ClaimFree(ctx context.Context, e Entry, limit, done int) (bool, error)
}

// AnalysisCounter counts a user's completed CV analyses.
type AnalysisCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

// AccessChecker reports promo-granted unlimited access.
type AccessChecker interface {
	HasUnlimitedAccess(ctx context.Context, userID string) (bool, error)
}

// Service manages the credit ledger via an underlying store.
type Service struct {
	store    store
	Analyses AnalysisCounter
	Access   AccessChecker
	Now      func() time.Time
}

// NewService constructs a Service with an in-memory store.
func NewService(analyses AnalysisCounter, access AccessChecker) *Service {
	return &Service{store: newMemoryStore(), Analyses: analyses, Access: access}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store, analyses AnalysisCounter, access AccessChecker) *Service {
	return &Service{store: pgStore, Analyses: analyses, Access: access}
}

func (s *Service) newEntry(userID string, amount int, kind Kind, description string) (Entry, error) {
	if strings.TrimSpace(userID) == "" {
		return Entry{}, fmt.Errorf("%w: user id is required", ErrInvalidEntry)
	}
	if !kind.Valid() {
		return Entry{}, fmt.Errorf("%w: kind %q", ErrInvalidEntry, kind)
	}
	if amount < 0 {
		return Entry{}, fmt.Errorf("%w: negative amount", ErrInvalidEntry)
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	return Entry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		CreatedAt:   now,
	}, nil
}

// Entitlement decides what pays for the user's next analysis. The first
// freeLimit analyses are free regardless of balance; a free claim still
// running counts as done.
func (s *Service) Entitlement(ctx context.Context, userID string, freeLimit int) (Entitlement, error) {
	if s.Analyses == nil {
		return Entitlement{}, errors.New("ledger: analysis counter not configured")
	}
	done, err := s.Analyses.CountByUser(ctx, userID)
	if err != nil {
		return Entitlement{}, fmt.Errorf("count analyses: %w", err)
	}
	claimed, err := s.store.FreeClaimed(ctx, userID)
	if err != nil {
		return Entitlement{}, fmt.Errorf("free claims: %w", err)
	}
	done = max(done, claimed)
	remaining, err := s.store.Balance(ctx, userID)
	if err != nil {
		return Entitlement{}, fmt.Errorf("balance: %w", err)
	}
	ent := Entitlement{AnalysesDone: done, RemainingCredits: remaining}
	switch {
	case done < freeLimit:
		ent.Source = SourceFree
		return ent, nil
	case s.Access != nil:
		unlimited, err := s.Access.HasUnlimitedAccess(ctx, userID)
		if err != nil {
			return Entitlement{}, fmt.Errorf("unlimited access: %w", err)
		}
		if unlimited {
			ent.Source = SourceUnlimited
			return ent, nil
		}
	}
	if remaining > 0 {
		ent.Source = SourceCredit
	} else {
		ent.Source = SourceNone
	}
	return ent, nil
}

// ShouldUserPayForCVAnalysis is true once the free analyses are used up and
// the user holds neither unlimited access nor unconsumed credits.
func (s *Service) ShouldUserPayForCVAnalysis(ctx context.Context, userID string, freeLimit int) (bool, error) {
	ent, err := s.Entitlement(ctx, userID, freeLimit)
	if err != nil {
		return false, err
	}
	return ent.Source == SourceNone, nil
}

// Reserve sets aside what pays for one analysis before it runs: a free
// claim or a consumed credit. Unlimited access reserves nothing. Source is
// SourceNone when the user has to buy credits first.
func (s *Service) Reserve(ctx context.Context, userID string, freeLimit int, description string) (Reservation, error) {
	for attempt := 0; attempt < 2; attempt++ {
		ent, err := s.Entitlement(ctx, userID, freeLimit)
		if err != nil {
			return Reservation{}, err
		}
		switch ent.Source {
		case SourceFree:
			e, err := s.newEntry(userID, 1, KindFreeClaim, description)
			if err != nil {
				return Reservation{}, err
			}
			ok, err := s.store.ClaimFree(ctx, e, freeLimit, ent.AnalysesDone)
			if err != nil {
				return Reservation{}, fmt.Errorf("claim free analysis: %w", err)
			}
			if ok {
				return Reservation{Source: SourceFree, EntryID: e.ID}, nil
			}
			// Another document took the last free analysis; decide again.
		case SourceUnlimited:
			return Reservation{Source: SourceUnlimited}, nil
		case SourceCredit:
			e, err := s.newEntry(userID, 1, KindConsume, description)
			if err != nil {
				return Reservation{}, err
			}
			if _, err := s.store.Consume(ctx, e); err != nil {
				if errors.Is(err, ErrInsufficientCredits) {
					return Reservation{Source: SourceNone}, nil
				}
				return Reservation{}, fmt.Errorf("consume credit: %w", err)
			}
			return Reservation{Source: SourceCredit, EntryID: e.ID}, nil
		default:
			return Reservation{Source: SourceNone}, nil
		}
	}
	return Reservation{Source: SourceNone}, nil
}

// Release gives back a reservation whose analysis was not delivered.
func (s *Service) Release(ctx context.Context, userID string, r Reservation, description string) error {
	switch r.Source {
	case SourceFree:
		return s.RecordTransaction(ctx, userID, 1, KindFreeRelease, description)
	case SourceCredit:
		return s.RecordTransaction(ctx, userID, 1, KindRefund, description)
	}
	return nil
}

// GetRemainingCredits returns purchased credits granted minus consumed.
func (s *Service) GetRemainingCredits(ctx context.Context, userID string) (int, error) {
	return s.store.Balance(ctx, userID)
}

// UseCredit consumes one credit atomically; ErrInsufficientCredits when empty.
func (s *Service) UseCredit(ctx context.Context, userID, description string) (int, error) {
	e, err := s.newEntry(userID, 1, KindConsume, description)
	if err != nil {
		return 0, err
	}
	return s.store.Consume(ctx, e)
}

// AddCredits appends a purchase grant of n credits.
func (s *Service) AddCredits(ctx context.Context, userID string, n int, description string) error {
	if n <= 0 {
		return fmt.Errorf("%w: credits must be positive", ErrInvalidEntry)
	}
	return s.RecordTransaction(ctx, userID, n, KindPurchase, description)
}

// RecordTransaction appends an audit entry. Store failures are returned to
// the caller unchanged.
func (s *Service) RecordTransaction(ctx context.Context, userID string, amount int, kind Kind, description string) error {
	e, err := s.newEntry(userID, amount, kind, description)
	if err != nil {
		return err
	}
	if err := s.store.Append(ctx, e); err != nil {
		return fmt.Errorf("record %s for %s: %w", kind, userID, err)
	}
	return nil
}

// History lists a user's entries oldest first.
func (s *Service) History(ctx context.Context, userID string) ([]Entry, error) {
	return s.store.Entries(ctx, userID)
}
