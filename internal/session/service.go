package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cvbot-backend/internal/shared/telemetry"
)

const defaultMaxAttempts = 5

type Service struct {
	Repo        Repo
	Now         func() time.Time
	MaxAttempts int
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns the user's session, creating a default one on first contact.
func (s *Service) Get(ctx context.Context, userID string) (Session, error) {
	if s == nil || s.Repo == nil {
		return Session{}, errors.New("session service not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Session{}, errors.New("user id is required")
	}
	sess, err := s.Repo.Get(ctx, userID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}
	fresh := newSession(userID, s.now())
	if err := s.Repo.Create(ctx, fresh); err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost the creation race; the winner's row is authoritative.
			return s.Repo.Get(ctx, userID)
		}
		return Session{}, err
	}
	fresh.Version = 1
	return fresh, nil
}

// Mutate runs fn against the latest session and writes the result with a
// compare-and-swap, retrying on version conflicts. fn may run more than once.
// Returning ErrSkip from fn leaves the session untouched.
func (s *Service) Mutate(ctx context.Context, userID string, fn func(*Session) error) (Session, error) {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		current, err := s.Get(ctx, userID)
		if err != nil {
			return Session{}, err
		}
		next := current.clone()
		if err := fn(&next); err != nil {
			if errors.Is(err, ErrSkip) {
				return current, nil
			}
			return current, err
		}
		if !next.State.Valid() {
			return current, fmt.Errorf("%w: %q", ErrInvalidState, next.State)
		}
		next.UserID = current.UserID
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = s.now()
		err = s.Repo.CompareAndSwap(ctx, next, current.Version)
		if err == nil {
			next.Version = current.Version + 1
			return next, nil
		}
		if !errors.Is(err, ErrConflict) {
			return current, err
		}
		lastErr = err
		telemetry.Warn("session.cas_conflict", map[string]any{"user_id": userID, "attempt": attempt + 1})
	}
	return Session{}, fmt.Errorf("session %s: %w", userID, lastErr)
}

// Update shallow-merges p into the session and bumps updatedAt.
func (s *Service) Update(ctx context.Context, userID string, p Patch) (Session, error) {
	return s.Mutate(ctx, userID, func(sess *Session) error {
		p.apply(sess)
		return nil
	})
}

// UpdateIfEpoch applies p only while the session is still in the given epoch.
// applied is false when a reset happened in between.
func (s *Service) UpdateIfEpoch(ctx context.Context, userID string, epoch int64, p Patch) (sess Session, applied bool, err error) {
	sess, err = s.Mutate(ctx, userID, func(cur *Session) error {
		if cur.Epoch != epoch {
			return ErrSkip
		}
		p.apply(cur)
		applied = true
		return nil
	})
	if err != nil {
		applied = false
	}
	return sess, applied, err
}

// Reset clears everything except termsAccepted and starts a new epoch so that
// in-flight work from before the reset can detect it.
func (s *Service) Reset(ctx context.Context, userID string) (Session, error) {
	return s.Mutate(ctx, userID, func(sess *Session) error {
		fresh := newSession(sess.UserID, sess.CreatedAt)
		fresh.TermsAccepted = sess.TermsAccepted
		fresh.Epoch = sess.Epoch + 1
		*sess = fresh
		return nil
	})
}

// AppendAnswer stores answer in slot index. A slot is written once; a second
// write for the same slot returns ErrAnswerExists.
func (s *Service) AppendAnswer(ctx context.Context, userID string, index int, answer InterviewAnswer, extra Patch) (Session, error) {
	return s.appendAnswer(ctx, userID, -1, index, answer, extra)
}

// AppendAnswerInEpoch is AppendAnswer for work that started before a
// possible reset. It returns ErrSkip when the epoch moved on.
func (s *Service) AppendAnswerInEpoch(ctx context.Context, userID string, epoch int64, index int, answer InterviewAnswer, extra Patch) (Session, error) {
	return s.appendAnswer(ctx, userID, epoch, index, answer, extra)
}

func (s *Service) appendAnswer(ctx context.Context, userID string, epoch int64, index int, answer InterviewAnswer, extra Patch) (Session, error) {
	if index < 0 {
		return Session{}, fmt.Errorf("answer index %d out of range", index)
	}
	stale := false
	sess, err := s.Mutate(ctx, userID, func(sess *Session) error {
		if epoch >= 0 && sess.Epoch != epoch {
			stale = true
			return ErrSkip
		}
		if sess.Answered(index) {
			return ErrAnswerExists
		}
		for len(sess.Answers) <= index {
			sess.Answers = append(sess.Answers, nil)
		}
		a := answer
		a.QuestionNumber = index
		sess.Answers[index] = &a
		extra.apply(sess)
		return nil
	})
	if err == nil && stale {
		return sess, ErrSkip
	}
	return sess, err
}

// AppendQuestion stores question at slot index, overwriting a previous
// attempt at the same index only.
func (s *Service) AppendQuestion(ctx context.Context, userID string, index int, question string, extra Patch) (Session, error) {
	if index < 0 {
		return Session{}, fmt.Errorf("question index %d out of range", index)
	}
	return s.Mutate(ctx, userID, func(sess *Session) error {
		for len(sess.Questions) <= index {
			sess.Questions = append(sess.Questions, "")
		}
		sess.Questions[index] = question
		extra.apply(sess)
		return nil
	})
}
