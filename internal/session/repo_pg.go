package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Get(ctx context.Context, userID string) (Session, error) {
	const query = `
SELECT version, data, created_at, updated_at
FROM sessions
WHERE user_id = $1`
	var (
		version int64
		data    []byte
		s       Session
	)
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(&version, &data, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	createdAt, updatedAt := s.CreatedAt, s.UpdatedAt
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", userID, err)
	}
	s.UserID = userID
	s.Version = version
	s.CreatedAt, s.UpdatedAt = createdAt, updatedAt
	if s.Questions == nil {
		s.Questions = []string{}
	}
	if s.Answers == nil {
		s.Answers = []*InterviewAnswer{}
	}
	return s, nil
}

func (r *PGRepo) Create(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	const query = `
INSERT INTO sessions (user_id, version, data, created_at, updated_at)
VALUES ($1, 1, $2, $3, $4)
ON CONFLICT (user_id) DO NOTHING`
	res, err := r.DB.ExecContext(ctx, query, s.UserID, data, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrConflict
	}
	return nil
}

func (r *PGRepo) CompareAndSwap(ctx context.Context, s Session, expectedVersion int64) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	const query = `
UPDATE sessions
SET data = $2, version = version + 1, updated_at = $3
WHERE user_id = $1 AND version = $4`
	res, err := r.DB.ExecContext(ctx, query, s.UserID, data, s.UpdatedAt, expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
