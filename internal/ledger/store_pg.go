package ledger

import (
	"context"
	"database/sql"

	"cvbot-backend/internal/shared/storage/db"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed ledger store.
func NewPGStore(database *sql.DB) *pgStore {
	return &pgStore{DB: database}
}

const balanceQuery = `
SELECT COALESCE(SUM(CASE
    WHEN kind IN ('purchase', 'grant', 'refund') THEN amount
    WHEN kind = 'consume' THEN -amount
    ELSE 0 END), 0)
FROM credit_ledger
WHERE user_id = $1`

const freeClaimedQuery = `
SELECT COALESCE(SUM(CASE
    WHEN kind = 'free_claim' THEN amount
    WHEN kind = 'free_release' THEN -amount
    ELSE 0 END), 0)
FROM credit_ledger
WHERE user_id = $1`

const insertEntry = `
INSERT INTO credit_ledger (id, user_id, amount, kind, description, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

func (s *pgStore) Append(ctx context.Context, e Entry) error {
	_, err := s.DB.ExecContext(ctx, insertEntry, e.ID, e.UserID, e.Amount, string(e.Kind), e.Description, e.CreatedAt)
	return err
}

func (s *pgStore) Entries(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, amount, kind, description, created_at
FROM credit_ledger
WHERE user_id = $1
ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var kind string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &kind, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *pgStore) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	if err := s.DB.QueryRowContext(ctx, balanceQuery, userID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// lockAccount takes the user's account row lock so writers that check a
// derived total before appending serialize.
func lockAccount(ctx context.Context, tx *sql.Tx, userID string) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO credit_accounts (user_id) VALUES ($1)
ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return err
	}
	var locked string
	return tx.QueryRowContext(ctx, `
SELECT user_id FROM credit_accounts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&locked)
}

func touchAccount(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `
UPDATE credit_accounts SET updated_at = now() WHERE user_id = $1`, userID)
	return err
}

// Consume locks the user's account row so concurrent consumers serialize,
// then re-derives the balance before appending.
func (s *pgStore) Consume(ctx context.Context, e Entry) (int, error) {
	remaining := 0
	err := db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := lockAccount(ctx, tx, e.UserID); err != nil {
			return err
		}
		var balance int
		if err := tx.QueryRowContext(ctx, balanceQuery, e.UserID).Scan(&balance); err != nil {
			return err
		}
		if balance < e.Amount {
			remaining = balance
			return ErrInsufficientCredits
		}
		if _, err := tx.ExecContext(ctx, insertEntry, e.ID, e.UserID, e.Amount, string(e.Kind), e.Description, e.CreatedAt); err != nil {
			return err
		}
		if err := touchAccount(ctx, tx, e.UserID); err != nil {
			return err
		}
		remaining = balance - e.Amount
		return nil
	})
	return remaining, err
}

func (s *pgStore) FreeClaimed(ctx context.Context, userID string) (int, error) {
	var claimed int
	if err := s.DB.QueryRowContext(ctx, freeClaimedQuery, userID).Scan(&claimed); err != nil {
		return 0, err
	}
	return max(claimed, 0), nil
}

// ClaimFree appends the claim under the same account lock as Consume, so two
// documents racing for the last free analysis cannot both win.
func (s *pgStore) ClaimFree(ctx context.Context, e Entry, limit, done int) (bool, error) {
	claimed := false
	err := db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		claimed = false
		if err := lockAccount(ctx, tx, e.UserID); err != nil {
			return err
		}
		var held int
		if err := tx.QueryRowContext(ctx, freeClaimedQuery, e.UserID).Scan(&held); err != nil {
			return err
		}
		if max(held, done)+e.Amount > limit {
			return nil
		}
		if _, err := tx.ExecContext(ctx, insertEntry, e.ID, e.UserID, e.Amount, string(e.Kind), e.Description, e.CreatedAt); err != nil {
			return err
		}
		if err := touchAccount(ctx, tx, e.UserID); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	return claimed, err
}
