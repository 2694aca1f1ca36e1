package users

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Ensure(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (user_id, transport, display_name, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.DB.ExecContext(ctx, query, user.ID, user.Transport, user.DisplayName); err != nil {
		return User{}, err
	}
	return r.GetByID(ctx, user.ID)
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `
SELECT user_id, transport, display_name, total_cv_analyzed, has_unlimited_access,
       redeemed_promo_code, promo_redeemed_at, created_at, updated_at
FROM users
WHERE user_id = $1
LIMIT 1`
	var user User
	var promo sql.NullString
	var redeemedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.Transport,
		&user.DisplayName,
		&user.TotalCVAnalyzed,
		&user.HasUnlimitedAccess,
		&promo,
		&redeemedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if promo.Valid {
		user.RedeemedPromoCode = promo.String
	}
	if redeemedAt.Valid {
		t := redeemedAt.Time
		user.PromoRedeemedAt = &t
	}
	return user, nil
}

func (r *PGRepo) IncrementCVCount(ctx context.Context, userID string) (int, error) {
	const query = `
UPDATE users
SET total_cv_analyzed = total_cv_analyzed + 1, updated_at = now()
WHERE user_id = $1
RETURNING total_cv_analyzed`
	var total int
	if err := r.DB.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return total, nil
}

func (r *PGRepo) RedeemPromo(ctx context.Context, userID, code string) (string, error) {
	// COALESCE keeps the first code; the conditional update is the
	// first-write-wins guard.
	const query = `
UPDATE users
SET redeemed_promo_code = COALESCE(redeemed_promo_code, $2),
    has_unlimited_access = TRUE,
    promo_redeemed_at = COALESCE(promo_redeemed_at, now()),
    updated_at = now()
WHERE user_id = $1
RETURNING redeemed_promo_code`
	var stored string
	if err := r.DB.QueryRowContext(ctx, query, userID, code).Scan(&stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return stored, nil
}
