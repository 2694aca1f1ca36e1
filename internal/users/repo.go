package users

import "context"

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "user not found" }

type Repo interface {
	// Ensure creates the user if missing and returns the stored record.
	Ensure(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, userID string) (User, error)
	IncrementCVCount(ctx context.Context, userID string) (int, error)
	// RedeemPromo sets the promo code only if none is set yet and returns the
	// code that ends up stored.
	RedeemPromo(ctx context.Context, userID, code string) (stored string, err error)
}
