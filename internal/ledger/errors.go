package ledger

import "errors"

// ErrInsufficientCredits is returned by UseCredit when the pool is empty.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrInvalidEntry is returned for entries with an unknown kind or bad amount.
var ErrInvalidEntry = errors.New("invalid ledger entry")
