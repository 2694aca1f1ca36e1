package ledger

import "time"

// Kind classifies a ledger entry.
type Kind string

const (
	// KindPurchase grants credits bought through a verified payment.
	KindPurchase Kind = "purchase"
	// KindGrant grants credits manually (admin, support).
	KindGrant Kind = "grant"
	// KindConsume records one paid analysis drawing from the pool.
	KindConsume Kind = "consume"
	// KindPayment is an audit row for money received; it grants nothing.
	KindPayment Kind = "payment"
	// KindAdvisoryPurchase is an audit row for an advisory session purchase.
	KindAdvisoryPurchase Kind = "advisory_purchase"
	// KindRefund returns a consumed credit whose analysis was not delivered.
	KindRefund Kind = "refund"
	// KindFreeClaim reserves one of the user's free analyses.
	KindFreeClaim Kind = "free_claim"
	// KindFreeRelease gives back a free claim.
	KindFreeRelease Kind = "free_release"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPurchase, KindGrant, KindConsume, KindPayment, KindAdvisoryPurchase,
		KindRefund, KindFreeClaim, KindFreeRelease:
		return true
	}
	return false
}

// Entry is an append-only ledger row. Balances are derived from entries.
type Entry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Amount      int       `json:"amount"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"timestamp"`
}

// creditDelta is the entry's effect on the purchased-credit pool.
func (e Entry) creditDelta() int {
	switch e.Kind {
	case KindPurchase, KindGrant, KindRefund:
		return e.Amount
	case KindConsume:
		return -e.Amount
	default:
		return 0
	}
}

func (e Entry) freeDelta() int {
	switch e.Kind {
	case KindFreeClaim:
		return e.Amount
	case KindFreeRelease:
		return -e.Amount
	default:
		return 0
	}
}

// Balance derives remaining purchased credits from entries.
func Balance(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += e.creditDelta()
	}
	return total
}

// FreeClaimed derives the free analyses held by claims, delivered or still
// running.
func FreeClaimed(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += e.freeDelta()
	}
	return max(total, 0)
}

// Source says what pays for the next analysis.
type Source string

const (
	SourceFree      Source = "free"
	SourceUnlimited Source = "unlimited"
	SourceCredit    Source = "credit"
	// SourceNone means the user must buy credits first.
	SourceNone Source = "none"
)

// Entitlement is the outcome of checking a user's next analysis.
type Entitlement struct {
	Source           Source `json:"source"`
	AnalysesDone     int    `json:"analysesDone"`
	RemainingCredits int    `json:"remainingCredits"`
}

// Reservation is what was set aside to pay for one analysis.
type Reservation struct {
	Source  Source `json:"source"`
	EntryID string `json:"entryId,omitempty"`
}
