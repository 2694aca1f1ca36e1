package payments

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnknownPromoCode = errors.New("unknown promo code")
	ErrEmptyPromoCode   = errors.New("promo code is required")
)

// PromoRedeemer stores a user's single promo redemption.
type PromoRedeemer interface {
	RedeemPromo(ctx context.Context, userID, code string) error
}

// Promos validates codes against the catalog before redeeming them.
type Promos struct {
	Catalog Catalog
	Users   PromoRedeemer
}

// Redeem grants unlimited access for a known code. The stored code is the
// catalog spelling so repeated redemptions compare equal.
func (p *Promos) Redeem(ctx context.Context, userID, code string) (PromoCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return PromoCode{}, ErrEmptyPromoCode
	}
	promo, ok := p.Catalog.Promo(code)
	if !ok {
		return PromoCode{}, ErrUnknownPromoCode
	}
	if err := p.Users.RedeemPromo(ctx, userID, promo.Code); err != nil {
		return PromoCode{}, err
	}
	return promo, nil
}
