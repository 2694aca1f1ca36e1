package users

import "time"

type User struct {
	ID                 string     `json:"id"`
	Transport          string     `json:"transport,omitempty"`
	DisplayName        string     `json:"displayName,omitempty"`
	TotalCVAnalyzed    int        `json:"totalCVAnalyzed"`
	HasUnlimitedAccess bool       `json:"hasUnlimitedAccess"`
	RedeemedPromoCode  string     `json:"redeemedPromoCode,omitempty"`
	PromoRedeemedAt    *time.Time `json:"promoRedeemedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}
