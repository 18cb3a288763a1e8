package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountTier classifies a customer for pricing purposes.
type DiscountTier string

const (
	TierUnqualified DiscountTier = "UNQUALIFIED"
	TierBronze      DiscountTier = "BRONZE"
	TierSilver      DiscountTier = "SILVER"
	TierGold        DiscountTier = "GOLD"
	TierVIP         DiscountTier = "VIP"
)

var tierPercent = map[DiscountTier]int64{
	TierUnqualified: 0,
	TierBronze:      3,
	TierSilver:      5,
	TierGold:        10,
	TierVIP:         15,
}

var hundred = decimal.NewFromInt(100)

// TierFromRating maps a customer rating string to a tier.
// Unknown or empty ratings map to UNQUALIFIED.
func TierFromRating(rating string) DiscountTier {
	tier := DiscountTier(strings.ToUpper(strings.TrimSpace(rating)))
	if _, ok := tierPercent[tier]; !ok {
		return TierUnqualified
	}
	return tier
}

// Percent returns the discount percentage for the tier.
func (t DiscountTier) Percent() int64 {
	return tierPercent[t]
}

// Apply returns price reduced by the tier's discount, rounded to 2 places.
func (t DiscountTier) Apply(price decimal.Decimal) decimal.Decimal {
	pct := decimal.NewFromInt(t.Percent())
	return price.Mul(hundred.Sub(pct)).Div(hundred).Round(2)
}
