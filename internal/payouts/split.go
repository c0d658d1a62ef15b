package payouts

import "github.com/shopspring/decimal"

// DefaultPartnerSharePercent is the delivery partner's cut of a delivery fee.
const DefaultPartnerSharePercent = 88

var hundred = decimal.NewFromInt(100)

// PartnerShare returns the delivery partner's part of feeCents, rounded half
// up to whole cents. The platform keeps the remainder.
func PartnerShare(feeCents int64, percent int) int64 {
	if feeCents <= 0 || percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return feeCents
	}
	return decimal.NewFromInt(feeCents).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(hundred).
		Round(0).
		IntPart()
}

// PlatformShare is the complement of PartnerShare.
func PlatformShare(feeCents int64, percent int) int64 {
	if feeCents <= 0 {
		return 0
	}
	return feeCents - PartnerShare(feeCents, percent)
}
