package services

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MembershipTier is the referrer's membership classification, owned by the
// membership service. Only read here.
type MembershipTier string

const (
	TierBasic      MembershipTier = "Basic"
	TierAmbassador MembershipTier = "Ambassador"
	TierVIP        MembershipTier = "VIP"
	TierBusiness   MembershipTier = "Business"
)

// DefaultTier applies when the membership service has no record for a user.
const DefaultTier = TierBasic

// MaxCommissionLevel bounds the referral chain walk.
const MaxCommissionLevel = 3

// commissionRates: tier → percentage per level (index 0 = level 1)
var commissionRates = map[MembershipTier][MaxCommissionLevel]decimal.Decimal{
	TierBasic:      {decimal.NewFromInt(10), decimal.NewFromInt(2), decimal.NewFromInt(1)},
	TierAmbassador: {decimal.NewFromInt(12), decimal.NewFromInt(3), decimal.NewFromInt(2)},
	TierVIP:        {decimal.NewFromInt(15), decimal.NewFromInt(5), decimal.NewFromInt(3)},
	TierBusiness:   {decimal.NewFromInt(20), decimal.NewFromInt(7), decimal.NewFromInt(5)},
}

// ParseMembershipTier maps a tier name onto a known tier, ignoring case. An
// empty name is DefaultTier; any other unknown name is kept as-is and earns no
// commission.
func ParseMembershipTier(s string) MembershipTier {
	name := strings.TrimSpace(s)
	switch strings.ToLower(name) {
	case "":
		return DefaultTier
	case "basic":
		return TierBasic
	case "ambassador":
		return TierAmbassador
	case "vip":
		return TierVIP
	case "business":
		return TierBusiness
	default:
		return MembershipTier(name)
	}
}

// CommissionRate returns the percentage paid to a referrer of the given tier at
// the given level. Undefined combinations return zero.
func CommissionRate(tier MembershipTier, level int) decimal.Decimal {
	rates, ok := commissionRates[tier]
	if !ok || level < 1 || level > MaxCommissionLevel {
		return decimal.Zero
	}
	return rates[level-1]
}

// CommissionAmount computes fee * rate / 100, rounded to cents (half away from zero).
func CommissionAmount(fee, rate decimal.Decimal) decimal.Decimal {
	return fee.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}
