// Package pricing computes the quote for a (label, duration, referral)
// tuple against a domain's pricing table. It is pure: same inputs, same
// quote.
package pricing

import (
	"math"
	"strconv"
	"strings"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

// DefaultReferralDiscountPct applies when a referral is supplied but not on
// the domain's whitelist. Deliberate business rule, not a fallback.
const DefaultReferralDiscountPct = 10.0

const minLabelLength = 1
const maxLabelLength = 15

// Price computes the quote for leasing label under cfg for the given
// duration ("1".."5" or "lifetime"). referral may be empty.
func Price(cfg *model.DomainConfig, label, duration, referral string) (model.PriceQuote, error) {
	length := len(label)
	if length < minLabelLength || length > maxLabelLength {
		return model.PriceQuote{}, zelferr.ErrInvalidNameLength
	}

	bucket, ok := cfg.Pricing[strconv.Itoa(length)]
	if !ok && length >= 6 {
		bucket, ok = cfg.Pricing[model.CatchAllBucket]
	}
	if !ok {
		return model.PriceQuote{}, zelferr.ErrInvalidNameLength
	}

	if !validDuration(duration) {
		return model.PriceQuote{}, zelferr.ErrInvalidDuration
	}
	base, ok := bucket[duration]
	if !ok {
		// A valid duration missing from the table must fail, never price
		// at zero.
		return model.PriceQuote{}, zelferr.ErrInvalidDuration
	}

	price := base
	switch {
	case duration == model.LifetimeDuration:
		price = base * (1 - cfg.LifetimeDiscount/100)
	case duration != "1":
		price = base * (1 - cfg.YearlyDiscountPct/100)
	}

	quote := model.PriceQuote{
		PriceWithoutDiscount: base,
		Duration:             duration,
		Length:               length,
	}

	if referral != "" {
		quote.Discount, quote.DiscountType = referralDiscount(cfg, referral)
		if quote.DiscountType == model.DiscountTypePercentage {
			price = price * (1 - quote.Discount/100)
		} else {
			price = price - quote.Discount
		}
	}

	quote.Price = ceil2(math.Max(price, 0))

	if cfg.RewardPricePerUnit > 0 {
		quote.Reward = ceil2(math.Max(quote.Price/cfg.RewardPricePerUnit, 0))
	}

	return quote, nil
}

// referralDiscount resolves the two-tier rule: a whitelist entry wins
// (percentage when suffixed "%", absolute otherwise), anything else gets
// the flat default percentage.
func referralDiscount(cfg *model.DomainConfig, referral string) (float64, string) {
	raw, ok := cfg.Referrals[referral]
	if !ok {
		return DefaultReferralDiscountPct, model.DiscountTypePercentage
	}

	if strings.HasSuffix(raw, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil {
			return DefaultReferralDiscountPct, model.DiscountTypePercentage
		}
		return pct, model.DiscountTypePercentage
	}

	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return DefaultReferralDiscountPct, model.DiscountTypePercentage
	}
	return amount, model.DiscountTypeAmount
}

func validDuration(duration string) bool {
	switch duration {
	case "1", "2", "3", "4", "5", model.LifetimeDuration:
		return true
	}
	return false
}

// ceil2 rounds up to 2 decimal places. Ceiling rather than nearest so the
// registry never undercharges by a fraction of a cent.
func ceil2(x float64) float64 {
	return math.Ceil(x*100) / 100
}
