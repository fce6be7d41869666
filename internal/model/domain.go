package model

import "time"

// LifetimeDuration is the duration key for a one-off lifetime lease.
const LifetimeDuration = "lifetime"

// CatchAllBucket is the pricing-table bucket covering labels of length 6-15.
const CatchAllBucket = "6-15"

// NameRule is a domain's label validation rule.
type NameRule struct {
	MinLength int      `json:"min_length" yaml:"min_length" validate:"min=1"`
	MaxLength int      `json:"max_length" yaml:"max_length" validate:"gtefield=MinLength"`
	Pattern   string   `json:"pattern" yaml:"pattern" validate:"required"`
	Reserved  []string `json:"reserved,omitempty" yaml:"reserved"`
}

// PricingTable maps a label-length bucket ("1".."5", "6-15") to the base
// price per duration key ("1".."5", "lifetime").
type PricingTable map[string]map[string]float64

// BackendFlags selects which storage networks a domain writes to.
type BackendFlags struct {
	IPFS    bool `json:"ipfs" yaml:"ipfs"`
	Arweave bool `json:"arweave" yaml:"arweave"`
	Archive bool `json:"archive" yaml:"archive"`
}

// UserLimits caps per-account activity within a domain.
type UserLimits struct {
	MaxTags           int `json:"max_tags" yaml:"max_tags"`
	MaxRenewalsPerDay int `json:"max_renewals_per_day" yaml:"max_renewals_per_day"`
	MaxTransferPerDay int `json:"max_transfers_per_day" yaml:"max_transfers_per_day"`
}

// DomainConfig is the full per-domain configuration. It is loaded by the
// registry and read-only everywhere else.
type DomainConfig struct {
	Name               string            `json:"name" yaml:"name" validate:"required,lowercase,alphanum"`
	Status             string            `json:"status" yaml:"status" validate:"required,oneof=active inactive suspended"`
	HoldSuffix         string            `json:"hold_suffix" yaml:"hold_suffix" validate:"required"`
	Validation         NameRule          `json:"validation" yaml:"validation"`
	Pricing            PricingTable      `json:"pricing" yaml:"pricing" validate:"required"`
	YearlyDiscountPct  float64           `json:"yearly_discount_pct" yaml:"yearly_discount_pct" validate:"gte=0,lte=100"`
	LifetimeDiscount   float64           `json:"lifetime_discount_pct" yaml:"lifetime_discount_pct" validate:"gte=0,lte=100"`
	RewardPricePerUnit float64           `json:"reward_price_per_unit" yaml:"reward_price_per_unit"`
	Referrals          map[string]string `json:"referrals,omitempty" yaml:"referrals"`
	PaymentMethods     []string          `json:"payment_methods" yaml:"payment_methods"`
	Backends           BackendFlags      `json:"backends" yaml:"backends"`
	Limits             UserLimits        `json:"limits" yaml:"limits"`
	UpdatedAt          time.Time         `json:"updated_at" yaml:"-"`
}

// Active reports whether the domain accepts new leases.
func (d *DomainConfig) Active() bool {
	return d.Status == DomainStatusActive
}

// HoldName returns the hold-shadow full name for a label, e.g.
// "alice" -> "alice.hold.avax".
func (d *DomainConfig) HoldName(label string) string {
	return label + d.HoldSuffix + "." + d.Name
}

// FullName returns the canonical full name for a label.
func (d *DomainConfig) FullName(label string) string {
	return label + "." + d.Name
}
