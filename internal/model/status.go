package model

// Domain lifecycle status constants.
const (
	DomainStatusActive    = "active"
	DomainStatusInactive  = "inactive"
	DomainStatusSuspended = "suspended"
)

// Tag record status constants.
const (
	TagStatusHold    = "hold"
	TagStatusMainnet = "mainnet"
)

// Tag origin constants.
const (
	OriginOnline  = "online"
	OriginOffline = "offline"
)

// Discount type constants for a PriceQuote.
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeAmount     = "amount"
)
