package models

import (
	"time"
)

// MarketSnapshot is a normalized view of one pair's market at a point in
// time, regardless of which source produced it. Optional fields (ETF price,
// NAV, sentiment, open interest) are zero when the source did not have them.
type MarketSnapshot struct {
	PairID        string
	SpotSymbol    string
	FuturesSymbol string

	SpotPrice     float64
	FuturesPrice  float64
	FuturesExpiry time.Time

	ETFPrice       float64
	ETFNAV         float64
	SentimentIndex float64 // fear & greed, 0..1
	OpenInterest   float64

	// AsOf is the reference date for expiry math. Zero means "now", which is
	// what live monitoring uses; backtests set it to the historical date.
	AsOf time.Time
}

// ReferenceTime returns AsOf, or the current time when AsOf is unset.
func (m MarketSnapshot) ReferenceTime() time.Time {
	if m.AsOf.IsZero() {
		return time.Now()
	}
	return m.AsOf
}

// BasisAbsolute is the futures premium in currency units.
func (m MarketSnapshot) BasisAbsolute() float64 {
	return m.FuturesPrice - m.SpotPrice
}

// BasisPercent is the basis as a fraction of spot.
func (m MarketSnapshot) BasisPercent() float64 {
	if m.SpotPrice <= 0 {
		return 0
	}
	return m.BasisAbsolute() / m.SpotPrice
}

// DaysToExpiry is the whole number of days until the futures contract
// expires, measured from the reference time. May be <= 0 near or past
// expiry; basis normalization treats that as a degenerate case.
func (m MarketSnapshot) DaysToExpiry() int {
	return int(m.FuturesExpiry.Sub(m.ReferenceTime()).Hours() / 24)
}

// MonthlyBasis normalizes the basis to a 30-day horizon so pairs with
// different expiries are comparable. Zero when at or past expiry.
func (m MarketSnapshot) MonthlyBasis() float64 {
	days := m.DaysToExpiry()
	if days <= 0 {
		return 0
	}
	return m.BasisPercent() * (30 / float64(days))
}

// AnnualizedBasis is the basis annualized over days to expiry.
func (m MarketSnapshot) AnnualizedBasis() float64 {
	days := m.DaysToExpiry()
	if days <= 0 {
		return 0
	}
	return m.BasisPercent() * (365 / float64(days))
}

// ETFDiscountPremium returns the ETF's discount (negative) or premium
// (positive) versus NAV. The second return is false when either input
// is missing.
func (m MarketSnapshot) ETFDiscountPremium() (float64, bool) {
	if m.ETFPrice <= 0 || m.ETFNAV <= 0 {
		return 0, false
	}
	return (m.ETFPrice - m.ETFNAV) / m.ETFNAV, true
}
