// Package basis holds the pure arithmetic for spot/futures basis and
// carry returns. Everything here is a total function of its inputs so the
// live monitor and the backtester share identical numbers.
package basis

import (
	"time"
)

// Metrics are the derived basis figures for one spot/futures observation.
type Metrics struct {
	Absolute     float64
	Percent      float64
	Monthly      float64
	Annualized   float64
	DaysToExpiry int
}

// Calculate derives all basis metrics from raw prices and the contract
// expiry, relative to asOf. At or past expiry the normalized figures are
// zero rather than a division blowup.
func Calculate(spotPrice, futuresPrice float64, expiry, asOf time.Time) Metrics {
	m := Metrics{
		Absolute:     futuresPrice - spotPrice,
		DaysToExpiry: int(expiry.Sub(asOf).Hours() / 24),
	}
	if spotPrice > 0 {
		m.Percent = m.Absolute / spotPrice
	}
	if m.DaysToExpiry > 0 {
		m.Monthly = m.Percent * (30 / float64(m.DaysToExpiry))
		m.Annualized = m.Percent * (365 / float64(m.DaysToExpiry))
	}
	return m
}

// Returns are the carry returns net of funding.
type Returns struct {
	GrossAnnualized float64
	NetAnnualized   float64
	Leveraged       float64
}

// NetReturn annualizes the basis over the remaining days, subtracts the
// annual funding cost, and applies leverage. All zero when the contract is
// at or past expiry.
func NetReturn(basisPercent float64, daysToExpiry int, fundingCostAnnual, leverage float64) Returns {
	if daysToExpiry <= 0 {
		return Returns{}
	}
	gross := basisPercent * (365 / float64(daysToExpiry))
	net := gross - fundingCostAnnual
	return Returns{
		GrossAnnualized: gross,
		NetAnnualized:   net,
		Leveraged:       net * leverage,
	}
}

// IsContango reports whether futures trade above spot.
func IsContango(spotPrice, futuresPrice float64) bool {
	return futuresPrice > spotPrice
}

// IsBackwardation reports whether futures trade below spot.
func IsBackwardation(spotPrice, futuresPrice float64) bool {
	return futuresPrice < spotPrice
}
