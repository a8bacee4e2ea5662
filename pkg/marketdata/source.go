// Package marketdata assembles MarketSnapshots from pluggable sources
// with ordered fallback. A source that cannot serve a pair reports
// ErrUnavailable; the monitor skips the tick rather than crashing.
package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/gregtusar/carry/pkg/models"
)

// ErrUnavailable signals that a source has no data for the pair right
// now. Chains treat it as "try the next one".
var ErrUnavailable = errors.New("market data unavailable")

// Source produces one snapshot per call.
type Source interface {
	Name() string
	Snapshot(ctx context.Context, pair models.PairConfig) (models.MarketSnapshot, error)
}

// NextQuarterlyExpiry returns the first quarterly futures expiry (last
// Friday of March, June, September, December) strictly after t.
func NextQuarterlyExpiry(t time.Time) time.Time {
	for m := 0; m < 15; m++ {
		candidate := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, m, 0)
		switch candidate.Month() {
		case time.March, time.June, time.September, time.December:
		default:
			continue
		}
		expiry := lastFriday(candidate.Year(), candidate.Month())
		if expiry.After(t) {
			return expiry
		}
	}
	// unreachable: a quarter-end month always exists within 15 months
	return t.AddDate(0, 3, 0)
}

func lastFriday(year int, month time.Month) time.Time {
	d := time.Date(year, month+1, 1, 16, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
