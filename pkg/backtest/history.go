package backtest

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// LoadCSV reads a historical series with columns
// date,spot_price,futures_price,futures_expiry (ISO dates). The header
// row is required; rows must be chronological.
func LoadCSV(path string) ([]PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read history file %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("history file %s has no data rows", path)
	}

	points := make([]PricePoint, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if len(row) < 4 {
			return nil, fmt.Errorf("history file %s line %d: want 4 columns, got %d", path, line, len(row))
		}

		date, err := time.Parse(dateLayout, row[0])
		if err != nil {
			return nil, fmt.Errorf("history file %s line %d: bad date %q: %w", path, line, row[0], err)
		}
		spot, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("history file %s line %d: bad spot price %q: %w", path, line, row[1], err)
		}
		futures, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("history file %s line %d: bad futures price %q: %w", path, line, row[2], err)
		}
		expiry, err := time.Parse(dateLayout, row[3])
		if err != nil {
			return nil, fmt.Errorf("history file %s line %d: bad expiry %q: %w", path, line, row[3], err)
		}

		points = append(points, PricePoint{
			Date:          date,
			SpotPrice:     spot,
			FuturesPrice:  futures,
			FuturesExpiry: expiry,
		})
	}
	return points, nil
}

// GenerateSample builds a deterministic synthetic daily series: a random
// walk spot with a contango futures curve whose monthly basis oscillates
// around 1.5%. Futures roll to the next quarterly expiry as each one
// approaches.
func GenerateSample(start time.Time, days int, seed int64) []PricePoint {
	rng := rand.New(rand.NewSource(seed))

	spot := 50_000.0
	expiry := start.AddDate(0, 3, 0)
	points := make([]PricePoint, 0, days)

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)

		if expiry.Sub(date) < 5*24*time.Hour {
			expiry = expiry.AddDate(0, 3, 0)
		}

		spot *= 1 + rng.NormFloat64()*0.02
		if spot < 1000 {
			spot = 1000
		}

		daysToExpiry := expiry.Sub(date).Hours() / 24
		monthly := 0.015 + rng.NormFloat64()*0.005
		basisPct := monthly * daysToExpiry / 30

		points = append(points, PricePoint{
			Date:          date,
			SpotPrice:     spot,
			FuturesPrice:  spot * (1 + basisPct),
			FuturesExpiry: expiry,
		})
	}
	return points
}

// WriteCSV persists a series in the same format LoadCSV reads.
func WriteCSV(path string, points []PricePoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create history file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "spot_price", "futures_price", "futures_expiry"}); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{
			p.Date.Format(dateLayout),
			strconv.FormatFloat(p.SpotPrice, 'f', 2, 64),
			strconv.FormatFloat(p.FuturesPrice, 'f', 2, 64),
			p.FuturesExpiry.Format(dateLayout),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
