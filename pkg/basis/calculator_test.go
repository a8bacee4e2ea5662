package basis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var refDate = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func TestCalculate_BasisIdentities(t *testing.T) {
	m := Calculate(100000, 102000, refDate.AddDate(0, 0, 30), refDate)

	assert.Equal(t, 2000.0, m.Absolute)
	assert.InDelta(t, 0.02, m.Percent, 1e-12)
	assert.Equal(t, 30, m.DaysToExpiry)
	// 30-day expiry: monthly basis equals the raw basis percent.
	assert.InDelta(t, 0.02, m.Monthly, 1e-12)
	assert.InDelta(t, 0.02*365/30, m.Annualized, 1e-12)
}

func TestCalculate_SixtyDayExpiryHalvesMonthly(t *testing.T) {
	m := Calculate(50000, 51000, refDate.AddDate(0, 0, 60), refDate)
	assert.InDelta(t, 0.02*30/60, m.Monthly, 1e-12)
}

func TestCalculate_AtExpiry(t *testing.T) {
	m := Calculate(100000, 102000, refDate, refDate)
	assert.Equal(t, 0, m.DaysToExpiry)
	assert.Equal(t, 0.0, m.Monthly)
	assert.Equal(t, 0.0, m.Annualized)
	// Raw figures are still reported.
	assert.Equal(t, 2000.0, m.Absolute)
}

func TestCalculate_PastExpiry(t *testing.T) {
	m := Calculate(100000, 99000, refDate.AddDate(0, 0, -5), refDate)
	assert.Equal(t, 0.0, m.Monthly)
	assert.Equal(t, 0.0, m.Annualized)
}

func TestCalculate_ZeroSpot(t *testing.T) {
	m := Calculate(0, 1000, refDate.AddDate(0, 0, 30), refDate)
	assert.Equal(t, 0.0, m.Percent)
	assert.Equal(t, 0.0, m.Monthly)
}

func TestNetReturn(t *testing.T) {
	r := NetReturn(0.02, 30, 0.05, 1.0)
	assert.InDelta(t, 0.2433, r.GrossAnnualized, 0.0001)
	assert.InDelta(t, 0.1933, r.NetAnnualized, 0.0001)
	assert.InDelta(t, r.NetAnnualized, r.Leveraged, 1e-12)
}

func TestNetReturn_Leveraged(t *testing.T) {
	r := NetReturn(0.02, 30, 0.05, 2.0)
	assert.InDelta(t, r.NetAnnualized*2, r.Leveraged, 1e-12)
}

func TestNetReturn_AtExpiry(t *testing.T) {
	assert.Equal(t, Returns{}, NetReturn(0.02, 0, 0.05, 1.0))
	assert.Equal(t, Returns{}, NetReturn(0.02, -3, 0.05, 1.0))
}

func TestContangoBackwardation(t *testing.T) {
	assert.True(t, IsContango(100, 101))
	assert.False(t, IsContango(100, 99))
	assert.True(t, IsBackwardation(100, 99))
	assert.False(t, IsBackwardation(100, 101))
}
