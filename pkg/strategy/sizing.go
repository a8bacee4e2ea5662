package strategy

import (
	"math"

	"github.com/gregtusar/carry/pkg/models"
)

// deltaNeutralTolerance is the maximum absolute notional gap, in currency
// units, between the two legs for the position to count as hedged.
const deltaNeutralTolerance = 1000

// Sizing describes the two legs of a delta-neutral position.
type Sizing struct {
	ETFShares        int
	ETFValue         float64
	FuturesContracts int
	FuturesUnits     float64 // underlying units across all contracts
	FuturesValue     float64
	TotalExposure    float64
	DeltaNeutral     bool
}

// CalculateSizing sizes both legs from the futures target. The futures leg
// comes first because contracts are indivisible; its rounded notional is
// the anchor the spot leg then approximates. Contracts never round below
// one, so a small target can size a larger position than requested; the
// hedge must not be empty.
func CalculateSizing(snap models.MarketSnapshot, cfg models.StrategyConfig) Sizing {
	target := cfg.FuturesTargetAmount()

	units := target / snap.SpotPrice
	contracts := int(math.Round(units / cfg.ContractSize))
	if contracts < 1 {
		contracts = 1
	}

	futuresValue := float64(contracts) * cfg.ContractSize * snap.SpotPrice

	var etfShares int
	spotValue := futuresValue
	if snap.ETFPrice > 0 {
		etfShares = int(futuresValue / snap.ETFPrice)
		spotValue = float64(etfShares) * snap.ETFPrice
	}

	return Sizing{
		ETFShares:        etfShares,
		ETFValue:         spotValue,
		FuturesContracts: contracts,
		FuturesUnits:     float64(contracts) * cfg.ContractSize,
		FuturesValue:     futuresValue,
		TotalExposure:    spotValue + futuresValue,
		DeltaNeutral:     math.Abs(spotValue-futuresValue) < deltaNeutralTolerance,
	}
}
