package models

// Position is the durable record of the currently open two-leg trade.
// JSON field names are the on-disk position-state contract.
type Position struct {
	ETFShares         int     `json:"etf_shares"`
	ETFSymbol         string  `json:"etf_symbol"`
	ETFEntryPrice     float64 `json:"etf_entry_price"`
	FuturesContracts  int     `json:"futures_contracts"`
	FuturesSymbol     string  `json:"futures_symbol"`
	FuturesEntryPrice float64 `json:"futures_entry_price"`
	FuturesExpiry     string  `json:"futures_expiry,omitempty"`
	OpenedAt          string  `json:"opened_at,omitempty"`
}

// IsOpen reports whether any leg is open.
func (p Position) IsOpen() bool {
	return p.ETFShares > 0 || p.FuturesContracts > 0
}

// IsBalanced reports whether both legs are open.
func (p Position) IsBalanced() bool {
	return p.ETFShares > 0 && p.FuturesContracts > 0
}
