package models

// Signal is the strategy's verdict for one snapshot. The set is closed;
// new states require touching every switch over Signal.
type Signal string

const (
	SignalStrongEntry     Signal = "STRONG_ENTRY"
	SignalAcceptableEntry Signal = "ACCEPTABLE_ENTRY"
	SignalNoEntry         Signal = "NO_ENTRY"
	SignalPartialExit     Signal = "PARTIAL_EXIT"
	SignalFullExit        Signal = "FULL_EXIT"
	SignalStopLoss        Signal = "STOP_LOSS"
	SignalHold            Signal = "HOLD"
)

// IsEntry reports whether the signal calls for opening a position.
func (s Signal) IsEntry() bool {
	return s == SignalStrongEntry || s == SignalAcceptableEntry
}

// IsExit reports whether the signal calls for closing a position entirely.
func (s Signal) IsExit() bool {
	return s == SignalFullExit || s == SignalStopLoss
}

// TradeAction is the concrete step derived from a signal and the current
// position state.
type TradeAction string

const (
	ActionOpen   TradeAction = "OPEN"
	ActionClose  TradeAction = "CLOSE"
	ActionReduce TradeAction = "REDUCE"
	ActionNone   TradeAction = "NONE"
)
