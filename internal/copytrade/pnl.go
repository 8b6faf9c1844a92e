package copytrade

import "github.com/shopspring/decimal"

// PnL is an unrealized profit and loss figure
type PnL struct {
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// CalculatePnL compares a position's current value with its cost basis of
// entryPrice × amount. A zero cost basis yields a zero percentage.
func CalculatePnL(currentValue, entryPrice, amount float64) PnL {
	cost := decimal.NewFromFloat(entryPrice).Mul(decimal.NewFromFloat(amount))
	value := decimal.NewFromFloat(currentValue).Sub(cost)

	pnl := PnL{Value: value.InexactFloat64()}
	if !cost.IsZero() {
		pnl.Percentage = value.Div(cost).Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64()
	}
	return pnl
}
