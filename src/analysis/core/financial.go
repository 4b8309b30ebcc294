package core

import "math"

// -----------------------------------------------------------------------------

// RoundCents rounds a dollar amount to currency precision.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// -----------------------------------------------------------------------------

// HoldingValue is the market value of a signed position.
func HoldingValue(quantity int64, currentPrice float64) float64 {
	return float64(quantity) * currentPrice
}

// -----------------------------------------------------------------------------

// HoldingPnL returns unrealized profit and loss in dollars and percent for a
// signed position. Percent is relative to the absolute cost basis; a zero
// quantity or zero cost basis yields zero PnL.
func HoldingPnL(quantity int64, avgCost, currentPrice float64) (dollars, percent float64) {
	if quantity == 0 || avgCost == 0 {
		return 0, 0
	}

	costBasis := float64(quantity) * avgCost
	dollars = HoldingValue(quantity, currentPrice) - costBasis

	denom := math.Abs(costBasis)
	if denom == 0 {
		return dollars, 0
	}
	percent = dollars / denom * 100
	return dollars, percent
}

// -----------------------------------------------------------------------------

// ChangePercent calculates percentage change, as a plain number (3.5 = 3.5%).
func ChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous * 100
}

// -----------------------------------------------------------------------------

// Ema folds one value into an exponential moving average with the given
// period. With no prior average the value itself seeds the series.
func Ema(prev float64, hasPrev bool, value float64, period int) float64 {
	if !hasPrev || period <= 1 {
		return value
	}
	alpha := 2.0 / (float64(period) + 1.0)
	return value*alpha + prev*(1-alpha)
}

// -----------------------------------------------------------------------------

// ReturnPercent is total PnL relative to the originally funded amount.
func ReturnPercent(totalPnL, initialInvestment float64) float64 {
	if initialInvestment == 0 {
		return 0
	}
	return totalPnL / initialInvestment * 100
}
