package analysis

import (
	"trade-sim/src/analysis/core"
	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------
// Portfolio valuation
//
// Aggregates are always derived here, from {cash, holdings, live prices};
// they are never read back from storage. Every snapshot composition goes
// through these functions so the figures cannot drift.
// -----------------------------------------------------------------------------

// PriceLookup resolves a ticker to its current price. The second return is
// false for unknown instruments.
type PriceLookup func(ticker string) (float64, bool)

// -----------------------------------------------------------------------------

// MPortfolioTotals carries the portfolio-level aggregates of one user.
type MPortfolioTotals struct {
	TotalHoldingValueDollars float64
	PortfolioValueDollars    float64
	TotalPnLDollars          float64
	TotalReturnPercent       float64
}

// -----------------------------------------------------------------------------

// ValueHoldings fills the derived fields of each holding from live prices.
// A ticker with no quote keeps its last-known valuation inputs (stale beats
// missing); in practice that only happens when a source is stopped.
func ValueHoldings(holdings []models.MHolding, priceOf PriceLookup) []models.MHolding {
	out := make([]models.MHolding, 0, len(holdings))
	for _, h := range holdings {
		price, ok := priceOf(h.StockTicker)
		if !ok {
			price = h.AverageCostPerShareDollars
		}
		h.TotalValueDollars = core.RoundCents(core.HoldingValue(h.Quantity, price))
		pnl, pct := core.HoldingPnL(h.Quantity, h.AverageCostPerShareDollars, price)
		h.PnLDollars = core.RoundCents(pnl)
		h.PnLPercent = pct
		out = append(out, h)
	}
	return out
}

// -----------------------------------------------------------------------------

// PortfolioTotals folds valued holdings and cash into the dashboard
// aggregates. Holdings must already be valued by ValueHoldings.
func PortfolioTotals(cash, initialInvestment float64, holdings []models.MHolding) MPortfolioTotals {
	var totals MPortfolioTotals
	for _, h := range holdings {
		totals.TotalHoldingValueDollars += h.TotalValueDollars
		totals.TotalPnLDollars += h.PnLDollars
	}
	totals.TotalHoldingValueDollars = core.RoundCents(totals.TotalHoldingValueDollars)
	totals.TotalPnLDollars = core.RoundCents(totals.TotalPnLDollars)
	totals.PortfolioValueDollars = core.RoundCents(cash + totals.TotalHoldingValueDollars)
	totals.TotalReturnPercent = core.ReturnPercent(totals.TotalPnLDollars, initialInvestment)
	return totals
}
