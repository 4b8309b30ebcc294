package models

import "time"

// MHolding is a user's aggregate position in one instrument. Quantity is
// signed: positive long, negative short. Valuation fields are derived from
// the live price at compose time, never stored.
type MHolding struct {
	HoldingID                  int64     `json:"HoldingID"`
	StockTicker                string    `json:"StockTicker"`
	Quantity                   int64     `json:"Quantity"`
	AverageCostPerShareDollars float64   `json:"AverageCostPerShareDollars"`
	TotalValueDollars          float64   `json:"TotalValueDollars"`
	PnLDollars                 float64   `json:"PnLDollars"`
	PnLPercent                 float64   `json:"PnLPercent"`
	UpdatedAt                  time.Time `json:"UpdatedAt"`

	UserID int64 `json:"-"`
}
