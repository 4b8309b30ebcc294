package models

import "time"

// MStockWatchlist is one target-price subscription for a (user, stock) pair.
// Diff fields are recomputed against the live price on every evaluation.
type MStockWatchlist struct {
	StockId            int64   `json:"StockId"`
	StockTicker        string  `json:"StockTicker"`
	StockName          string  `json:"StockName"`
	TargetPriceDollars float64 `json:"TargetPriceDollars"`
	DiffPriceDollars   float64 `json:"DiffPriceDollars"`
	DiffPercent        float64 `json:"DiffPercent"`
	Active             bool    `json:"Active"`

	UserID    int64     `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// -----------------------------------------------------------------------------

// MWatchlistAlert records a one-time target-price hit.
type MWatchlistAlert struct {
	UserID             int64     `json:"userId"`
	StockId            int64     `json:"stockId"`
	StockTicker        string    `json:"stockTicker"`
	TargetPriceDollars float64   `json:"targetPriceDollars"`
	PriceDollars       float64   `json:"priceDollars"`
	TriggeredAt        time.Time `json:"triggeredAt"`
}
