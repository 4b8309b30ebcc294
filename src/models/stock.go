package models

import "time"

// MStock represents one tradable instrument with its live quote and the
// decayed sentiment aggregate.
type MStock struct {
	StockID               int64     `json:"StockID"`
	Ticker                string    `json:"Ticker"`
	Name                  string    `json:"Name"`
	OpeningPriceDollars   float64   `json:"OpeningPriceDollars"`
	CurrentPriceDollars   float64   `json:"CurrentPriceDollars"`
	ChangedPriceDollars   float64   `json:"ChangedPriceDollars"`
	ChangedPercent        float64   `json:"ChangedPercent"`
	OverallSentimentScore float64   `json:"OverallSentimentScore"`
	UpdatedAt             time.Time `json:"UpdatedAt"`
}

// -----------------------------------------------------------------------------

// MStockTick is one raw price observation pushed by a price source.
type MStockTick struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}
