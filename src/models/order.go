package models

import "time"

// Order sides and statuses.
const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"

	OrderStatusExecuted = "EXECUTED"
)

// -----------------------------------------------------------------------------

// MOrder is the immutable record of one executed trade. Orders are
// append-only: the audit trail the holdings are reconcilable against.
type MOrder struct {
	OrderID               int64     `json:"OrderID"`
	StockTicker           string    `json:"StockTicker"`
	Side                  string    `json:"Side"`
	Quantity              int64     `json:"Quantity"`
	PricePerShareDollars  float64   `json:"PricePerShareDollars"`
	TotalOrderValueDollars float64  `json:"TotalOrderValueDollars"`
	Status                string    `json:"Status"`
	Notes                 string    `json:"Notes,omitempty"`
	CreatedAt             time.Time `json:"CreatedAt"`

	UserID int64 `json:"-"`
}

// SignedQuantity returns the quantity signed by side (BUY positive, SELL
// negative).
func (o *MOrder) SignedQuantity() int64 {
	if o.Side == OrderSideSell {
		return -o.Quantity
	}
	return o.Quantity
}
