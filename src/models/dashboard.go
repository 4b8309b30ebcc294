package models

// -----------------------------------------------------------------------------
// Composed snapshots pushed to clients
// -----------------------------------------------------------------------------

// MDashboard is the full per-user snapshot: market, positions, watchlist and
// the portfolio aggregates recomputed from them.
type MDashboard struct {
	User                     MUser             `json:"User"`
	Stocks                   []MStock          `json:"Stocks"`
	Holdings                 []MHolding        `json:"Holdings"`
	StockWatchlist           []MStockWatchlist `json:"StockWatchlist"`
	TotalHoldingValueDollars float64           `json:"TotalHoldingValueDollars"`
	PortfolioValueDollars    float64           `json:"PortfolioValueDollars"`
	TotalPnLDollars          float64           `json:"TotalPnLDollars"`
	TotalReturnPercent       float64           `json:"TotalReturnPercent"`
}

// -----------------------------------------------------------------------------

// MMarketData is the per-stock snapshot for the market detail channel. News
// carries only articles the receiving connection has not seen yet.
type MMarketData struct {
	Stock MStock         `json:"Stock"`
	News  []MNewsArticle `json:"News"`
}

// -----------------------------------------------------------------------------

// MTickEvent is one refresh cycle's worth of state change, fanned out to
// every connected client by the streaming hub.
type MTickEvent struct {
	Stocks    []MStock       `json:"stocks,omitempty"`
	News      []MNewsArticle `json:"news,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// MAPIResponse is the uniform REST envelope. Business-rule rejections travel
// in ErrorMessage with Success false; they are not transport errors.
type MAPIResponse struct {
	Success      bool        `json:"Success"`
	Data         interface{} `json:"Data,omitempty"`
	ErrorMessage string      `json:"ErrorMessage,omitempty"`
}
