package datasource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------

func newTestMarket(historySize int) *MarketState {
	return NewMarketState([]models.MStock{
		{StockID: 1, Ticker: "AAPL", Name: "Apple Inc.", OpeningPriceDollars: 100, CurrentPriceDollars: 100},
		{StockID: 2, Ticker: "MSFT", Name: "Microsoft Corp.", OpeningPriceDollars: 200, CurrentPriceDollars: 200},
	}, historySize)
}

func tick(ticker string, price float64) models.MStockTick {
	return models.MStockTick{Ticker: ticker, Price: price, Timestamp: time.Now().Unix()}
}

// -----------------------------------------------------------------------------

func TestApplyTicksUpdatesQuotes(t *testing.T) {
	ms := newTestMarket(16)

	updated := ms.ApplyTicks([]models.MStockTick{
		tick("AAPL", 110),
		tick("NOPE", 5), // unknown tickers are dropped
	})
	require.Len(t, updated, 1)
	assert.Equal(t, 110.0, updated[0].CurrentPriceDollars)
	assert.Equal(t, 10.0, updated[0].ChangedPriceDollars)
	assert.InDelta(t, 10.0, updated[0].ChangedPercent, 1e-9)

	price, ok := ms.Price("AAPL")
	require.True(t, ok)
	assert.Equal(t, 110.0, price)

	// Untouched instrument keeps its seed quote.
	price, ok = ms.Price("MSFT")
	require.True(t, ok)
	assert.Equal(t, 200.0, price)

	_, ok = ms.Price("NOPE")
	assert.False(t, ok)
}

// -----------------------------------------------------------------------------

func TestApplySentimentSeedsAndDecays(t *testing.T) {
	ms := newTestMarket(16)

	// First article seeds the series.
	score, ok := ms.ApplySentiment("AAPL", 0.8)
	require.True(t, ok)
	assert.Equal(t, 0.8, score)

	// Second folds with alpha 2/15.
	score, ok = ms.ApplySentiment("AAPL", -0.4)
	require.True(t, ok)
	want := -0.4*(2.0/15.0) + 0.8*(13.0/15.0)
	assert.InDelta(t, want, score, 1e-12)

	_, ok = ms.ApplySentiment("NOPE", 0.5)
	assert.False(t, ok)
}

// -----------------------------------------------------------------------------

func TestHistoryRingRetainsNewest(t *testing.T) {
	ms := newTestMarket(4)

	for i := 1; i <= 6; i++ {
		ms.ApplyTicks([]models.MStockTick{tick("AAPL", float64(100 + i))})
	}

	// Capacity 4: only the 4 newest survive, oldest first.
	hist := ms.History("AAPL", 10)
	require.Len(t, hist, 4)
	assert.Equal(t, 103.0, hist[0].Price)
	assert.Equal(t, 106.0, hist[3].Price)

	hist = ms.History("AAPL", 2)
	require.Len(t, hist, 2)
	assert.Equal(t, 105.0, hist[0].Price)
	assert.Equal(t, 106.0, hist[1].Price)

	assert.Nil(t, ms.History("NOPE", 5))
}

// -----------------------------------------------------------------------------

func TestListAndLookups(t *testing.T) {
	ms := newTestMarket(16)

	list := ms.List()
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].StockID)
	assert.Equal(t, int64(2), list[1].StockID)

	s, ok := ms.StockByID(2)
	require.True(t, ok)
	assert.Equal(t, "MSFT", s.Ticker)

	s, ok = ms.StockByTicker("AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(1), s.StockID)

	assert.Equal(t, []string{"AAPL", "MSFT"}, ms.Tickers())
}
