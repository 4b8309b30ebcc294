package datasource

import (
	"sort"
	"sync"
	"time"

	"trade-sim/src/analysis/core"
	"trade-sim/src/models"
	"trade-sim/src/utils"
)

// -----------------------------------------------------------------------------
// MarketState is the single in-memory quote board. Price sources push raw
// ticks into it, everything else (engine, watchlist, gateway) reads from it.
// Writes take the write lock once per batch; reads are lock-striped only by
// the RWMutex, so snapshot composition never blocks a concurrent trade.
// -----------------------------------------------------------------------------

const sentimentEmaPeriod = 14

type MarketState struct {
	mu sync.RWMutex

	stocks  map[string]*models.MStock // keyed by ticker
	byID    map[int64]string          // StockID -> ticker
	buffers map[string]*utils.TickBuffer
	scored  map[string]bool // tickers with a seeded sentiment series

	historySize int
}

// -----------------------------------------------------------------------------

func NewMarketState(stocks []models.MStock, historySize int) *MarketState {
	ms := &MarketState{
		stocks:      make(map[string]*models.MStock),
		byID:        make(map[int64]string),
		buffers:     make(map[string]*utils.TickBuffer),
		scored:      make(map[string]bool),
		historySize: historySize,
	}

	for i := range stocks {
		s := stocks[i]
		ms.stocks[s.Ticker] = &s
		ms.byID[s.StockID] = s.Ticker
		ms.buffers[s.Ticker] = utils.NewTickBuffer(historySize)
		if s.OverallSentimentScore != 0 {
			ms.scored[s.Ticker] = true
		}
	}
	return ms
}

// -----------------------------------------------------------------------------

// ApplyTicks folds one batch of raw ticks into the board and returns the
// updated stock rows. Ticks for unknown tickers are dropped.
func (ms *MarketState) ApplyTicks(ticks []models.MStockTick) []models.MStock {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	updated := make([]models.MStock, 0, len(ticks))
	for _, tick := range ticks {
		s, ok := ms.stocks[tick.Ticker]
		if !ok {
			continue
		}

		s.CurrentPriceDollars = core.RoundCents(tick.Price)
		s.ChangedPriceDollars = core.RoundCents(s.CurrentPriceDollars - s.OpeningPriceDollars)
		s.ChangedPercent = core.ChangePercent(s.CurrentPriceDollars, s.OpeningPriceDollars)
		s.UpdatedAt = time.Unix(tick.Timestamp, 0).UTC()

		ms.buffers[tick.Ticker].Append(tick)
		updated = append(updated, *s)
	}
	return updated
}

// -----------------------------------------------------------------------------

// ApplySentiment folds one article score into the instrument's decayed
// aggregate and returns the new overall score.
func (ms *MarketState) ApplySentiment(ticker string, articleScore float64) (float64, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s, ok := ms.stocks[ticker]
	if !ok {
		return 0, false
	}

	s.OverallSentimentScore = core.Ema(
		s.OverallSentimentScore, ms.scored[ticker], articleScore, sentimentEmaPeriod)
	ms.scored[ticker] = true
	return s.OverallSentimentScore, true
}

// -----------------------------------------------------------------------------

// Price returns the live price for a ticker.
func (ms *MarketState) Price(ticker string) (float64, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	s, ok := ms.stocks[ticker]
	if !ok {
		return 0, false
	}
	return s.CurrentPriceDollars, true
}

// -----------------------------------------------------------------------------

// StockByTicker returns a copy of the stock row.
func (ms *MarketState) StockByTicker(ticker string) (models.MStock, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	s, ok := ms.stocks[ticker]
	if !ok {
		return models.MStock{}, false
	}
	return *s, true
}

// StockByID returns a copy of the stock row by its ID.
func (ms *MarketState) StockByID(stockID int64) (models.MStock, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	ticker, ok := ms.byID[stockID]
	if !ok {
		return models.MStock{}, false
	}
	return *ms.stocks[ticker], true
}

// -----------------------------------------------------------------------------

// List returns every stock, ordered by StockID for stable client rendering.
func (ms *MarketState) List() []models.MStock {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]models.MStock, 0, len(ms.stocks))
	for _, s := range ms.stocks {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockID < out[j].StockID })
	return out
}

// -----------------------------------------------------------------------------

// History returns up to n recent ticks for a ticker, oldest first.
func (ms *MarketState) History(ticker string, n int) []models.MStockTick {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	buf, ok := ms.buffers[ticker]
	if !ok {
		return nil
	}
	return buf.Latest(n)
}

// -----------------------------------------------------------------------------

// Tickers returns every known ticker.
func (ms *MarketState) Tickers() []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]string, 0, len(ms.stocks))
	for t := range ms.stocks {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
