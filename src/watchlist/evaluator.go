package watchlist

import (
	"math"
	"sort"
	"sync"
	"time"

	"trade-sim/src/analysis/core"
	datasource "trade-sim/src/data_source"
	"trade-sim/src/helpers"
	"trade-sim/src/interfaces"
	"trade-sim/src/logger"
	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------
// Evaluator tracks every user's target-price subscriptions and fires each
// one exactly once per crossing. An entry is armed while the price sits away
// from the target; the tick that reaches or crosses it fires the alert and
// disarms the entry. It re-arms only after the price has moved back out of
// a small band around the target, so quote jitter at the target line cannot
// emit a second alert.
// -----------------------------------------------------------------------------

// Price within this fraction of the target keeps a fired entry disarmed.
const rearmBandFraction = 0.0005

type entry struct {
	models.MStockWatchlist
	armed bool
	// above records which side of the target the price was on when the
	// entry armed, so a fire requires an actual crossing or touch.
	above bool
	seen  bool
	// lastPrice is the most recent usable quote, kept so a stale lookup
	// never decorates the row as if the target were hit.
	lastPrice float64
}

type Evaluator struct {
	mu sync.Mutex

	// keyed by userID, then StockId
	entries map[int64]map[int64]*entry

	Market *datasource.MarketState
	DB     interfaces.IDatabase
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewEvaluator(market *datasource.MarketState, db interfaces.IDatabase, l *logger.Logger) *Evaluator {
	return &Evaluator{
		entries: make(map[int64]map[int64]*entry),
		Market:  market,
		DB:      db,
		Logger:  l,
	}
}

// -----------------------------------------------------------------------------

// LoadFromStorage warms the evaluator from persisted watchlist rows. All
// loaded entries start armed against the current price.
func (ev *Evaluator) LoadFromStorage() error {
	rows, err := ev.DB.ListAllWatchlists()
	if err != nil {
		return err
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()

	for _, row := range rows {
		price, _ := ev.Market.Price(row.StockTicker)
		ev.insertLocked(row, price)
	}

	ev.Logger.Info("Watchlist: Loaded %d entries.", len(rows))
	return nil
}

func (ev *Evaluator) insertLocked(row models.MStockWatchlist, price float64) {
	byStock, ok := ev.entries[row.UserID]
	if !ok {
		byStock = make(map[int64]*entry)
		ev.entries[row.UserID] = byStock
	}
	byStock[row.StockId] = &entry{
		MStockWatchlist: row,
		armed:           true,
		above:           price > row.TargetPriceDollars,
		seen:            price > 0,
		lastPrice:       price,
	}
}

// -----------------------------------------------------------------------------

// Add creates or replaces the (user, stock) subscription. The target must be
// positive and the stock must exist.
func (ev *Evaluator) Add(userID, stockID int64, targetPrice float64) (models.MStockWatchlist, error) {
	if targetPrice <= 0 {
		return models.MStockWatchlist{}, helpers.NewValidationError("target price must be positive, got %.2f", targetPrice)
	}

	stock, ok := ev.Market.StockByID(stockID)
	if !ok {
		return models.MStockWatchlist{}, helpers.NewNotFound("stock %d not found", stockID)
	}

	row := models.MStockWatchlist{
		UserID:             userID,
		StockId:            stockID,
		StockTicker:        stock.Ticker,
		StockName:          stock.Name,
		TargetPriceDollars: core.RoundCents(targetPrice),
		Active:             true,
		CreatedAt:          time.Now().UTC(),
	}

	if err := ev.DB.SaveWatchlistEntry(row); err != nil {
		return models.MStockWatchlist{}, helpers.NewDatabaseError("watchlist entry could not be saved", err)
	}

	ev.mu.Lock()
	ev.insertLocked(row, stock.CurrentPriceDollars)
	ev.mu.Unlock()

	return ev.decorate(row, stock.CurrentPriceDollars), nil
}

// -----------------------------------------------------------------------------

// Remove deletes the (user, stock) subscription. Storage commits first so a
// failed delete leaves the entry intact in memory and on disk.
func (ev *Evaluator) Remove(userID, stockID int64) error {
	ev.mu.Lock()
	_, ok := ev.entries[userID][stockID]
	ev.mu.Unlock()

	if !ok {
		return helpers.NewNotFound("no watchlist entry for stock %d", stockID)
	}

	if err := ev.DB.DeleteWatchlistEntry(userID, stockID); err != nil {
		return helpers.NewDatabaseError("watchlist entry could not be deleted", err)
	}

	ev.mu.Lock()
	delete(ev.entries[userID], stockID)
	ev.mu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------

// EvaluateUser recomputes the user's entries against live prices and
// returns them with alerts for entries that fired on this pass. Fired
// entries report a zero diff so the client renders the hit.
func (ev *Evaluator) EvaluateUser(userID int64) ([]models.MStockWatchlist, []models.MWatchlistAlert) {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	byStock := ev.entries[userID]
	out := make([]models.MStockWatchlist, 0, len(byStock))
	var alerts []models.MWatchlistAlert

	for _, en := range byStock {
		price, ok := ev.Market.Price(en.StockTicker)
		if !ok || price <= 0 {
			// No usable quote: report the last-known diff, or drop the
			// row entirely rather than fake a zero diff.
			if en.lastPrice > 0 {
				out = append(out, ev.decorate(en.MStockWatchlist, en.lastPrice))
			}
			continue
		}
		en.lastPrice = price

		fired := ev.step(en, price)
		row := ev.decorate(en.MStockWatchlist, price)
		if fired {
			row.DiffPriceDollars = 0
			row.DiffPercent = 0
			alerts = append(alerts, models.MWatchlistAlert{
				UserID:             en.UserID,
				StockId:            en.StockId,
				StockTicker:        en.StockTicker,
				TargetPriceDollars: en.TargetPriceDollars,
				PriceDollars:       price,
				TriggeredAt:        time.Now().UTC(),
			})
		}
		out = append(out, row)
	}

	sortEntries(out)
	return out, alerts
}

// step advances one entry's state machine and reports whether it fired.
func (ev *Evaluator) step(en *entry, price float64) bool {
	above := price > en.TargetPriceDollars
	touched := price == en.TargetPriceDollars

	if !en.seen {
		// First quote ever seen just arms the entry.
		en.seen = true
		en.above = above
		return false
	}

	if en.armed {
		if touched || above != en.above {
			en.armed = false
			en.above = above
			ev.Logger.Debug("Watchlist: User %d target $%.2f on %s hit at $%.2f.",
				en.UserID, en.TargetPriceDollars, en.StockTicker, price)
			return true
		}
		en.above = above
		return false
	}

	// Disarmed: re-arm once the price leaves the band around the target.
	band := en.TargetPriceDollars * rearmBandFraction
	if math.Abs(price-en.TargetPriceDollars) > band {
		en.armed = true
		en.above = above
	}
	return false
}

// -----------------------------------------------------------------------------

// ListUser returns the user's entries decorated against live prices without
// advancing any alert state.
func (ev *Evaluator) ListUser(userID int64) []models.MStockWatchlist {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	byStock := ev.entries[userID]
	out := make([]models.MStockWatchlist, 0, len(byStock))
	for _, en := range byStock {
		price, ok := ev.Market.Price(en.StockTicker)
		if !ok || price <= 0 {
			if en.lastPrice <= 0 {
				continue
			}
			price = en.lastPrice
		}
		out = append(out, ev.decorate(en.MStockWatchlist, price))
	}
	sortEntries(out)
	return out
}

func sortEntries(rows []models.MStockWatchlist) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].StockId < rows[j].StockId })
}

// -----------------------------------------------------------------------------

// decorate fills the derived diff fields from a price. The diff is the
// distance from the target to the current price: negative while the price
// sits below the target, positive above it.
func (ev *Evaluator) decorate(row models.MStockWatchlist, price float64) models.MStockWatchlist {
	row.DiffPriceDollars = core.RoundCents(price - row.TargetPriceDollars)
	if row.TargetPriceDollars != 0 {
		row.DiffPercent = (price - row.TargetPriceDollars) / row.TargetPriceDollars * 100
	}
	return row
}
