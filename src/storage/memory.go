package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"trade-sim/src/helpers"
	"trade-sim/src/logger"
	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------
// MemoryDB is a map-backed IDatabase used for tests and throwaway runs
// (db_type: memory). Nothing survives a restart.
// -----------------------------------------------------------------------------

type MemoryDB struct {
	mu sync.Mutex

	Config *models.MConfig
	Logger *logger.Logger

	users    map[int64]models.MUser
	stocks   map[int64]models.MStock
	holdings map[int64]map[string]models.MHolding // userID -> ticker
	orders   []models.MOrder
	watch    map[int64]map[int64]models.MStockWatchlist // userID -> stockID
	news     []models.MNewsArticle

	nextUserID    int64
	nextStockID   int64
	nextHoldingID int64
	nextOrderID   int64
}

// -----------------------------------------------------------------------------

func NewMemoryDB(cfg *models.MConfig, log *logger.Logger) (*MemoryDB, error) {
	return &MemoryDB{
		Config:   cfg,
		Logger:   log,
		users:    make(map[int64]models.MUser),
		stocks:   make(map[int64]models.MStock),
		holdings: make(map[int64]map[string]models.MHolding),
		watch:    make(map[int64]map[int64]models.MStockWatchlist),
	}, nil
}

// -----------------------------------------------------------------------------

func (d *MemoryDB) Initialize(seeds []models.MStockSeed) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range seeds {
		d.nextStockID++
		d.stocks[d.nextStockID] = models.MStock{
			StockID:             d.nextStockID,
			Ticker:              s.Ticker,
			Name:                s.Name,
			OpeningPriceDollars: s.OpeningPrice,
			CurrentPriceDollars: s.OpeningPrice,
			UpdatedAt:           time.Now().UTC(),
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

func (d *MemoryDB) CreateUser(user models.MUser) (models.MUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if strings.EqualFold(u.Email, user.Email) {
			return models.MUser{}, helpers.NewValidationError("email %s is already registered", user.Email)
		}
	}

	d.nextUserID++
	user.UserID = d.nextUserID
	d.users[user.UserID] = user
	return user, nil
}

func (d *MemoryDB) GetUserByEmail(email string) (models.MUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.MUser{}, helpers.NewNotFound("no user with email %s", email)
}

func (d *MemoryDB) GetUserByID(userID int64) (models.MUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return models.MUser{}, helpers.NewNotFound("user %d not found", userID)
	}
	return u, nil
}

func (d *MemoryDB) UpdateUserSettings(userID int64, settings models.MUserSettings) (models.MUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return models.MUser{}, helpers.NewNotFound("user %d not found", userID)
	}
	u.NotificationsOn = settings.NotificationsOn
	u.UpdatedAt = time.Now().UTC()
	d.users[userID] = u
	return u, nil
}

func (d *MemoryDB) ListUsers() ([]models.MUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.MUser, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// -----------------------------------------------------------------------------
// Stocks
// -----------------------------------------------------------------------------

func (d *MemoryDB) ListStocks() ([]models.MStock, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.MStock, 0, len(d.stocks))
	for _, s := range d.stocks {
		s.ChangedPriceDollars = s.CurrentPriceDollars - s.OpeningPriceDollars
		if s.OpeningPriceDollars != 0 {
			s.ChangedPercent = s.ChangedPriceDollars / s.OpeningPriceDollars * 100
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockID < out[j].StockID })
	return out, nil
}

func (d *MemoryDB) UpdateStockPrices(stocks []models.MStock) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, in := range stocks {
		s, ok := d.stocks[in.StockID]
		if !ok {
			continue
		}
		s.CurrentPriceDollars = in.CurrentPriceDollars
		s.UpdatedAt = in.UpdatedAt
		d.stocks[in.StockID] = s
	}
	return nil
}

func (d *MemoryDB) UpdateStockSentiment(stockID int64, score float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.stocks[stockID]
	if !ok {
		return helpers.NewNotFound("stock %d not found", stockID)
	}
	s.OverallSentimentScore = score
	d.stocks[stockID] = s
	return nil
}

// -----------------------------------------------------------------------------
// Trades
// -----------------------------------------------------------------------------

func (d *MemoryDB) ApplyTrade(order models.MOrder, holding models.MHolding, removeHolding bool, newCash float64) (models.MOrder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[order.UserID]
	if !ok {
		return models.MOrder{}, helpers.NewNotFound("user %d not found", order.UserID)
	}

	d.nextOrderID++
	order.OrderID = d.nextOrderID
	d.orders = append(d.orders, order)

	byTicker, ok := d.holdings[order.UserID]
	if !ok {
		byTicker = make(map[string]models.MHolding)
		d.holdings[order.UserID] = byTicker
	}

	if removeHolding {
		delete(byTicker, holding.StockTicker)
	} else {
		if prev, ok := byTicker[holding.StockTicker]; ok {
			holding.HoldingID = prev.HoldingID
		} else {
			d.nextHoldingID++
			holding.HoldingID = d.nextHoldingID
		}
		byTicker[holding.StockTicker] = holding
	}

	u.CashBalanceDollars = newCash
	u.UpdatedAt = order.CreatedAt
	d.users[order.UserID] = u

	return order, nil
}

// -----------------------------------------------------------------------------

func (d *MemoryDB) ListOrders(userID int64) ([]models.MOrder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []models.MOrder
	for _, o := range d.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	// Newest first
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID > out[j].OrderID })
	return out, nil
}

func (d *MemoryDB) ListHoldings(userID int64) ([]models.MHolding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.holdingsLocked(userID), nil
}

func (d *MemoryDB) ListAllHoldings() ([]models.MHolding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []models.MHolding
	for userID := range d.holdings {
		out = append(out, d.holdingsLocked(userID)...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].StockTicker < out[j].StockTicker
	})
	return out, nil
}

func (d *MemoryDB) holdingsLocked(userID int64) []models.MHolding {
	byTicker := d.holdings[userID]
	out := make([]models.MHolding, 0, len(byTicker))
	for _, h := range byTicker {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockTicker < out[j].StockTicker })
	return out
}

// -----------------------------------------------------------------------------
// Watchlist
// -----------------------------------------------------------------------------

func (d *MemoryDB) SaveWatchlistEntry(entry models.MStockWatchlist) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	byStock, ok := d.watch[entry.UserID]
	if !ok {
		byStock = make(map[int64]models.MStockWatchlist)
		d.watch[entry.UserID] = byStock
	}
	byStock[entry.StockId] = entry
	return nil
}

func (d *MemoryDB) DeleteWatchlistEntry(userID, stockID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if byStock, ok := d.watch[userID]; ok {
		delete(byStock, stockID)
	}
	return nil
}

func (d *MemoryDB) ListWatchlist(userID int64) ([]models.MStockWatchlist, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.watchlistLocked(userID), nil
}

func (d *MemoryDB) ListAllWatchlists() ([]models.MStockWatchlist, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []models.MStockWatchlist
	for userID := range d.watch {
		out = append(out, d.watchlistLocked(userID)...)
	}
	return out, nil
}

func (d *MemoryDB) watchlistLocked(userID int64) []models.MStockWatchlist {
	byStock := d.watch[userID]
	out := make([]models.MStockWatchlist, 0, len(byStock))
	for _, e := range byStock {
		e.Active = true
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockId < out[j].StockId })
	return out
}

// -----------------------------------------------------------------------------
// News
// -----------------------------------------------------------------------------

func (d *MemoryDB) InsertNews(articles []models.MNewsArticle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.news = append(d.news, articles...)
	return nil
}

func (d *MemoryDB) ListNewsPage(stockID int64, page, pageSize int) ([]models.MNewsArticle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if page < 1 {
		page = 1
	}

	var all []models.MNewsArticle
	for _, a := range d.news {
		if a.StockID == stockID {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].PublicationTime.Equal(all[j].PublicationTime) {
			return all[i].PublicationTime.After(all[j].PublicationTime)
		}
		return all[i].NewsArticleID < all[j].NewsArticleID
	})

	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (d *MemoryDB) CleanupOldNews() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -d.Config.Storage.NewsRetentionDays)

	kept := d.news[:0]
	for _, a := range d.news {
		if !a.PublicationTime.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	d.news = kept
	return nil
}

// -----------------------------------------------------------------------------

func (d *MemoryDB) Close() error {
	return nil
}
