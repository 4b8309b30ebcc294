package interfaces

import "trade-sim/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// Initialize sets up the database schema and seeds instruments that do
	// not exist yet.
	Initialize(seeds []models.MStockSeed) error

	// -----------------------------------------------------------------------------
	// Users

	// CreateUser inserts a new user and returns it with UserID assigned.
	CreateUser(user models.MUser) (models.MUser, error)

	GetUserByEmail(email string) (models.MUser, error)

	GetUserByID(userID int64) (models.MUser, error)

	// UpdateUserSettings persists the mutable preferences.
	UpdateUserSettings(userID int64, settings models.MUserSettings) (models.MUser, error)

	// ListUsers returns every registered user (account warm-up at startup).
	ListUsers() ([]models.MUser, error)

	// -----------------------------------------------------------------------------
	// Stocks

	ListStocks() ([]models.MStock, error)

	// UpdateStockPrices bulk-persists the latest quote fields.
	UpdateStockPrices(stocks []models.MStock) error

	// UpdateStockSentiment persists the decayed sentiment aggregate.
	UpdateStockSentiment(stockID int64, score float64) error

	// -----------------------------------------------------------------------------
	// Trades

	// ApplyTrade atomically appends the order, upserts (or removes) the
	// holding and updates the user's cash balance. Either all three land or
	// none do. The returned order carries its assigned OrderID.
	ApplyTrade(order models.MOrder, holding models.MHolding, removeHolding bool, newCash float64) (models.MOrder, error)

	ListOrders(userID int64) ([]models.MOrder, error)

	ListHoldings(userID int64) ([]models.MHolding, error)

	ListAllHoldings() ([]models.MHolding, error)

	// -----------------------------------------------------------------------------
	// Watchlist

	SaveWatchlistEntry(entry models.MStockWatchlist) error

	DeleteWatchlistEntry(userID, stockID int64) error

	ListWatchlist(userID int64) ([]models.MStockWatchlist, error)

	ListAllWatchlists() ([]models.MStockWatchlist, error)

	// -----------------------------------------------------------------------------
	// News

	InsertNews(articles []models.MNewsArticle) error

	// ListNewsPage returns one page, newest first. page starts at 1; a short
	// or empty page means the feed is exhausted.
	ListNewsPage(stockID int64, page, pageSize int) ([]models.MNewsArticle, error)

	// CleanupOldNews removes articles older than the retention policy.
	CleanupOldNews() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
