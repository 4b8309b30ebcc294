package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-sim/src/logger"
	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------

func newTestSQLite(t *testing.T) *AsyncSQLiteDB {
	t.Helper()

	cfg := &models.MConfig{
		Storage: models.MStorageConfig{
			DBType:            "sqlite",
			DBPath:            filepath.Join(t.TempDir(), "trade-sim-test.db"),
			NewsRetentionDays: 30,
		},
	}
	db, err := NewAsyncSQLiteDB(cfg, logger.NewLogger("ERROR", "test"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize([]models.MStockSeed{
		{Ticker: "AAPL", Name: "Apple Inc.", OpeningPrice: 100},
		{Ticker: "MSFT", Name: "Microsoft Corp.", OpeningPrice: 200},
	}))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testUser(email string) models.MUser {
	now := time.Now().UTC().Truncate(time.Second)
	return models.MUser{
		Username:                 "trader",
		Email:                    email,
		CashBalanceDollars:       10000,
		InitialInvestmentDollars: 10000,
		NotificationsOn:          true,
		PasswordHash:             "not-a-real-hash",
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

// -----------------------------------------------------------------------------

func TestSQLiteUserRoundTrip(t *testing.T) {
	db := newTestSQLite(t)

	created, err := db.CreateUser(testUser("alice@example.com"))
	require.NoError(t, err)
	assert.NotZero(t, created.UserID)

	byEmail, err := db.GetUserByEmail("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.UserID, byEmail.UserID)
	assert.Equal(t, 10000.0, byEmail.CashBalanceDollars)
	assert.True(t, byEmail.NotificationsOn)
	assert.Equal(t, "not-a-real-hash", byEmail.PasswordHash)

	byID, err := db.GetUserByID(created.UserID)
	require.NoError(t, err)
	assert.Equal(t, byEmail.Email, byID.Email)

	_, err = db.GetUserByEmail("nobody@example.com")
	assert.Error(t, err)
	_, err = db.GetUserByID(999)
	assert.Error(t, err)
}

func TestSQLiteUpdateUserSettings(t *testing.T) {
	db := newTestSQLite(t)

	created, err := db.CreateUser(testUser("alice@example.com"))
	require.NoError(t, err)

	updated, err := db.UpdateUserSettings(created.UserID, models.MUserSettings{NotificationsOn: false})
	require.NoError(t, err)
	assert.False(t, updated.NotificationsOn)

	reloaded, err := db.GetUserByID(created.UserID)
	require.NoError(t, err)
	assert.False(t, reloaded.NotificationsOn)
}

// -----------------------------------------------------------------------------

func TestSQLiteSeedIsIdempotent(t *testing.T) {
	db := newTestSQLite(t)

	stocks, err := db.ListStocks()
	require.NoError(t, err)
	require.Len(t, stocks, 2)

	// Re-seeding with a drifted opening price must not clobber anything.
	require.NoError(t, db.Initialize([]models.MStockSeed{
		{Ticker: "AAPL", Name: "Apple Inc.", OpeningPrice: 123},
	}))

	stocks, err = db.ListStocks()
	require.NoError(t, err)
	require.Len(t, stocks, 2)
	for _, s := range stocks {
		if s.Ticker == "AAPL" {
			assert.Equal(t, 100.0, s.OpeningPriceDollars)
		}
	}
}

func TestSQLiteUpdateStockPrices(t *testing.T) {
	db := newTestSQLite(t)

	stocks, err := db.ListStocks()
	require.NoError(t, err)

	for i := range stocks {
		stocks[i].CurrentPriceDollars = stocks[i].OpeningPriceDollars * 1.1
		stocks[i].UpdatedAt = time.Now().UTC()
	}
	require.NoError(t, db.UpdateStockPrices(stocks))

	reloaded, err := db.ListStocks()
	require.NoError(t, err)
	for _, s := range reloaded {
		assert.InDelta(t, s.OpeningPriceDollars*1.1, s.CurrentPriceDollars, 1e-9)
		assert.InDelta(t, 10.0, s.ChangedPercent, 1e-6)
	}
}

// -----------------------------------------------------------------------------

func TestSQLiteApplyTradeRoundTrip(t *testing.T) {
	db := newTestSQLite(t)
	user, err := db.CreateUser(testUser("alice@example.com"))
	require.NoError(t, err)

	order := models.MOrder{
		UserID:                 user.UserID,
		StockTicker:            "AAPL",
		Side:                   models.OrderSideBuy,
		Quantity:               10,
		PricePerShareDollars:   100,
		TotalOrderValueDollars: 1000,
		Status:                 models.OrderStatusExecuted,
		CreatedAt:              time.Now().UTC(),
	}
	holding := models.MHolding{
		UserID:                     user.UserID,
		StockTicker:                "AAPL",
		Quantity:                   10,
		AverageCostPerShareDollars: 100,
		UpdatedAt:                  time.Now().UTC(),
	}

	executed, err := db.ApplyTrade(order, holding, false, 9000)
	require.NoError(t, err)
	assert.NotZero(t, executed.OrderID)

	holdings, err := db.ListHoldings(user.UserID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(10), holdings[0].Quantity)
	assert.Equal(t, 100.0, holdings[0].AverageCostPerShareDollars)

	reloaded, err := db.GetUserByID(user.UserID)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, reloaded.CashBalanceDollars)

	// Selling everything removes the holding row.
	order.Side = models.OrderSideSell
	holding.Quantity = 0
	_, err = db.ApplyTrade(order, holding, true, 10000)
	require.NoError(t, err)

	holdings, err = db.ListHoldings(user.UserID)
	require.NoError(t, err)
	assert.Empty(t, holdings)

	orders, err := db.ListOrders(user.UserID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	// Newest first.
	assert.Equal(t, models.OrderSideSell, orders[0].Side)
	assert.Equal(t, models.OrderSideBuy, orders[1].Side)
}

func TestSQLiteApplyTradeUpsertsHolding(t *testing.T) {
	db := newTestSQLite(t)
	user, err := db.CreateUser(testUser("alice@example.com"))
	require.NoError(t, err)

	base := models.MOrder{
		UserID:                 user.UserID,
		StockTicker:            "MSFT",
		Side:                   models.OrderSideBuy,
		Quantity:               5,
		PricePerShareDollars:   200,
		TotalOrderValueDollars: 1000,
		Status:                 models.OrderStatusExecuted,
		CreatedAt:              time.Now().UTC(),
	}
	holding := models.MHolding{
		UserID:                     user.UserID,
		StockTicker:                "MSFT",
		Quantity:                   5,
		AverageCostPerShareDollars: 200,
		UpdatedAt:                  time.Now().UTC(),
	}
	_, err = db.ApplyTrade(base, holding, false, 9000)
	require.NoError(t, err)

	holding.Quantity = 10
	holding.AverageCostPerShareDollars = 210
	_, err = db.ApplyTrade(base, holding, false, 6900)
	require.NoError(t, err)

	holdings, err := db.ListHoldings(user.UserID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(10), holdings[0].Quantity)
	assert.Equal(t, 210.0, holdings[0].AverageCostPerShareDollars)
}

// -----------------------------------------------------------------------------

func TestSQLiteWatchlistRoundTrip(t *testing.T) {
	db := newTestSQLite(t)

	entry := models.MStockWatchlist{
		UserID:             1,
		StockId:            1,
		StockTicker:        "AAPL",
		StockName:          "Apple Inc.",
		TargetPriceDollars: 150,
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, db.SaveWatchlistEntry(entry))

	rows, err := db.ListWatchlist(1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 150.0, rows[0].TargetPriceDollars)
	assert.True(t, rows[0].Active)

	all, err := db.ListAllWatchlists()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, db.DeleteWatchlistEntry(1, 1))
	rows, err = db.ListWatchlist(1)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// -----------------------------------------------------------------------------

func TestSQLiteNewsPagination(t *testing.T) {
	db := newTestSQLite(t)

	base := time.Now().UTC().Truncate(time.Second)
	var articles []models.MNewsArticle
	for i := 0; i < 25; i++ {
		articles = append(articles, models.MNewsArticle{
			NewsArticleID:   fmt.Sprintf("article-%02d", i),
			StockID:         1,
			ArticleTitle:    fmt.Sprintf("headline %d", i),
			ArticleURL:      fmt.Sprintf("https://news.trade-sim.local/articles/%d", i),
			ArticleSummary:  "summary",
			SentimentScore:  0.1,
			PublicationTime: base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, db.InsertNews(articles))

	seen := map[string]bool{}
	var last time.Time
	for page := 1; page <= 3; page++ {
		rows, err := db.ListNewsPage(1, page, models.NewsPageSize)
		require.NoError(t, err)
		if page < 3 {
			require.Len(t, rows, models.NewsPageSize)
		} else {
			require.Len(t, rows, 5)
		}
		for _, a := range rows {
			assert.False(t, seen[a.NewsArticleID], "article %s on two pages", a.NewsArticleID)
			seen[a.NewsArticleID] = true
			if !last.IsZero() {
				assert.False(t, a.PublicationTime.After(last), "pages must be newest first")
			}
			last = a.PublicationTime
		}
	}

	rows, err := db.ListNewsPage(1, 4, models.NewsPageSize)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Other stocks see nothing.
	rows, err = db.ListNewsPage(2, 1, models.NewsPageSize)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSQLiteCleanupOldNews(t *testing.T) {
	db := newTestSQLite(t)

	now := time.Now().UTC()
	require.NoError(t, db.InsertNews([]models.MNewsArticle{
		{NewsArticleID: "fresh", StockID: 1, ArticleTitle: "t", ArticleURL: "u", PublicationTime: now},
		{NewsArticleID: "stale", StockID: 1, ArticleTitle: "t", ArticleURL: "u", PublicationTime: now.AddDate(0, 0, -60)},
	}))

	require.NoError(t, db.CleanupOldNews())

	rows, err := db.ListNewsPage(1, 1, models.NewsPageSize)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fresh", rows[0].NewsArticleID)
}
