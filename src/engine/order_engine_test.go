package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	datasource "trade-sim/src/data_source"
	"trade-sim/src/ledger"
	"trade-sim/src/logger"
	"trade-sim/src/models"
	"trade-sim/src/storage"
)

// -----------------------------------------------------------------------------

type fixture struct {
	db     *storage.MemoryDB
	market *datasource.MarketState
	book   *ledger.Ledger
	engine *OrderEngine
}

func newFixture(t *testing.T, cash float64, allowShort bool) *fixture {
	t.Helper()

	log := logger.NewLogger("ERROR", "test")
	cfg := &models.MConfig{
		Storage: models.MStorageConfig{NewsRetentionDays: 30},
		Trading: models.MTradingConfig{
			InitialCashDollars: cash,
			AllowShort:         allowShort,
			MaxOrderQuantity:   100000,
		},
	}

	db, err := storage.NewMemoryDB(cfg, log)
	require.NoError(t, err)
	require.NoError(t, db.Initialize([]models.MStockSeed{
		{Ticker: "AAPL", Name: "Apple Inc.", OpeningPrice: 100},
		{Ticker: "MSFT", Name: "Microsoft Corporation", OpeningPrice: 200},
	}))

	stocks, err := db.ListStocks()
	require.NoError(t, err)
	market := datasource.NewMarketState(stocks, 16)

	book := ledger.NewLedger(log)
	require.NoError(t, book.LoadFromStorage(db))

	return &fixture{
		db:     db,
		market: market,
		book:   book,
		engine: NewOrderEngine(book, market, db, cfg.Trading, log),
	}
}

func (f *fixture) addUser(t *testing.T, cash float64) int64 {
	t.Helper()
	now := time.Now().UTC()
	user, err := f.db.CreateUser(models.MUser{
		Username: "trader", Email: "trader@example.com",
		CashBalanceDollars: cash, InitialInvestmentDollars: cash,
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	f.book.Register(user)
	return user.UserID
}

// -----------------------------------------------------------------------------

func TestExecuteTradeBuyAndSell(t *testing.T) {
	f := newFixture(t, 10000, true)
	userID := f.addUser(t, 10000)

	order, err := f.engine.ExecuteTrade(userID, "AAPL", 10, models.OrderSideBuy)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusExecuted, order.Status)
	assert.Equal(t, 1000.0, order.TotalOrderValueDollars)
	assert.NotZero(t, order.OrderID)

	user, holdings, err := f.book.SnapshotUser(userID)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, user.CashBalanceDollars)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(10), holdings[0].Quantity)
	assert.Equal(t, 100.0, holdings[0].AverageCostPerShareDollars)

	_, err = f.engine.ExecuteTrade(userID, "AAPL", 10, models.OrderSideSell)
	require.NoError(t, err)

	user, holdings, err = f.book.SnapshotUser(userID)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, user.CashBalanceDollars)
	assert.Empty(t, holdings)
}

// -----------------------------------------------------------------------------

func TestExecuteTradeValidation(t *testing.T) {
	f := newFixture(t, 10000, true)
	userID := f.addUser(t, 10000)

	_, err := f.engine.ExecuteTrade(userID, "AAPL", 0, models.OrderSideBuy)
	assert.Error(t, err)

	_, err = f.engine.ExecuteTrade(userID, "AAPL", -5, models.OrderSideBuy)
	assert.Error(t, err)

	_, err = f.engine.ExecuteTrade(userID, "ZZZZ", 1, models.OrderSideBuy)
	assert.Error(t, err)

	_, err = f.engine.ExecuteTrade(userID, "AAPL", 1, "HOLD")
	assert.Error(t, err)

	_, err = f.engine.ExecuteTrade(999, "AAPL", 1, models.OrderSideBuy)
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestRejectedBuyLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, 500, true)
	userID := f.addUser(t, 500)

	// 10 shares at 100 needs 1000, only 500 available.
	_, err := f.engine.ExecuteTrade(userID, "AAPL", 10, models.OrderSideBuy)
	require.Error(t, err)

	user, holdings, err := f.book.SnapshotUser(userID)
	require.NoError(t, err)
	assert.Equal(t, 500.0, user.CashBalanceDollars)
	assert.Empty(t, holdings)

	orders, err := f.db.ListOrders(userID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// -----------------------------------------------------------------------------

func TestShortSellingToggle(t *testing.T) {
	f := newFixture(t, 10000, false)
	userID := f.addUser(t, 10000)

	_, err := f.engine.ExecuteTrade(userID, "AAPL", 5, models.OrderSideSell)
	assert.Error(t, err, "shorting disabled must reject a naked sell")

	f2 := newFixture(t, 10000, true)
	userID2 := f2.addUser(t, 10000)

	_, err = f2.engine.ExecuteTrade(userID2, "AAPL", 5, models.OrderSideSell)
	require.NoError(t, err)

	user, holdings, err := f2.book.SnapshotUser(userID2)
	require.NoError(t, err)
	assert.Equal(t, 10500.0, user.CashBalanceDollars)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(-5), holdings[0].Quantity)
}

// -----------------------------------------------------------------------------

func TestConcurrentBuysRespectCashFloor(t *testing.T) {
	// Balance 1000, each order costs 100: exactly 10 may succeed.
	f := newFixture(t, 1000, true)
	userID := f.addUser(t, 1000)

	const attempts = 25
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.ExecuteTrade(userID, "AAPL", 1, models.OrderSideBuy)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 10, succeeded)

	user, holdings, err := f.book.SnapshotUser(userID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, user.CashBalanceDollars)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(10), holdings[0].Quantity)
}

// -----------------------------------------------------------------------------

// Holdings must always equal the signed sum of executed orders.
func TestSignedSumInvariant(t *testing.T) {
	f := newFixture(t, 100000, true)
	userID := f.addUser(t, 100000)

	trades := []struct {
		side string
		qty  int64
	}{
		{models.OrderSideBuy, 10},
		{models.OrderSideSell, 4},
		{models.OrderSideBuy, 7},
		{models.OrderSideSell, 20}, // flips short
		{models.OrderSideBuy, 3},
	}

	for _, tr := range trades {
		_, err := f.engine.ExecuteTrade(userID, "AAPL", tr.qty, tr.side)
		require.NoError(t, err)
	}

	orders, err := f.db.ListOrders(userID)
	require.NoError(t, err)

	var signedSum int64
	for i := range orders {
		signedSum += orders[i].SignedQuantity()
	}

	_, holdings, err := f.book.SnapshotUser(userID)
	require.NoError(t, err)

	var held int64
	for _, h := range holdings {
		held += h.Quantity
	}
	assert.Equal(t, signedSum, held)

	// And the persisted view agrees with memory.
	persisted, err := f.db.ListHoldings(userID)
	require.NoError(t, err)
	var heldDB int64
	for _, h := range persisted {
		heldDB += h.Quantity
	}
	assert.Equal(t, signedSum, heldDB)
}
