package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-sim/src/config"
	datasource "trade-sim/src/data_source"
	"trade-sim/src/engine"
	"trade-sim/src/ledger"
	"trade-sim/src/logger"
	"trade-sim/src/models"
	"trade-sim/src/storage"
	"trade-sim/src/watchlist"
)

// -----------------------------------------------------------------------------
// Fixture
// -----------------------------------------------------------------------------

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{MConfig: &models.MConfig{
		Name:     "trade-sim-test",
		Host:     "127.0.0.1",
		Port:     8080,
		LogLevel: "ERROR",
		Auth:     models.MAuthConfig{JWTSecret: "test-secret", TokenTTLHours: 1},
		Storage:  models.MStorageConfig{DBType: "memory", NewsRetentionDays: 30},
		Trading:  models.MTradingConfig{InitialCashDollars: 10000, AllowShort: true, MaxOrderQuantity: 100000},
	}}
	log := logger.NewLogger("ERROR", "test")

	db, err := storage.NewMemoryDB(cfg.MConfig, log)
	require.NoError(t, err)
	require.NoError(t, db.Initialize([]models.MStockSeed{
		{Ticker: "AAPL", Name: "Apple Inc.", OpeningPrice: 100},
		{Ticker: "MSFT", Name: "Microsoft Corp.", OpeningPrice: 200},
	}))

	stocks, err := db.ListStocks()
	require.NoError(t, err)
	market := datasource.NewMarketState(stocks, 16)

	book := ledger.NewLedger(log)
	require.NoError(t, book.LoadFromStorage(db))

	orders := engine.NewOrderEngine(book, market, db, cfg.Trading, log)

	wl := watchlist.NewEvaluator(market, db, log)
	require.NoError(t, wl.LoadFromStorage())

	sources := datasource.NewMultiSourceManager(nil, log)

	return NewServer(cfg, log, db, book, orders, market, wl, sources, "")
}

// -----------------------------------------------------------------------------

type envelope struct {
	Success      bool            `json:"Success"`
	Data         json.RawMessage `json:"Data"`
	ErrorMessage string          `json:"ErrorMessage"`
}

func (s *Server) doJSON(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	if len(rec.Body.Bytes()) > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec.Code, env
}

func (s *Server) createAccount(t *testing.T, email string) models.MAuthResult {
	t.Helper()

	code, env := s.doJSON(t, http.MethodPost, "/trade-sim/create-account", "", models.MCreateAccountRequest{
		Email:           email,
		Password:        "hunter22hunter22",
		ConfirmPassword: "hunter22hunter22",
	})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success, "create-account failed: %s", env.ErrorMessage)

	var result models.MAuthResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.NotEmpty(t, result.Token)
	require.NotZero(t, result.UserId)
	return result
}

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

func TestCreateAccountAndLogin(t *testing.T) {
	s := newTestServer(t)

	created := s.createAccount(t, "alice@example.com")

	// Duplicate email is a business rejection, not a transport error.
	code, env := s.doJSON(t, http.MethodPost, "/trade-sim/create-account", "", models.MCreateAccountRequest{
		Email:           "Alice@Example.com",
		Password:        "hunter22hunter22",
		ConfirmPassword: "hunter22hunter22",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, env.Success)
	assert.Contains(t, env.ErrorMessage, "already registered")

	code, env = s.doJSON(t, http.MethodPost, "/trade-sim/login", "", models.MLoginRequest{
		Email:    "alice@example.com",
		Password: "hunter22hunter22",
	})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)
	var result models.MAuthResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, created.UserId, result.UserId)

	// Unknown email and wrong password produce the same answer.
	_, badUser := s.doJSON(t, http.MethodPost, "/trade-sim/login", "", models.MLoginRequest{
		Email: "nobody@example.com", Password: "hunter22hunter22",
	})
	_, badPass := s.doJSON(t, http.MethodPost, "/trade-sim/login", "", models.MLoginRequest{
		Email: "alice@example.com", Password: "wrong password",
	})
	assert.False(t, badUser.Success)
	assert.Equal(t, badUser.ErrorMessage, badPass.ErrorMessage)
}

func TestCreateAccountValidation(t *testing.T) {
	s := newTestServer(t)

	cases := []models.MCreateAccountRequest{
		{Email: "not-an-email", Password: "hunter22hunter22", ConfirmPassword: "hunter22hunter22"},
		{Email: "alice@example.com", Password: "short", ConfirmPassword: "short"},
		{Email: "alice@example.com", Password: "hunter22hunter22", ConfirmPassword: "different1234567"},
	}
	for _, req := range cases {
		code, env := s.doJSON(t, http.MethodPost, "/trade-sim/create-account", "", req)
		assert.Equal(t, http.StatusOK, code)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.ErrorMessage)
	}
}

// -----------------------------------------------------------------------------
// Auth enforcement
// -----------------------------------------------------------------------------

func TestProtectedEndpointsRequireToken(t *testing.T) {
	s := newTestServer(t)
	created := s.createAccount(t, "alice@example.com")

	code, _ := s.doJSON(t, http.MethodGet, "/trade-sim/orders?userId=1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.doJSON(t, http.MethodGet, "/trade-sim/orders?userId=1", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	// A valid token only opens the holder's own account.
	otherID := created.UserId + 1
	code, _ = s.doJSON(t, http.MethodGet,
		fmt.Sprintf("/trade-sim/orders?userId=%d", otherID), created.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := s.doJSON(t, http.MethodGet,
		fmt.Sprintf("/trade-sim/orders?userId=%d", created.UserId), created.Token, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

// -----------------------------------------------------------------------------
// Trading
// -----------------------------------------------------------------------------

func TestTradeFlow(t *testing.T) {
	s := newTestServer(t)
	created := s.createAccount(t, "alice@example.com")

	code, env := s.doJSON(t, http.MethodPost, "/trade-sim/buy-stocks", created.Token,
		models.MTradeRequest{UserID: created.UserId, Ticker: "AAPL", Quantity: 10})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success, env.ErrorMessage)

	var order models.MOrder
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, models.OrderSideBuy, order.Side)
	assert.Equal(t, int64(10), order.Quantity)
	assert.Equal(t, 1000.0, order.TotalOrderValueDollars)

	// Dashboard reflects the fill.
	code, env = s.doJSON(t, http.MethodGet,
		fmt.Sprintf("/trade-sim/dashboard?userId=%d", created.UserId), created.Token, nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	var dash models.MDashboard
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Equal(t, 9000.0, dash.User.CashBalanceDollars)
	require.Len(t, dash.Holdings, 1)
	assert.Equal(t, "AAPL", dash.Holdings[0].StockTicker)
	assert.Equal(t, int64(10), dash.Holdings[0].Quantity)
	assert.Equal(t, 1000.0, dash.TotalHoldingValueDollars)
	assert.Equal(t, 10000.0, dash.PortfolioValueDollars)

	// Composing again without a mutation in between yields identical figures.
	_, again := s.doJSON(t, http.MethodGet,
		fmt.Sprintf("/trade-sim/dashboard?userId=%d", created.UserId), created.Token, nil)
	assert.JSONEq(t, string(env.Data), string(again.Data))

	code, env = s.doJSON(t, http.MethodPost, "/trade-sim/sell-stocks", created.Token,
		models.MTradeRequest{UserID: created.UserId, Ticker: "AAPL", Quantity: 10})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success, env.ErrorMessage)

	code, env = s.doJSON(t, http.MethodGet,
		fmt.Sprintf("/trade-sim/orders?userId=%d", created.UserId), created.Token, nil)
	require.Equal(t, http.StatusOK, code)
	var orders []models.MOrder
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	require.Len(t, orders, 2)
	assert.Equal(t, models.OrderSideSell, orders[0].Side)
}

func TestTradeRejectionKeepsEnvelope(t *testing.T) {
	s := newTestServer(t)
	created := s.createAccount(t, "alice@example.com")

	// 10000 cash cannot buy 200 shares at 100.
	code, env := s.doJSON(t, http.MethodPost, "/trade-sim/buy-stocks", created.Token,
		models.MTradeRequest{UserID: created.UserId, Ticker: "AAPL", Quantity: 200})
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.ErrorMessage)

	code, env = s.doJSON(t, http.MethodPost, "/trade-sim/buy-stocks", created.Token,
		models.MTradeRequest{UserID: created.UserId, Ticker: "NOPE", Quantity: 1})
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, env.Success)
}

// -----------------------------------------------------------------------------
// Watchlist
// -----------------------------------------------------------------------------

func TestWatchlistEndpoints(t *testing.T) {
	s := newTestServer(t)
	created := s.createAccount(t, "alice@example.com")

	code, env := s.doJSON(t, http.MethodPost, "/trade-sim/add-stock-watchlist", created.Token,
		models.MWatchlistAddRequest{UserID: created.UserId, StockID: 1, TargetPrice: 150})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success, env.ErrorMessage)

	var entry models.MStockWatchlist
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, "AAPL", entry.StockTicker)
	assert.Equal(t, 150.0, entry.TargetPriceDollars)

	code, env = s.doJSON(t, http.MethodDelete,
		fmt.Sprintf("/trade-sim/delete-stock-watchlist?userId=%d&stockId=1", created.UserId),
		created.Token, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	// Deleting again is a business rejection.
	code, env = s.doJSON(t, http.MethodDelete,
		fmt.Sprintf("/trade-sim/delete-stock-watchlist?userId=%d&stockId=1", created.UserId),
		created.Token, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, env.Success)
}

// -----------------------------------------------------------------------------
// User settings
// -----------------------------------------------------------------------------

func TestUpdateUserSetting(t *testing.T) {
	s := newTestServer(t)
	created := s.createAccount(t, "alice@example.com")

	code, env := s.doJSON(t, http.MethodPost, "/trade-sim/update-user-setting", created.Token,
		models.MUpdateUserSettingRequest{
			UserID:   created.UserId,
			Settings: models.MUserSettings{NotificationsOn: false},
		})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	var user models.MUser
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.False(t, user.NotificationsOn)
}

// -----------------------------------------------------------------------------
// Market data
// -----------------------------------------------------------------------------

func TestGetStocksIsPublic(t *testing.T) {
	s := newTestServer(t)

	code, env := s.doJSON(t, http.MethodGet, "/trade-sim/stocks", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	var stocks []models.MStock
	require.NoError(t, json.Unmarshal(env.Data, &stocks))
	require.Len(t, stocks, 2)
	assert.Equal(t, "AAPL", stocks[0].Ticker)
}

func TestMarketSnapshotFallback(t *testing.T) {
	s := newTestServer(t)

	code, env := s.doJSON(t, http.MethodGet, "/trade-sim/market?stockId=1", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	var data models.MMarketData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "AAPL", data.Stock.Ticker)
	assert.Empty(t, data.News)

	code, env = s.doJSON(t, http.MethodGet, "/trade-sim/market?stockId=99", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, env.Success)
}

func TestStockNewsValidation(t *testing.T) {
	s := newTestServer(t)

	code, env := s.doJSON(t, http.MethodGet, "/trade-sim/stock-news", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, env.Success)

	code, env = s.doJSON(t, http.MethodGet, "/trade-sim/stock-news?stockId=1", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

// -----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/trade-sim/health", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
