package server

import (
	"github.com/gin-gonic/gin"

	"trade-sim/src/helpers"
	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------
// Dashboard
// -----------------------------------------------------------------------------

// getDashboard serves the per-user snapshot, as JSON or as a live stream
// depending on the handshake.
func (s *Server) getDashboard(c *gin.Context) {
	userID, err := queryInt64(c, "userId")
	if err != nil {
		respondError(c, err)
		return
	}
	if !s.authorizedUser(c, userID) {
		return
	}

	if c.IsWebsocket() {
		s.upgradeClient(c, clientKindDashboard, userID, 0)
		return
	}

	if _, _, err := s.Ledger.SnapshotUser(userID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, s.composeDashboard(userID, s.Watchlist.ListUser(userID)))
}

// -----------------------------------------------------------------------------
// Trading
// -----------------------------------------------------------------------------

func (s *Server) postBuyStocks(c *gin.Context) {
	s.executeTrade(c, models.OrderSideBuy)
}

func (s *Server) postSellStocks(c *gin.Context) {
	s.executeTrade(c, models.OrderSideSell)
}

func (s *Server) executeTrade(c *gin.Context, side string) {
	var req models.MTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, helpers.NewValidationError("invalid request body: %v", err))
		return
	}
	if !s.authorizedUser(c, req.UserID) {
		return
	}

	order, err := s.Orders.ExecuteTrade(req.UserID, req.Ticker, req.Quantity, side)
	if err != nil {
		respondError(c, err)
		return
	}

	s.PushUser(req.UserID)
	respondOK(c, order)
}

// -----------------------------------------------------------------------------

func (s *Server) getOrders(c *gin.Context) {
	userID, err := queryInt64(c, "userId")
	if err != nil {
		respondError(c, err)
		return
	}
	if !s.authorizedUser(c, userID) {
		return
	}

	orders, err := s.DB.ListOrders(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, orders)
}

// -----------------------------------------------------------------------------
// Watchlist
// -----------------------------------------------------------------------------

func (s *Server) postAddWatchlist(c *gin.Context) {
	var req models.MWatchlistAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, helpers.NewValidationError("invalid request body: %v", err))
		return
	}
	if !s.authorizedUser(c, req.UserID) {
		return
	}

	entry, err := s.Watchlist.Add(req.UserID, req.StockID, req.TargetPrice)
	if err != nil {
		respondError(c, err)
		return
	}

	s.PushUser(req.UserID)
	respondOK(c, entry)
}

// -----------------------------------------------------------------------------

func (s *Server) deleteWatchlist(c *gin.Context) {
	userID, err := queryInt64(c, "userId")
	if err != nil {
		respondError(c, err)
		return
	}
	stockID, err := queryInt64(c, "stockId")
	if err != nil {
		respondError(c, err)
		return
	}
	if !s.authorizedUser(c, userID) {
		return
	}

	if err := s.Watchlist.Remove(userID, stockID); err != nil {
		respondError(c, err)
		return
	}

	s.PushUser(userID)
	respondOK(c, nil)
}

// -----------------------------------------------------------------------------
// User settings
// -----------------------------------------------------------------------------

func (s *Server) postUpdateUserSetting(c *gin.Context) {
	var req models.MUpdateUserSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, helpers.NewValidationError("invalid request body: %v", err))
		return
	}
	if !s.authorizedUser(c, req.UserID) {
		return
	}

	user, err := s.DB.UpdateUserSettings(req.UserID, req.Settings)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := s.Ledger.UpdateSettings(req.UserID, user); err != nil {
		s.Logger.Warning("Settings update not mirrored for user %d: %v", req.UserID, err)
	}
	respondOK(c, user)
}

// -----------------------------------------------------------------------------
// Market data
// -----------------------------------------------------------------------------

func (s *Server) getStocks(c *gin.Context) {
	respondOK(c, s.Market.List())
}

// -----------------------------------------------------------------------------

func (s *Server) getStockNews(c *gin.Context) {
	stockID, err := queryInt64(c, "stockId")
	if err != nil {
		respondError(c, err)
		return
	}
	page := queryIntDefault(c, "page", 1)

	articles, err := s.DB.ListNewsPage(stockID, page, models.NewsPageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, articles)
}

// -----------------------------------------------------------------------------

// handleMarketSocket streams one instrument's quote and fresh news.
func (s *Server) handleMarketSocket(c *gin.Context) {
	stockID, err := queryInt64(c, "stockId")
	if err != nil {
		respondError(c, err)
		return
	}
	if _, ok := s.Market.StockByID(stockID); !ok {
		respondError(c, helpers.NewNotFound("stock %d not found", stockID))
		return
	}

	if !c.IsWebsocket() {
		// Plain GET falls back to a one-shot snapshot.
		stock, _ := s.Market.StockByID(stockID)
		respondOK(c, models.MMarketData{Stock: stock, News: []models.MNewsArticle{}})
		return
	}

	s.upgradeClient(c, clientKindMarket, 0, stockID)
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	lastTick := s.lastTick
	s.stateMutex.RUnlock()

	c.JSON(200, gin.H{
		"status":      "ok",
		"connections": len(s.clients),
		"latest_tick": lastTick,
	})
}
