package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"trade-sim/src/analysis"
	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *Server) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			// Send initial state on connect
			s.pushInitial(client)

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}

		case userID := <-s.userPush:
			// A trade or watchlist mutation landed; refresh that user's
			// dashboard connections without waiting for the next tick.
			for client := range s.clients {
				if client.kind == clientKindDashboard && client.userID == userID {
					s.sendOrDrop(client, s.composeDashboard(userID, s.Watchlist.ListUser(userID)))
				}
			}

		case event, ok := <-s.broadcast:
			if !ok {
				return
			}

			s.stateMutex.Lock()
			s.lastTick = event.Timestamp
			s.stateMutex.Unlock()

			s.fanOut(event)
		}
	}
}

// -----------------------------------------------------------------------------

// fanOut composes per-channel payloads for one refresh cycle. Dashboard
// snapshots are composed once per user, not once per connection, so the
// watchlist alert state advances exactly once per tick.
func (s *Server) fanOut(event models.MTickEvent) {
	dashboards := make(map[int64]interface{})

	for client := range s.clients {
		var payload interface{}

		switch client.kind {
		case clientKindDashboard:
			snap, ok := dashboards[client.userID]
			if !ok {
				rows, alerts := s.Watchlist.EvaluateUser(client.userID)
				for _, alert := range alerts {
					s.Logger.Info("Watchlist alert: user %d, %s reached target $%.2f (price $%.2f)",
						alert.UserID, alert.StockTicker, alert.TargetPriceDollars, alert.PriceDollars)
				}
				snap = s.composeDashboard(client.userID, rows)
				dashboards[client.userID] = snap
			}
			payload = snap

		case clientKindMarket:
			payload = s.composeMarket(client, event.News)
			if payload == nil {
				continue
			}
		}

		s.sendOrDrop(client, payload)
	}
}

// -----------------------------------------------------------------------------

// sendOrDrop delivers without ever blocking the hub.
func (s *Server) sendOrDrop(client *Client, payload interface{}) {
	select {
	case client.send <- payload:
		// Message sent successfully
	default:
		// Client too slow, disconnect to prevent Hub blocking
		delete(s.clients, client)
		close(client.send)
	}
}

// -----------------------------------------------------------------------------

// pushInitial sends the first snapshot right after registration.
func (s *Server) pushInitial(client *Client) {
	switch client.kind {
	case clientKindDashboard:
		s.sendOrDrop(client, s.composeDashboard(client.userID, s.Watchlist.ListUser(client.userID)))
	case clientKindMarket:
		if payload := s.composeMarket(client, nil); payload != nil {
			s.sendOrDrop(client, payload)
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues one refresh cycle for fan-out.
func (s *Server) Broadcast(event models.MTickEvent) {
	s.broadcast <- event
}

// PushUser queues an immediate dashboard refresh for one user.
func (s *Server) PushUser(userID int64) {
	select {
	case s.userPush <- userID:
	default:
		// The next tick will carry the refresh anyway.
	}
}

// -----------------------------------------------------------------------------
// Snapshot composition
// -----------------------------------------------------------------------------

// composeDashboard derives the full per-user snapshot. Aggregates are always
// recomputed from {cash, holdings, live prices}; composing twice with no
// mutation in between yields identical figures.
func (s *Server) composeDashboard(userID int64, watchRows []models.MStockWatchlist) *models.MDashboard {
	user, holdings, err := s.Ledger.SnapshotUser(userID)
	if err != nil {
		s.Logger.Warning("Dashboard compose for unknown user %d", userID)
		return &models.MDashboard{}
	}

	valued := analysis.ValueHoldings(holdings, s.Market.Price)
	totals := analysis.PortfolioTotals(user.CashBalanceDollars, user.InitialInvestmentDollars, valued)

	return &models.MDashboard{
		User:                     user,
		Stocks:                   s.Market.List(),
		Holdings:                 valued,
		StockWatchlist:           watchRows,
		TotalHoldingValueDollars: totals.TotalHoldingValueDollars,
		PortfolioValueDollars:    totals.PortfolioValueDollars,
		TotalPnLDollars:          totals.TotalPnLDollars,
		TotalReturnPercent:       totals.TotalReturnPercent,
	}
}

// -----------------------------------------------------------------------------

// composeMarket builds the market-channel payload for one connection. News
// the connection has already received is filtered out; delivered ids are
// remembered so every article arrives at most once per connection.
func (s *Server) composeMarket(client *Client, news []models.MNewsArticle) *models.MMarketData {
	stock, ok := s.Market.StockByID(client.stockID)
	if !ok {
		return nil
	}

	fresh := make([]models.MNewsArticle, 0, len(news))
	for _, a := range news {
		if a.StockID != client.stockID {
			continue
		}
		if _, seen := client.seenNews[a.NewsArticleID]; seen {
			continue
		}
		client.seenNews[a.NewsArticleID] = struct{}{}
		fresh = append(fresh, a)
	}

	return &models.MMarketData{
		Stock: stock,
		News:  fresh,
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

// upgradeClient performs the handshake and registers the connection.
func (s *Server) upgradeClient(c *gin.Context, kind string, userID, stockID int64) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send:     make(chan interface{}, 256),
		kind:     kind,
		userID:   userID,
		stockID:  stockID,
		seenNews: make(map[string]struct{}),
	}

	s.register <- client

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}
