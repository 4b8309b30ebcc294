package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"trade-sim/src/auth"
	"trade-sim/src/config"
	datasource "trade-sim/src/data_source"
	"trade-sim/src/engine"
	"trade-sim/src/interfaces"
	"trade-sim/src/ledger"
	"trade-sim/src/logger"
	"trade-sim/src/models"
	"trade-sim/src/watchlist"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

type Server struct {
	Config *config.Config
	Logger *logger.Logger
	engine *gin.Engine

	DB         interfaces.IDatabase
	Ledger     *ledger.Ledger
	Orders     *engine.OrderEngine
	Market     *datasource.MarketState
	Watchlist  *watchlist.Evaluator
	Auth       *auth.Authenticator
	Sources    *datasource.MultiSourceManager
	ConfigPath string

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan models.MTickEvent // Strongly typed and Buffered Queue
	register   chan *Client
	unregister chan *Client
	userPush   chan int64

	// Last broadcast timestamp, for /health
	lastTick   int64
	stateMutex sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewServer(cfg *config.Config, log *logger.Logger, db interfaces.IDatabase,
	lg *ledger.Ledger, orders *engine.OrderEngine, market *datasource.MarketState,
	wl *watchlist.Evaluator, sources *datasource.MultiSourceManager, configPath string) *Server {

	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Config:     cfg,
		Logger:     log,
		engine:     gin.Default(),
		DB:         db,
		Ledger:     lg,
		Orders:     orders,
		Market:     market,
		Watchlist:  wl,
		Auth:       auth.NewAuthenticator(cfg.Auth),
		Sources:    sources,
		ConfigPath: configPath,
		clients:    make(map[*Client]struct{}),
		// Buffered channel to prevent lock/blocking
		// Queue size of 256 ensures we can handle bursts of updates
		broadcast:  make(chan models.MTickEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		userPush:   make(chan int64, 64),
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup (paths are the web client's contract)
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	api := s.engine.Group("/trade-sim")

	// Public endpoints
	api.POST("/create-account", s.postCreateAccount)
	api.POST("/login", s.postLogin)
	api.GET("/stocks", s.getStocks)
	api.GET("/stock-news", s.getStockNews)
	api.GET("/health", s.getHealth)

	// Market channel upgrades to a websocket
	api.GET("/market", s.handleMarketSocket)

	// User-scoped endpoints
	user := api.Group("")
	user.Use(s.requireAuth())
	user.GET("/dashboard", s.getDashboard)
	user.POST("/buy-stocks", s.postBuyStocks)
	user.POST("/sell-stocks", s.postSellStocks)
	user.GET("/orders", s.getOrders)
	user.POST("/add-stock-watchlist", s.postAddWatchlist)
	user.DELETE("/delete-stock-watchlist", s.deleteWatchlist)
	user.POST("/update-user-setting", s.postUpdateUserSetting)

	// Admin endpoints (feed control)
	admin := api.Group("/admin")
	admin.GET("/sources", s.getSources)
	admin.POST("/sources/:name/start", s.postStartSource)
	admin.POST("/sources/:name/stop", s.postStopSource)
	admin.POST("/sources/:name/symbols", s.postUpdateSourceSymbols)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *Server) Stop() error {
	// Clean shutdown
	close(s.broadcast)
	close(s.register)
	close(s.unregister)
	return nil
}
