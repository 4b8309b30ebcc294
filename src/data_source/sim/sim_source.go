package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"trade-sim/src/logger"
	"trade-sim/src/models"
	"trade-sim/src/utils"
)

// -----------------------------------------------------------------------------
// RandomWalkSource produces synthetic quotes with a seeded random walk. Each
// interval every symbol moves by a gaussian step scaled by the configured
// volatility, floored so a price can never reach zero. With a fixed seed the
// walk is reproducible run to run.
// -----------------------------------------------------------------------------

type RandomWalkSource struct {
	Config          *models.MConfig
	SourceConfig    models.MSourceConfig // Store specific source config
	symbols         atomic.Value         // Stores []string safely
	Logger          *logger.Logger
	MarketScheduler *utils.MarketScheduler
	openings        map[string]float64
	cancelFunc      context.CancelFunc // To support Stop()
	ctx             context.Context    // Lifecycle context for Push safety
	outputChan      chan<- []models.MStockTick
	isRunning       atomic.Bool
	mu              sync.Mutex
}

// -----------------------------------------------------------------------------

func (s *RandomWalkSource) Name() string {
	return s.SourceConfig.Name
}

// -----------------------------------------------------------------------------

func NewRandomWalkSource(cfg *models.MConfig, sourceCfg models.MSourceConfig) *RandomWalkSource {
	openings := make(map[string]float64)
	for _, seed := range cfg.Stocks {
		openings[seed.Ticker] = seed.OpeningPrice
	}

	s := &RandomWalkSource{
		Config:          cfg,
		SourceConfig:    sourceCfg,
		Logger:          logger.NewLogger(cfg.LogLevel, "RandomWalkSource-"+sourceCfg.Name),
		MarketScheduler: utils.NewMarketScheduler(sourceCfg.Symbols, logger.NewLogger(cfg.LogLevel, "MarketScheduler-"+sourceCfg.Name)),
		openings:        openings,
	}
	s.symbols.Store(sourceCfg.Symbols)
	return s
}

// -----------------------------------------------------------------------------

// Start begins the tick generation loop
func (s *RandomWalkSource) Start(parentCtx context.Context, outputChan chan<- []models.MStockTick, wg *sync.WaitGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("source %s is already running", s.Name())
	}

	// Derive a context so we can stop just this source via Stop()
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel
	s.ctx = ctx
	s.outputChan = outputChan
	s.isRunning.Store(true)

	wg.Add(1)
	go s.runLoop(ctx, outputChan, wg)
	s.Logger.Info("Started RandomWalkSource: %s", s.Name())
	return nil
}

// -----------------------------------------------------------------------------

// Stop signals the run loop to exit
func (s *RandomWalkSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() {
		return fmt.Errorf("source %s is not running", s.Name())
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning.Store(false)
	s.Logger.Info("Stopped RandomWalkSource: %s", s.Name())
	return nil
}

// -----------------------------------------------------------------------------

// push sends a tick batch to the manager's channel safely
func (s *RandomWalkSource) push(ticks []models.MStockTick) error {
	if s.outputChan == nil {
		return fmt.Errorf("output channel is nil")
	}

	select {
	case s.outputChan <- ticks:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// -----------------------------------------------------------------------------

// runLoop generates one tick batch per interval
func (s *RandomWalkSource) runLoop(ctx context.Context, outputChan chan<- []models.MStockTick, wg *sync.WaitGroup) {
	defer wg.Done()

	interval := time.Duration(s.Config.Feed.UpdateIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Seeded generator: same seed, same walk. Zero seed means a fresh walk
	// every run.
	seed := uint64(s.SourceConfig.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	// This goroutine is the only writer to the walk state.
	lastPrices := make(map[string]float64)

	// First batch goes out immediately so the board is live before the
	// first interval elapses.
	if err := s.push(s.generate(rng, lastPrices)); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Config.Feed.RespectMarketHours && !s.MarketScheduler.AnyMarketOpen() {
				s.Logger.Debug("All markets are closed. Skipping tick.")
				continue
			}

			if err := s.push(s.generate(rng, lastPrices)); err != nil {
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

// generate advances the walk one step for every symbol
func (s *RandomWalkSource) generate(rng *rand.Rand, lastPrices map[string]float64) []models.MStockTick {
	symbols := s.getSymbols()
	now := time.Now().UTC().Unix()

	ticks := make([]models.MStockTick, 0, len(symbols))
	for _, symbol := range symbols {
		last, ok := lastPrices[symbol]
		if !ok {
			last = s.openings[symbol]
			if last <= 0 {
				s.Logger.Warning("No opening price for %s, skipping.", symbol)
				continue
			}
		}

		step := rng.NormFloat64() * (s.Config.Feed.VolatilityPercent / 100.0)
		price := last * (1.0 + step)

		// Price floor: one cent
		if price < 0.01 {
			price = 0.01
		}

		lastPrices[symbol] = price
		ticks = append(ticks, models.MStockTick{
			Ticker:    symbol,
			Price:     price,
			Timestamp: now,
		})
	}
	return ticks
}

// -----------------------------------------------------------------------------

func (s *RandomWalkSource) UpdateSymbols(symbols []string) error {
	s.symbols.Store(symbols)
	s.MarketScheduler.UpdateSymbols(symbols)
	s.Logger.Info("Updated symbols for %s: %v", s.Name(), symbols)
	return nil
}

// -----------------------------------------------------------------------------

// Symbols returns the current symbol list
func (s *RandomWalkSource) Symbols() []string {
	return s.getSymbols()
}

func (s *RandomWalkSource) getSymbols() []string {
	if v := s.symbols.Load(); v != nil {
		return v.([]string)
	}
	return nil
}
