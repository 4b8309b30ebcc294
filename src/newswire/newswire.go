package newswire

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	datasource "trade-sim/src/data_source"
	"trade-sim/src/interfaces"
	"trade-sim/src/logger"
	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------
// NewsWire emits synthetic market news. Each cycle every instrument draws
// zero to two articles; headline, summary and sentiment score are drawn
// together so the text agrees with the score. Articles are persisted, pushed
// to the streaming layer and folded into the instrument's sentiment
// aggregate in one pass.
// -----------------------------------------------------------------------------

type NewsWire struct {
	Config *models.MConfig
	Market *datasource.MarketState
	DB     interfaces.IDatabase
	Logger *logger.Logger

	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// headline templates per sentiment band. %s is the company name.
type template struct {
	title   string
	summary string
	low     float64 // sentiment drawn uniformly from [low, high]
	high    float64
}

var templates = []template{
	{"%s beats quarterly earnings expectations",
		"%s reported revenue and profit above analyst consensus, citing strong demand.",
		0.45, 0.9},
	{"%s announces expansion into new markets",
		"%s unveiled plans to enter additional regions over the coming year.",
		0.25, 0.65},
	{"Analysts raise price target on %s",
		"Several brokerages lifted their targets on %s following upbeat guidance.",
		0.3, 0.7},
	{"%s trading flat as investors await guidance",
		"Shares of %s were little changed ahead of the next earnings call.",
		-0.15, 0.15},
	{"Mixed session for %s amid broader market swings",
		"%s tracked the wider index with no company-specific catalyst.",
		-0.2, 0.2},
	{"%s faces supply chain headwinds",
		"%s warned that component shortages may weigh on next quarter's output.",
		-0.6, -0.2},
	{"Regulators open inquiry into %s",
		"Authorities requested documents from %s as part of an industry review.",
		-0.8, -0.35},
	{"%s misses revenue estimates",
		"%s posted quarterly revenue below consensus, pressuring the stock.",
		-0.9, -0.45},
}

// -----------------------------------------------------------------------------

func NewNewsWire(cfg *models.MConfig, market *datasource.MarketState,
	db interfaces.IDatabase, l *logger.Logger) *NewsWire {

	return &NewsWire{
		Config: cfg,
		Market: market,
		DB:     db,
		Logger: l,
	}
}

// -----------------------------------------------------------------------------

// Start launches the generation loop. Articles land on newsChan in batches.
func (nw *NewsWire) Start(parentCtx context.Context, newsChan chan<- []models.MNewsArticle, wg *sync.WaitGroup) error {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	if nw.cancelFunc != nil {
		return fmt.Errorf("newswire is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	nw.cancelFunc = cancel

	wg.Add(1)
	go nw.runLoop(ctx, newsChan, wg)
	nw.Logger.Info("NewsWire started (every %d minutes).", nw.Config.Feed.NewsIntervalMinutes)
	return nil
}

// Stop halts the generation loop.
func (nw *NewsWire) Stop() {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	if nw.cancelFunc != nil {
		nw.cancelFunc()
		nw.cancelFunc = nil
	}
}

// -----------------------------------------------------------------------------

func (nw *NewsWire) runLoop(ctx context.Context, newsChan chan<- []models.MNewsArticle, wg *sync.WaitGroup) {
	defer wg.Done()

	interval := time.Duration(nw.Config.Feed.NewsIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xda3e39cb94b95bdb))

	// One batch on startup so fresh installs are not silent for a full
	// interval.
	nw.emit(ctx, rng, newsChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nw.emit(ctx, rng, newsChan)
		}
	}
}

// -----------------------------------------------------------------------------

// emit generates, persists and publishes one batch.
func (nw *NewsWire) emit(ctx context.Context, rng *rand.Rand, newsChan chan<- []models.MNewsArticle) {
	batch := nw.Generate(rng)
	if len(batch) == 0 {
		return
	}

	if err := nw.DB.InsertNews(batch); err != nil {
		nw.Logger.Error("NewsWire: Persisting %d articles failed: %v", len(batch), err)
		return
	}

	// Fold each article into its instrument's aggregate.
	for _, article := range batch {
		stock, ok := nw.Market.StockByID(article.StockID)
		if !ok {
			continue
		}
		score, ok := nw.Market.ApplySentiment(stock.Ticker, article.SentimentScore)
		if !ok {
			continue
		}
		if err := nw.DB.UpdateStockSentiment(article.StockID, score); err != nil {
			nw.Logger.Error("NewsWire: Persisting sentiment for stock %d failed: %v", article.StockID, err)
		}
	}

	select {
	case newsChan <- batch:
	case <-ctx.Done():
	}

	nw.Logger.Info("NewsWire: Published %d articles.", len(batch))
}

// -----------------------------------------------------------------------------

// Generate draws this cycle's articles without side effects.
func (nw *NewsWire) Generate(rng *rand.Rand) []models.MNewsArticle {
	now := time.Now().UTC()

	var batch []models.MNewsArticle
	for _, stock := range nw.Market.List() {
		// 0, 1 or 2 articles per instrument per cycle, biased toward 0.
		count := 0
		switch roll := rng.Float64(); {
		case roll > 0.85:
			count = 2
		case roll > 0.45:
			count = 1
		}

		for i := 0; i < count; i++ {
			tpl := templates[rng.IntN(len(templates))]
			score := tpl.low + rng.Float64()*(tpl.high-tpl.low)
			id := uuid.NewString()

			batch = append(batch, models.MNewsArticle{
				NewsArticleID:   id,
				StockID:         stock.StockID,
				ArticleTitle:    fmt.Sprintf(tpl.title, stock.Name),
				ArticleURL:      "https://news.trade-sim.local/articles/" + id,
				ArticleSummary:  fmt.Sprintf(tpl.summary, stock.Name),
				SentimentScore:  score,
				PublicationTime: now,
			})
		}
	}
	return batch
}
