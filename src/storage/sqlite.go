package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trade-sim/src/helpers"
	"trade-sim/src/logger"
	"trade-sim/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize(seeds []models.MStockSeed) error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		d.Logger.Warning("Failed to enable foreign keys: %v", err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	return d.seedStocks(seeds)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string.
	// Timestamps are stored as unix seconds.
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			cash_balance REAL NOT NULL,
			initial_investment REAL NOT NULL,
			notifications_on INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS stocks (
			stock_id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			opening_price REAL NOT NULL,
			current_price REAL NOT NULL,
			sentiment_score REAL NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS holdings (
			holding_id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(user_id),
			ticker TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			avg_cost REAL NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE (user_id, ticker)
		);`,
		`CREATE TABLE IF NOT EXISTS orders (
			order_id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(user_id),
			ticker TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price_per_share REAL NOT NULL,
			total_value REAL NOT NULL,
			status TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS watchlist (
			user_id INTEGER NOT NULL REFERENCES users(user_id),
			stock_id INTEGER NOT NULL REFERENCES stocks(stock_id),
			ticker TEXT NOT NULL,
			stock_name TEXT NOT NULL,
			target_price REAL NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, stock_id)
		);`,
		`CREATE TABLE IF NOT EXISTS news (
			news_article_id TEXT PRIMARY KEY,
			stock_id INTEGER NOT NULL REFERENCES stocks(stock_id),
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			summary TEXT NOT NULL,
			sentiment_score REAL NOT NULL,
			publication_time INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_news_stock_time ON news (stock_id, publication_time DESC);`,
	}

	for _, query := range queries {
		if _, err := d.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// seedStocks inserts configured instruments that do not exist yet. Existing
// rows keep their prices.
func (d *AsyncSQLiteDB) seedStocks(seeds []models.MStockSeed) error {
	now := time.Now().UTC().Unix()

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO stocks (ticker, name, opening_price, current_price, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (ticker) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range seeds {
		if _, err := stmt.Exec(s.Ticker, s.Name, s.OpeningPrice, s.OpeningPrice, now); err != nil {
			return fmt.Errorf("failed to seed stock %s: %w", s.Ticker, err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CreateUser(user models.MUser) (models.MUser, error) {
	res, err := d.DB.Exec(`
		INSERT INTO users (username, email, password_hash, cash_balance, initial_investment, notifications_on, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, user.Username, user.Email, user.PasswordHash, user.CashBalanceDollars,
		user.InitialInvestmentDollars, boolToInt(user.NotificationsOn),
		user.CreatedAt.Unix(), user.UpdatedAt.Unix())
	if err != nil {
		return models.MUser{}, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.MUser{}, err
	}
	user.UserID = id
	return user, nil
}

// -----------------------------------------------------------------------------

const userColumns = `user_id, username, email, password_hash, cash_balance, initial_investment, notifications_on, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (models.MUser, error) {
	var u models.MUser
	var notif int
	var created, updated int64

	err := row.Scan(&u.UserID, &u.Username, &u.Email, &u.PasswordHash,
		&u.CashBalanceDollars, &u.InitialInvestmentDollars, &notif, &created, &updated)
	if err != nil {
		return models.MUser{}, err
	}

	u.NotificationsOn = notif != 0
	u.CreatedAt = time.Unix(created, 0).UTC()
	u.UpdatedAt = time.Unix(updated, 0).UTC()
	return u, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) GetUserByEmail(email string) (models.MUser, error) {
	row := d.DB.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MUser{}, helpers.NewNotFound("no user with email %s", email)
	}
	return u, err
}

func (d *AsyncSQLiteDB) GetUserByID(userID int64) (models.MUser, error) {
	row := d.DB.QueryRow(`SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MUser{}, helpers.NewNotFound("user %d not found", userID)
	}
	return u, err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) UpdateUserSettings(userID int64, settings models.MUserSettings) (models.MUser, error) {
	now := time.Now().UTC()

	_, err := d.DB.Exec(`UPDATE users SET notifications_on = ?, updated_at = ? WHERE user_id = ?`,
		boolToInt(settings.NotificationsOn), now.Unix(), userID)
	if err != nil {
		return models.MUser{}, fmt.Errorf("failed to update user settings: %w", err)
	}

	return d.GetUserByID(userID)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) ListUsers() ([]models.MUser, error) {
	rows, err := d.DB.Query(`SELECT ` + userColumns + ` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.MUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// -----------------------------------------------------------------------------
// Stocks
// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) ListStocks() ([]models.MStock, error) {
	rows, err := d.DB.Query(`
		SELECT stock_id, ticker, name, opening_price, current_price, sentiment_score, updated_at
		FROM stocks ORDER BY stock_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []models.MStock
	for rows.Next() {
		var s models.MStock
		var updated int64
		if err := rows.Scan(&s.StockID, &s.Ticker, &s.Name, &s.OpeningPriceDollars,
			&s.CurrentPriceDollars, &s.OverallSentimentScore, &updated); err != nil {
			return nil, err
		}
		s.UpdatedAt = time.Unix(updated, 0).UTC()
		s.ChangedPriceDollars = s.CurrentPriceDollars - s.OpeningPriceDollars
		if s.OpeningPriceDollars != 0 {
			s.ChangedPercent = s.ChangedPriceDollars / s.OpeningPriceDollars * 100
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) UpdateStockPrices(stocks []models.MStock) error {
	if len(stocks) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE stocks SET current_price = ?, updated_at = ? WHERE stock_id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range stocks {
		if _, err := stmt.Exec(s.CurrentPriceDollars, s.UpdatedAt.Unix(), s.StockID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) UpdateStockSentiment(stockID int64, score float64) error {
	_, err := d.DB.Exec(`UPDATE stocks SET sentiment_score = ? WHERE stock_id = ?`, score, stockID)
	return err
}

// -----------------------------------------------------------------------------
// Trades
// -----------------------------------------------------------------------------

// ApplyTrade commits the order, its holding effect and the cash change in
// one transaction.
func (d *AsyncSQLiteDB) ApplyTrade(order models.MOrder, holding models.MHolding, removeHolding bool, newCash float64) (models.MOrder, error) {
	tx, err := d.DB.Begin()
	if err != nil {
		return models.MOrder{}, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO orders (user_id, ticker, side, quantity, price_per_share, total_value, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, order.UserID, order.StockTicker, order.Side, order.Quantity,
		order.PricePerShareDollars, order.TotalOrderValueDollars,
		order.Status, order.Notes, order.CreatedAt.Unix())
	if err != nil {
		return models.MOrder{}, fmt.Errorf("failed to insert order: %w", err)
	}

	orderID, err := res.LastInsertId()
	if err != nil {
		return models.MOrder{}, err
	}

	if removeHolding {
		if _, err := tx.Exec(`DELETE FROM holdings WHERE user_id = ? AND ticker = ?`,
			holding.UserID, holding.StockTicker); err != nil {
			return models.MOrder{}, fmt.Errorf("failed to remove holding: %w", err)
		}
	} else {
		if _, err := tx.Exec(`
			INSERT INTO holdings (user_id, ticker, quantity, avg_cost, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (user_id, ticker) DO UPDATE SET
				quantity = excluded.quantity,
				avg_cost = excluded.avg_cost,
				updated_at = excluded.updated_at
		`, holding.UserID, holding.StockTicker, holding.Quantity,
			holding.AverageCostPerShareDollars, holding.UpdatedAt.Unix()); err != nil {
			return models.MOrder{}, fmt.Errorf("failed to upsert holding: %w", err)
		}
	}

	if _, err := tx.Exec(`UPDATE users SET cash_balance = ?, updated_at = ? WHERE user_id = ?`,
		newCash, order.CreatedAt.Unix(), order.UserID); err != nil {
		return models.MOrder{}, fmt.Errorf("failed to update cash balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.MOrder{}, err
	}

	order.OrderID = orderID
	return order, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) ListOrders(userID int64) ([]models.MOrder, error) {
	rows, err := d.DB.Query(`
		SELECT order_id, user_id, ticker, side, quantity, price_per_share, total_value, status, notes, created_at
		FROM orders WHERE user_id = ? ORDER BY created_at DESC, order_id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.MOrder
	for rows.Next() {
		var o models.MOrder
		var created int64
		if err := rows.Scan(&o.OrderID, &o.UserID, &o.StockTicker, &o.Side, &o.Quantity,
			&o.PricePerShareDollars, &o.TotalOrderValueDollars, &o.Status, &o.Notes, &created); err != nil {
			return nil, err
		}
		o.CreatedAt = time.Unix(created, 0).UTC()
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) ListHoldings(userID int64) ([]models.MHolding, error) {
	return d.queryHoldings(`
		SELECT holding_id, user_id, ticker, quantity, avg_cost, updated_at
		FROM holdings WHERE user_id = ? ORDER BY ticker
	`, userID)
}

func (d *AsyncSQLiteDB) ListAllHoldings() ([]models.MHolding, error) {
	return d.queryHoldings(`
		SELECT holding_id, user_id, ticker, quantity, avg_cost, updated_at
		FROM holdings ORDER BY user_id, ticker
	`)
}

func (d *AsyncSQLiteDB) queryHoldings(query string, args ...interface{}) ([]models.MHolding, error) {
	rows, err := d.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []models.MHolding
	for rows.Next() {
		var h models.MHolding
		var updated int64
		if err := rows.Scan(&h.HoldingID, &h.UserID, &h.StockTicker, &h.Quantity,
			&h.AverageCostPerShareDollars, &updated); err != nil {
			return nil, err
		}
		h.UpdatedAt = time.Unix(updated, 0).UTC()
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// -----------------------------------------------------------------------------
// Watchlist
// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveWatchlistEntry(entry models.MStockWatchlist) error {
	_, err := d.DB.Exec(`
		INSERT INTO watchlist (user_id, stock_id, ticker, stock_name, target_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, stock_id) DO UPDATE SET
			target_price = excluded.target_price,
			created_at = excluded.created_at
	`, entry.UserID, entry.StockId, entry.StockTicker, entry.StockName,
		entry.TargetPriceDollars, entry.CreatedAt.Unix())
	return err
}

func (d *AsyncSQLiteDB) DeleteWatchlistEntry(userID, stockID int64) error {
	_, err := d.DB.Exec(`DELETE FROM watchlist WHERE user_id = ? AND stock_id = ?`, userID, stockID)
	return err
}

func (d *AsyncSQLiteDB) ListWatchlist(userID int64) ([]models.MStockWatchlist, error) {
	return d.queryWatchlist(`
		SELECT user_id, stock_id, ticker, stock_name, target_price, created_at
		FROM watchlist WHERE user_id = ? ORDER BY stock_id
	`, userID)
}

func (d *AsyncSQLiteDB) ListAllWatchlists() ([]models.MStockWatchlist, error) {
	return d.queryWatchlist(`
		SELECT user_id, stock_id, ticker, stock_name, target_price, created_at
		FROM watchlist ORDER BY user_id, stock_id
	`)
}

func (d *AsyncSQLiteDB) queryWatchlist(query string, args ...interface{}) ([]models.MStockWatchlist, error) {
	rows, err := d.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.MStockWatchlist
	for rows.Next() {
		var e models.MStockWatchlist
		var created int64
		if err := rows.Scan(&e.UserID, &e.StockId, &e.StockTicker, &e.StockName,
			&e.TargetPriceDollars, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		e.Active = true
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// -----------------------------------------------------------------------------
// News
// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) InsertNews(articles []models.MNewsArticle) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO news (news_article_id, stock_id, title, url, summary, sentiment_score, publication_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range articles {
		if _, err := stmt.Exec(a.NewsArticleID, a.StockID, a.ArticleTitle, a.ArticleURL,
			a.ArticleSummary, a.SentimentScore, a.PublicationTime.Unix()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) ListNewsPage(stockID int64, page, pageSize int) ([]models.MNewsArticle, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := d.DB.Query(`
		SELECT news_article_id, stock_id, title, url, summary, sentiment_score, publication_time
		FROM news WHERE stock_id = ?
		ORDER BY publication_time DESC, news_article_id
		LIMIT ? OFFSET ?
	`, stockID, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []models.MNewsArticle
	for rows.Next() {
		var a models.MNewsArticle
		var published int64
		if err := rows.Scan(&a.NewsArticleID, &a.StockID, &a.ArticleTitle, &a.ArticleURL,
			&a.ArticleSummary, &a.SentimentScore, &published); err != nil {
			return nil, err
		}
		a.PublicationTime = time.Unix(published, 0).UTC()
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldNews() error {
	retentionDays := d.Config.Storage.NewsRetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	res, err := d.DB.Exec(`DELETE FROM news WHERE publication_time < ?`, cutoff)
	if err != nil {
		d.Logger.Error("Cleanup news error: %v", err)
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.Logger.Info("Cleaned up %d news articles older than %d days.", n, retentionDays)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
