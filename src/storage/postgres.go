package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trade-sim/src/helpers"
	"trade-sim/src/logger"
	"trade-sim/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	// Schema name follows the executable so several deployments can share
	// one database.
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize(seeds []models.MStockSeed) error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	// The database container may still be coming up.
	if err := helpers.RetryWithBackoff("postgres ping", 5, 2*time.Second, db.Ping); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	if err := d.seedStocks(seeds); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table(name string) string {
	return fmt.Sprintf(`"%s".%s`, d.Schema, name)
}

func (d *PostgresDB) createTables() error {
	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			user_id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			cash_balance DOUBLE PRECISION NOT NULL,
			initial_investment DOUBLE PRECISION NOT NULL,
			notifications_on BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		);`, d.table("users")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			stock_id BIGSERIAL PRIMARY KEY,
			ticker TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			opening_price DOUBLE PRECISION NOT NULL,
			current_price DOUBLE PRECISION NOT NULL,
			sentiment_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at BIGINT NOT NULL
		);`, d.table("stocks")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			holding_id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			ticker TEXT NOT NULL,
			quantity BIGINT NOT NULL,
			avg_cost DOUBLE PRECISION NOT NULL,
			updated_at BIGINT NOT NULL,
			UNIQUE (user_id, ticker)
		);`, d.table("holdings")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			order_id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			ticker TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity BIGINT NOT NULL,
			price_per_share DOUBLE PRECISION NOT NULL,
			total_value DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		);`, d.table("orders")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_orders_user ON %s (user_id, created_at DESC);`, d.table("orders")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			user_id BIGINT NOT NULL,
			stock_id BIGINT NOT NULL,
			ticker TEXT NOT NULL,
			stock_name TEXT NOT NULL,
			target_price DOUBLE PRECISION NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (user_id, stock_id)
		);`, d.table("watchlist")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			news_article_id TEXT PRIMARY KEY,
			stock_id BIGINT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			summary TEXT NOT NULL,
			sentiment_score DOUBLE PRECISION NOT NULL,
			publication_time BIGINT NOT NULL
		);`, d.table("news")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_news_stock_time ON %s (stock_id, publication_time DESC);`, d.table("news")),
	}

	for _, query := range queries {
		if _, err := d.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) seedStocks(seeds []models.MStockSeed) error {
	now := time.Now().UTC().Unix()

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (ticker, name, opening_price, current_price, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ticker) DO NOTHING
	`, d.table("stocks"))

	stmt, err := tx.Prepare(query)
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

func (d *PostgresDB) CreateUser(user models.MUser) (models.MUser, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (username, email, password_hash, cash_balance, initial_investment, notifications_on, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING user_id
	`, d.table("users"))

	err := d.DB.QueryRow(query, user.Username, user.Email, user.PasswordHash,
		user.CashBalanceDollars, user.InitialInvestmentDollars, user.NotificationsOn,
		user.CreatedAt.Unix(), user.UpdatedAt.Unix()).Scan(&user.UserID)
	if err != nil {
		return models.MUser{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) scanUserRow(row interface{ Scan(...interface{}) error }) (models.MUser, error) {
	var u models.MUser
	var created, updated int64

	err := row.Scan(&u.UserID, &u.Username, &u.Email, &u.PasswordHash,
		&u.CashBalanceDollars, &u.InitialInvestmentDollars, &u.NotificationsOn, &created, &updated)
	if err != nil {
		return models.MUser{}, err
	}

	u.CreatedAt = time.Unix(created, 0).UTC()
	u.UpdatedAt = time.Unix(updated, 0).UTC()
	return u, nil
}

func (d *PostgresDB) GetUserByEmail(email string) (models.MUser, error) {
	query := fmt.Sprintf(`SELECT `+userColumns+` FROM %s WHERE email = $1`, d.table("users"))
	u, err := d.scanUserRow(d.DB.QueryRow(query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return models.MUser{}, helpers.NewNotFound("no user with email %s", email)
	}
	return u, err
}

func (d *PostgresDB) GetUserByID(userID int64) (models.MUser, error) {
	query := fmt.Sprintf(`SELECT `+userColumns+` FROM %s WHERE user_id = $1`, d.table("users"))
	u, err := d.scanUserRow(d.DB.QueryRow(query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.MUser{}, helpers.NewNotFound("user %d not found", userID)
	}
	return u, err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) UpdateUserSettings(userID int64, settings models.MUserSettings) (models.MUser, error) {
	query := fmt.Sprintf(`UPDATE %s SET notifications_on = $1, updated_at = $2 WHERE user_id = $3`, d.table("users"))
	if _, err := d.DB.Exec(query, settings.NotificationsOn, time.Now().UTC().Unix(), userID); err != nil {
		return models.MUser{}, fmt.Errorf("failed to update user settings: %w", err)
	}
	return d.GetUserByID(userID)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ListUsers() ([]models.MUser, error) {
	query := fmt.Sprintf(`SELECT `+userColumns+` FROM %s ORDER BY user_id`, d.table("users"))
	rows, err := d.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.MUser
	for rows.Next() {
		u, err := d.scanUserRow(rows)
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

func (d *PostgresDB) ListStocks() ([]models.MStock, error) {
	query := fmt.Sprintf(`
		SELECT stock_id, ticker, name, opening_price, current_price, sentiment_score, updated_at
		FROM %s ORDER BY stock_id
	`, d.table("stocks"))

	rows, err := d.DB.Query(query)
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

func (d *PostgresDB) UpdateStockPrices(stocks []models.MStock) error {
	if len(stocks) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`UPDATE %s SET current_price = $1, updated_at = $2 WHERE stock_id = $3`, d.table("stocks"))
	stmt, err := tx.Prepare(query)
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

func (d *PostgresDB) UpdateStockSentiment(stockID int64, score float64) error {
	query := fmt.Sprintf(`UPDATE %s SET sentiment_score = $1 WHERE stock_id = $2`, d.table("stocks"))
	_, err := d.DB.Exec(query, score, stockID)
	return err
}

// -----------------------------------------------------------------------------
// Trades
// -----------------------------------------------------------------------------

func (d *PostgresDB) ApplyTrade(order models.MOrder, holding models.MHolding, removeHolding bool, newCash float64) (models.MOrder, error) {
	tx, err := d.DB.Begin()
	if err != nil {
		return models.MOrder{}, err
	}
	defer tx.Rollback()

	insertOrder := fmt.Sprintf(`
		INSERT INTO %s (user_id, ticker, side, quantity, price_per_share, total_value, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING order_id
	`, d.table("orders"))

	err = tx.QueryRow(insertOrder, order.UserID, order.StockTicker, order.Side, order.Quantity,
		order.PricePerShareDollars, order.TotalOrderValueDollars,
		order.Status, order.Notes, order.CreatedAt.Unix()).Scan(&order.OrderID)
	if err != nil {
		return models.MOrder{}, fmt.Errorf("failed to insert order: %w", err)
	}

	if removeHolding {
		del := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND ticker = $2`, d.table("holdings"))
		if _, err := tx.Exec(del, holding.UserID, holding.StockTicker); err != nil {
			return models.MOrder{}, fmt.Errorf("failed to remove holding: %w", err)
		}
	} else {
		upsert := fmt.Sprintf(`
			INSERT INTO %s (user_id, ticker, quantity, avg_cost, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, ticker) DO UPDATE SET
				quantity = excluded.quantity,
				avg_cost = excluded.avg_cost,
				updated_at = excluded.updated_at
		`, d.table("holdings"))
		if _, err := tx.Exec(upsert, holding.UserID, holding.StockTicker, holding.Quantity,
			holding.AverageCostPerShareDollars, holding.UpdatedAt.Unix()); err != nil {
			return models.MOrder{}, fmt.Errorf("failed to upsert holding: %w", err)
		}
	}

	updateCash := fmt.Sprintf(`UPDATE %s SET cash_balance = $1, updated_at = $2 WHERE user_id = $3`, d.table("users"))
	if _, err := tx.Exec(updateCash, newCash, order.CreatedAt.Unix(), order.UserID); err != nil {
		return models.MOrder{}, fmt.Errorf("failed to update cash balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.MOrder{}, err
	}
	return order, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ListOrders(userID int64) ([]models.MOrder, error) {
	query := fmt.Sprintf(`
		SELECT order_id, user_id, ticker, side, quantity, price_per_share, total_value, status, notes, created_at
		FROM %s WHERE user_id = $1 ORDER BY created_at DESC, order_id DESC
	`, d.table("orders"))

	rows, err := d.DB.Query(query, userID)
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

func (d *PostgresDB) ListHoldings(userID int64) ([]models.MHolding, error) {
	query := fmt.Sprintf(`
		SELECT holding_id, user_id, ticker, quantity, avg_cost, updated_at
		FROM %s WHERE user_id = $1 ORDER BY ticker
	`, d.table("holdings"))
	return d.queryHoldings(query, userID)
}

func (d *PostgresDB) ListAllHoldings() ([]models.MHolding, error) {
	query := fmt.Sprintf(`
		SELECT holding_id, user_id, ticker, quantity, avg_cost, updated_at
		FROM %s ORDER BY user_id, ticker
	`, d.table("holdings"))
	return d.queryHoldings(query)
}

func (d *PostgresDB) queryHoldings(query string, args ...interface{}) ([]models.MHolding, error) {
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

func (d *PostgresDB) SaveWatchlistEntry(entry models.MStockWatchlist) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, stock_id, ticker, stock_name, target_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, stock_id) DO UPDATE SET
			target_price = excluded.target_price,
			created_at = excluded.created_at
	`, d.table("watchlist"))
	_, err := d.DB.Exec(query, entry.UserID, entry.StockId, entry.StockTicker,
		entry.StockName, entry.TargetPriceDollars, entry.CreatedAt.Unix())
	return err
}

func (d *PostgresDB) DeleteWatchlistEntry(userID, stockID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND stock_id = $2`, d.table("watchlist"))
	_, err := d.DB.Exec(query, userID, stockID)
	return err
}

func (d *PostgresDB) ListWatchlist(userID int64) ([]models.MStockWatchlist, error) {
	query := fmt.Sprintf(`
		SELECT user_id, stock_id, ticker, stock_name, target_price, created_at
		FROM %s WHERE user_id = $1 ORDER BY stock_id
	`, d.table("watchlist"))
	return d.queryWatchlist(query, userID)
}

func (d *PostgresDB) ListAllWatchlists() ([]models.MStockWatchlist, error) {
	query := fmt.Sprintf(`
		SELECT user_id, stock_id, ticker, stock_name, target_price, created_at
		FROM %s ORDER BY user_id, stock_id
	`, d.table("watchlist"))
	return d.queryWatchlist(query)
}

func (d *PostgresDB) queryWatchlist(query string, args ...interface{}) ([]models.MStockWatchlist, error) {
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

func (d *PostgresDB) InsertNews(articles []models.MNewsArticle) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (news_article_id, stock_id, title, url, summary, sentiment_score, publication_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.table("news"))

	stmt, err := tx.Prepare(query)
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

func (d *PostgresDB) ListNewsPage(stockID int64, page, pageSize int) ([]models.MNewsArticle, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT news_article_id, stock_id, title, url, summary, sentiment_score, publication_time
		FROM %s WHERE stock_id = $1
		ORDER BY publication_time DESC, news_article_id
		LIMIT $2 OFFSET $3
	`, d.table("news"))

	rows, err := d.DB.Query(query, stockID, pageSize, offset)
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

func (d *PostgresDB) CleanupOldNews() error {
	retentionDays := d.Config.Storage.NewsRetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	query := fmt.Sprintf(`DELETE FROM %s WHERE publication_time < $1`, d.table("news"))
	res, err := d.DB.Exec(query, cutoff)
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

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
