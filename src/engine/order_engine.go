package engine

import (
	"strings"
	"time"

	"trade-sim/src/analysis/core"
	datasource "trade-sim/src/data_source"
	"trade-sim/src/helpers"
	"trade-sim/src/interfaces"
	"trade-sim/src/ledger"
	"trade-sim/src/logger"
	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------
// OrderEngine executes market orders against the live quote board. All
// validation, pricing and booking for one order happens inside the owning
// account's lock, so the checked balance is the balance the fill debits.
// The database transaction commits before memory changes; a storage failure
// leaves both sides untouched.
// -----------------------------------------------------------------------------

type OrderEngine struct {
	Ledger  *ledger.Ledger
	Market  *datasource.MarketState
	DB      interfaces.IDatabase
	Trading models.MTradingConfig
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewOrderEngine(lg *ledger.Ledger, market *datasource.MarketState,
	db interfaces.IDatabase, trading models.MTradingConfig, l *logger.Logger) *OrderEngine {

	return &OrderEngine{
		Ledger:  lg,
		Market:  market,
		DB:      db,
		Trading: trading,
		Logger:  l,
	}
}

// -----------------------------------------------------------------------------

// ExecuteTrade fills a market order for userID and returns the booked order.
// Rejections (bad input, unknown ticker, insufficient funds or shares) come
// back as business errors with the account unchanged.
func (e *OrderEngine) ExecuteTrade(userID int64, ticker string, quantity int64, side string) (models.MOrder, error) {
	side = strings.ToUpper(strings.TrimSpace(side))
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	if side != models.OrderSideBuy && side != models.OrderSideSell {
		return models.MOrder{}, helpers.NewValidationError("side must be BUY or SELL, got %q", side)
	}
	if quantity <= 0 {
		return models.MOrder{}, helpers.NewValidationError("quantity must be positive, got %d", quantity)
	}
	if e.Trading.MaxOrderQuantity > 0 && quantity > e.Trading.MaxOrderQuantity {
		return models.MOrder{}, helpers.NewValidationError("quantity %d exceeds the per-order limit of %d", quantity, e.Trading.MaxOrderQuantity)
	}

	var booked models.MOrder

	err := e.Ledger.WithAccount(userID, func(acct *ledger.Account) error {
		// Price is read inside the lock: the quote used for validation is
		// the quote the order fills at.
		price, ok := e.Market.Price(ticker)
		if !ok {
			return helpers.NewNotFound("unknown ticker %q", ticker)
		}
		if price <= 0 {
			return helpers.NewValidationError("no live quote for %q yet", ticker)
		}

		order := models.MOrder{
			UserID:                 userID,
			StockTicker:            ticker,
			Side:                   side,
			Quantity:               quantity,
			PricePerShareDollars:   price,
			TotalOrderValueDollars: core.RoundCents(float64(quantity) * price),
			Status:                 models.OrderStatusExecuted,
			CreatedAt:              time.Now().UTC(),
		}

		newCash, err := e.checkAndPrice(acct, order)
		if err != nil {
			return err
		}

		// Project the post-fill holding for the storage transaction.
		var held int64
		var avgCost float64
		if h, ok := acct.Holdings[ticker]; ok {
			held, avgCost = h.Quantity, h.AverageCostPerShareDollars
		}
		newQty, newAvg := ledger.NextPosition(held, avgCost, order.SignedQuantity(), price)

		projected := models.MHolding{
			UserID:                     userID,
			StockTicker:                ticker,
			Quantity:                   newQty,
			AverageCostPerShareDollars: newAvg,
			UpdatedAt:                  order.CreatedAt,
		}

		persisted, err := e.DB.ApplyTrade(order, projected, newQty == 0, newCash)
		if err != nil {
			e.Logger.Error("OrderEngine: Persisting trade for user %d failed: %v", userID, err)
			return helpers.NewDatabaseError("trade could not be recorded", err)
		}

		ledger.ApplyFill(acct, persisted, newCash)
		booked = persisted

		e.Logger.Info("OrderEngine: User %d %s %d %s @ $%.2f (cash $%.2f).",
			userID, side, quantity, ticker, price, newCash)
		return nil
	})

	return booked, err
}

// -----------------------------------------------------------------------------

// checkAndPrice enforces the funding rules and returns the post-fill cash
// balance. BUY needs full cash cover; SELL beyond the held quantity is a
// short and needs shorting enabled.
func (e *OrderEngine) checkAndPrice(acct *ledger.Account, order models.MOrder) (float64, error) {
	var held int64
	if h, ok := acct.Holdings[order.StockTicker]; ok {
		held = h.Quantity
	}

	cash := acct.User.CashBalanceDollars

	switch order.Side {
	case models.OrderSideBuy:
		if order.TotalOrderValueDollars > cash {
			return 0, helpers.NewInsufficientFunds(order.TotalOrderValueDollars, cash)
		}
		return core.RoundCents(cash - order.TotalOrderValueDollars), nil

	default: // SELL
		if held-order.Quantity < 0 && !e.Trading.AllowShort {
			return 0, helpers.NewInsufficientShares(order.Quantity, held)
		}
		return core.RoundCents(cash + order.TotalOrderValueDollars), nil
	}
}
