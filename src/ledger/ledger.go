package ledger

import (
	"sync"

	"trade-sim/src/analysis/core"
	"trade-sim/src/helpers"
	"trade-sim/src/interfaces"
	"trade-sim/src/logger"
	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------
// Ledger is the in-memory book of record for all accounts. Every mutation of
// a user's cash or positions happens inside that account's lock, so a single
// account only ever changes serially while distinct accounts proceed in
// parallel. The database row is written before the in-memory state, making
// memory a cache of durable truth rather than the other way around.
// -----------------------------------------------------------------------------

type Account struct {
	mu sync.Mutex

	User     models.MUser
	Holdings map[string]*models.MHolding // keyed by ticker
}

type Ledger struct {
	mu       sync.RWMutex
	accounts map[int64]*Account

	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewLedger(l *logger.Logger) *Ledger {
	return &Ledger{
		accounts: make(map[int64]*Account),
		Logger:   l,
	}
}

// -----------------------------------------------------------------------------

// LoadFromStorage warms the ledger from persisted users and holdings.
func (lg *Ledger) LoadFromStorage(db interfaces.IDatabase) error {
	users, err := db.ListUsers()
	if err != nil {
		return err
	}

	holdings, err := db.ListAllHoldings()
	if err != nil {
		return err
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()

	for _, u := range users {
		lg.accounts[u.UserID] = &Account{
			User:     u,
			Holdings: make(map[string]*models.MHolding),
		}
	}

	attached := 0
	for i := range holdings {
		h := holdings[i]
		acct, ok := lg.accounts[h.UserID]
		if !ok {
			lg.Logger.Warning("Ledger: Holding %d references unknown user %d, skipping.", h.HoldingID, h.UserID)
			continue
		}
		copied := h
		acct.Holdings[h.StockTicker] = &copied
		attached++
	}

	lg.Logger.Info("Ledger: Loaded %d accounts and %d holdings.", len(lg.accounts), attached)
	return nil
}

// -----------------------------------------------------------------------------

// Register adds a freshly created user to the ledger.
func (lg *Ledger) Register(user models.MUser) {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	lg.accounts[user.UserID] = &Account{
		User:     user,
		Holdings: make(map[string]*models.MHolding),
	}
}

// -----------------------------------------------------------------------------

func (lg *Ledger) account(userID int64) (*Account, error) {
	lg.mu.RLock()
	acct, ok := lg.accounts[userID]
	lg.mu.RUnlock()

	if !ok {
		return nil, helpers.NewNotFound("user %d not found", userID)
	}
	return acct, nil
}

// WithAccount runs fn while holding the account's lock. fn sees and may
// mutate the live account state; it must not call back into the ledger for
// the same user.
func (lg *Ledger) WithAccount(userID int64, fn func(acct *Account) error) error {
	acct, err := lg.account(userID)
	if err != nil {
		return err
	}

	acct.mu.Lock()
	defer acct.mu.Unlock()
	return fn(acct)
}

// -----------------------------------------------------------------------------

// UserIDs returns the IDs of every registered account.
func (lg *Ledger) UserIDs() []int64 {
	lg.mu.RLock()
	defer lg.mu.RUnlock()

	ids := make([]int64, 0, len(lg.accounts))
	for id := range lg.accounts {
		ids = append(ids, id)
	}
	return ids
}

// -----------------------------------------------------------------------------

// SnapshotUser returns a consistent copy of the account: the user row plus
// its holdings, taken under the account lock so cash and positions cohere.
func (lg *Ledger) SnapshotUser(userID int64) (models.MUser, []models.MHolding, error) {
	var user models.MUser
	var holdings []models.MHolding

	err := lg.WithAccount(userID, func(acct *Account) error {
		user = acct.User
		holdings = make([]models.MHolding, 0, len(acct.Holdings))
		for _, h := range acct.Holdings {
			holdings = append(holdings, *h)
		}
		return nil
	})
	return user, holdings, err
}

// -----------------------------------------------------------------------------

// UpdateSettings mirrors a persisted settings change into the account.
func (lg *Ledger) UpdateSettings(userID int64, updated models.MUser) error {
	return lg.WithAccount(userID, func(acct *Account) error {
		acct.User.NotificationsOn = updated.NotificationsOn
		acct.User.UpdatedAt = updated.UpdatedAt
		return nil
	})
}

// -----------------------------------------------------------------------------
// Fill application
// -----------------------------------------------------------------------------

// ApplyFill mutates an account for one executed order. The caller must hold
// the account lock (i.e. call this inside WithAccount) and must have already
// persisted the trade. Average cost follows the weighted-average rule: a
// fill that grows the absolute position re-weights the cost, a fill that
// shrinks it leaves the cost untouched, and a fill through zero restarts the
// basis at the fill price.
func ApplyFill(acct *Account, order models.MOrder, newCash float64) *models.MHolding {
	acct.User.CashBalanceDollars = newCash
	acct.User.UpdatedAt = order.CreatedAt

	h, ok := acct.Holdings[order.StockTicker]
	if !ok {
		h = &models.MHolding{
			UserID:      acct.User.UserID,
			StockTicker: order.StockTicker,
		}
		acct.Holdings[order.StockTicker] = h
	}

	h.Quantity, h.AverageCostPerShareDollars = NextPosition(
		h.Quantity, h.AverageCostPerShareDollars,
		order.SignedQuantity(), order.PricePerShareDollars,
	)
	h.UpdatedAt = order.CreatedAt

	if h.Quantity == 0 {
		delete(acct.Holdings, order.StockTicker)
		return nil
	}
	return h
}

// -----------------------------------------------------------------------------

// NextPosition folds one signed fill into a signed position and returns the
// resulting quantity and average cost.
func NextPosition(qty int64, avgCost float64, fillQty int64, fillPrice float64) (int64, float64) {
	newQty := qty + fillQty
	if newQty == 0 {
		return 0, 0
	}

	switch {
	case qty == 0 || sameSign(qty, fillQty):
		// Position opened or grown: weighted average of old basis and fill.
		total := float64(abs(qty))*avgCost + float64(abs(fillQty))*fillPrice
		return newQty, core.RoundCents(total / float64(abs(newQty)))
	case sameSign(qty, newQty):
		// Position reduced without flipping: basis unchanged.
		return newQty, avgCost
	default:
		// Flipped through zero: the surviving leg was opened at the fill price.
		return newQty, fillPrice
	}
}

func sameSign(a, b int64) bool {
	return (a > 0) == (b > 0)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
