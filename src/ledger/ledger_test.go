package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-sim/src/logger"
	"trade-sim/src/models"
)

func newTestLedger() *Ledger {
	return NewLedger(logger.NewLogger("ERROR", "test"))
}

// -----------------------------------------------------------------------------

func TestNextPositionOpenAndGrow(t *testing.T) {
	qty, avg := NextPosition(0, 0, 10, 100)
	assert.Equal(t, int64(10), qty)
	assert.Equal(t, 100.0, avg)

	// Buying 10 more at 120 re-weights the basis to 110.
	qty, avg = NextPosition(qty, avg, 10, 120)
	assert.Equal(t, int64(20), qty)
	assert.Equal(t, 110.0, avg)
}

func TestNextPositionReduceKeepsBasis(t *testing.T) {
	qty, avg := NextPosition(20, 110, -5, 150)
	assert.Equal(t, int64(15), qty)
	assert.Equal(t, 110.0, avg)
}

func TestNextPositionCloseResetsBasis(t *testing.T) {
	qty, avg := NextPosition(10, 100, -10, 150)
	assert.Equal(t, int64(0), qty)
	assert.Equal(t, 0.0, avg)
}

func TestNextPositionFlipThroughZero(t *testing.T) {
	// Long 10 at 100, sell 15 at 130: surviving short leg opened at 130.
	qty, avg := NextPosition(10, 100, -15, 130)
	assert.Equal(t, int64(-5), qty)
	assert.Equal(t, 130.0, avg)
}

func TestNextPositionGrowShort(t *testing.T) {
	qty, avg := NextPosition(-10, 100, -10, 80)
	assert.Equal(t, int64(-20), qty)
	assert.Equal(t, 90.0, avg)
}

// -----------------------------------------------------------------------------

func TestRegisterAndSnapshot(t *testing.T) {
	lg := newTestLedger()
	lg.Register(models.MUser{UserID: 7, Username: "alice", CashBalanceDollars: 10000})

	user, holdings, err := lg.SnapshotUser(7)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, holdings)

	_, _, err = lg.SnapshotUser(99)
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestApplyFillCreatesAndRemovesHoldings(t *testing.T) {
	lg := newTestLedger()
	lg.Register(models.MUser{UserID: 1, CashBalanceDollars: 10000})

	now := time.Now().UTC()
	buy := models.MOrder{
		UserID: 1, StockTicker: "AAPL", Side: models.OrderSideBuy,
		Quantity: 10, PricePerShareDollars: 100, CreatedAt: now,
	}

	err := lg.WithAccount(1, func(acct *Account) error {
		h := ApplyFill(acct, buy, 9000)
		require.NotNil(t, h)
		assert.Equal(t, int64(10), h.Quantity)
		assert.Equal(t, 100.0, h.AverageCostPerShareDollars)
		assert.Equal(t, 9000.0, acct.User.CashBalanceDollars)
		return nil
	})
	require.NoError(t, err)

	sell := models.MOrder{
		UserID: 1, StockTicker: "AAPL", Side: models.OrderSideSell,
		Quantity: 10, PricePerShareDollars: 110, CreatedAt: now,
	}

	err = lg.WithAccount(1, func(acct *Account) error {
		h := ApplyFill(acct, sell, 10100)
		assert.Nil(t, h)
		assert.Empty(t, acct.Holdings)
		assert.Equal(t, 10100.0, acct.User.CashBalanceDollars)
		return nil
	})
	require.NoError(t, err)
}

// -----------------------------------------------------------------------------

func TestWithAccountSerializesMutations(t *testing.T) {
	lg := newTestLedger()
	lg.Register(models.MUser{UserID: 1, CashBalanceDollars: 0})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = lg.WithAccount(1, func(acct *Account) error {
				acct.User.CashBalanceDollars++
				return nil
			})
		}()
	}
	wg.Wait()

	user, _, err := lg.SnapshotUser(1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, user.CashBalanceDollars)
}
