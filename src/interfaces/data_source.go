package interfaces

import (
	"context"
	"sync"

	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------
// IPriceSource interface for components that produce price ticks.
// -----------------------------------------------------------------------------

type IPriceSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// Symbols returns the tickers this source currently produces.
	Symbols() []string

	// -----------------------------------------------------------------------------

	// UpdateSymbols replaces the list of tickers being produced
	UpdateSymbols(symbols []string) error

	// -----------------------------------------------------------------------------

	// Start begins producing ticks.
	// ctx: controls the lifecycle (cancellation stops the source)
	// outputChan: channel to push tick batches to
	// wg: WaitGroup to signal when the source has fully stopped
	Start(ctx context.Context, outputChan chan<- []models.MStockTick, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates the source (manual stop; cancelling the context passed
	// to Start is the usual path).
	Stop() error
}
