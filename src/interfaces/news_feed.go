package interfaces

import (
	"context"
	"sync"

	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------
// INewsFeed interface for components that produce news articles.
// -----------------------------------------------------------------------------

type INewsFeed interface {

	// Start begins producing article batches on newsChan.
	Start(ctx context.Context, newsChan chan<- []models.MNewsArticle, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop halts production.
	Stop()
}
