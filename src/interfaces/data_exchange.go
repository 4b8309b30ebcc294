package interfaces

import "trade-sim/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger defines the surface the core uses to push state to clients.
// -----------------------------------------------------------------------------

type IDataExchanger interface {

	// Broadcast fans one refresh cycle out to every connected client.
	Broadcast(event models.MTickEvent)

	// -----------------------------------------------------------------------------

	// PushUser refreshes the dashboard connections of one user immediately
	// (called after a trade or watchlist mutation).
	PushUser(userID int64)

	// -----------------------------------------------------------------------------

	// Start the server
	Start() error

	// Stop the server gracefully
	Stop() error
}
