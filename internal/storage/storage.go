// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/rovshanmuradov/launchpad-engine/internal/storage/models"
)

// Storage is the durable journal behind the engine: launches, trades,
// vesting claims, and the consumed-request ledger that survives restarts.
type Storage interface {
	// Launches
	SaveLaunch(ctx context.Context, launch *models.Launch) error
	UpdateLaunchStatus(ctx context.Context, asset string, status string) error
	GetLaunch(ctx context.Context, asset string) (*models.Launch, error)

	// Trades
	SaveTrade(ctx context.Context, trade *models.Trade) error
	ListTrades(ctx context.Context, asset string, limit, offset int) ([]*models.Trade, error)

	// Replay protection
	ConsumeRequest(ctx context.Context, requestID string) error
	ListConsumedRequests(ctx context.Context) ([]string, error)

	// Vesting
	SaveVestingClaim(ctx context.Context, claim *models.VestingClaim) error

	// Migrations
	RunMigrations() error
}
