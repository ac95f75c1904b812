// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"callput-engine/internal/market"
	"callput-engine/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Holdings
	SaveHolding(ctx context.Context, h *models.Holding) error
	GetHoldings(ctx context.Context, filter HoldingFilter) ([]models.Holding, error)
	GetHolding(ctx context.Context, tokenID string) (*models.Holding, error)
	DeleteHolding(ctx context.Context, tokenID string) error

	// Settle prices
	SaveSettlePrice(ctx context.Context, expiry int64, asset uint16, price float64) error
	GetSettleTable(ctx context.Context) (*market.SettleTable, error)

	// Market snapshots
	SaveSnapshot(ctx context.Context, snap *market.Snapshot) (int64, error)
	LatestSnapshot(ctx context.Context, reg *market.Registry) (*market.Snapshot, error)
	PruneSnapshots(ctx context.Context, keep int) (int64, error)

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// HoldingFilter represents filters for querying holdings.
type HoldingFilter struct {
	Asset      *uint16
	Strategy   models.Strategy // NotSupported matches all
	ExpiryFrom int64
	ExpiryTo   int64 // zero means no upper bound
	Limit      int
}
