// Package interfaces defines service contracts for Drift
package interfaces

import (
	"context"

	"github.com/harborfin/drift/internal/models"
)

// StorageManager provides access to all storage areas.
type StorageManager interface {
	PortfolioStorage() PortfolioStorage
	TargetStorage() TargetStorage
	MarketStorage() MarketStorage
	RecommendationStorage() RecommendationStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}

// PortfolioStorage persists portfolios.
type PortfolioStorage interface {
	SavePortfolio(ctx context.Context, portfolio *models.Portfolio) error
	GetPortfolio(ctx context.Context, name string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]string, error)
	DeletePortfolio(ctx context.Context, name string) error
}

// TargetStorage persists target allocations.
type TargetStorage interface {
	SaveTargets(ctx context.Context, targets *models.TargetAllocations) error
	GetTargets(ctx context.Context, portfolioName string) (*models.TargetAllocations, error)
}

// MarketStorage caches market snapshots per ticker.
type MarketStorage interface {
	SaveSnapshot(ctx context.Context, snapshot *models.MarketSnapshot) error
	GetSnapshot(ctx context.Context, ticker string) (*models.MarketSnapshot, error)
}

// RecommendationStorage persists generated rebalance plans.
type RecommendationStorage interface {
	SavePlan(ctx context.Context, plan *models.RebalancePlan) error
	ListPlans(ctx context.Context, portfolioName string, limit int) ([]*models.RebalancePlan, error)
}

// KeyValueStorage holds system configuration values (API keys and the like).
type KeyValueStorage interface {
	GetSystemKV(ctx context.Context, key string) (string, error)
	SetSystemKV(ctx context.Context, key, value string) error
}
