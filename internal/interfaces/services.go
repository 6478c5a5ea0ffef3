// Package interfaces defines service contracts for Drift
package interfaces

import (
	"context"

	"github.com/harborfin/drift/internal/models"
)

// PositionService supplies position snapshots for the rebalancing pipeline.
type PositionService interface {
	// GetSnapshot builds the current position view for a portfolio by merging
	// stored holdings with target allocations.
	GetSnapshot(ctx context.Context, portfolioName string) (*models.PositionSnapshot, error)
}

// RebalanceService runs the recommendation pipeline.
type RebalanceService interface {
	// Rebalance computes a recommendation plan for a portfolio.
	Rebalance(ctx context.Context, portfolioName string, options RebalanceOptions) (*models.RebalancePlan, error)
}

// RebalanceOptions are the per-request inputs.
type RebalanceOptions struct {
	InvestmentAmount float64 // extra cash to deploy, 0 = none
	MaxActions       int     // per side, 0 = configured default
	UseAdvisor       bool    // opt in to the advisory overlay
}

// RiskService computes diversification and risk statistics.
type RiskService interface {
	// ComputeRisk calculates HHI, volatility, beta, and Sharpe for a portfolio.
	ComputeRisk(ctx context.Context, portfolioName string) (*models.RiskStats, error)
}

// MarketService maintains the cached market snapshots used for timing.
type MarketService interface {
	// GetSnapshot returns the market snapshot for one ticker, fetching from
	// the provider when the cache is stale or missing.
	GetSnapshot(ctx context.Context, ticker string) (*models.MarketSnapshot, error)

	// RefreshTickers re-fetches snapshots for the given tickers.
	RefreshTickers(ctx context.Context, tickers []string) error
}

// PortfolioService manages stored portfolios and targets.
type PortfolioService interface {
	// UpsertPortfolio creates or replaces a portfolio's holdings.
	UpsertPortfolio(ctx context.Context, portfolio *models.Portfolio) (*models.Portfolio, error)

	// GetPortfolio retrieves a stored portfolio.
	GetPortfolio(ctx context.Context, name string) (*models.Portfolio, error)

	// ListPortfolios returns stored portfolio names.
	ListPortfolios(ctx context.Context) ([]string, error)

	// SetTargets replaces the target allocations for a portfolio.
	SetTargets(ctx context.Context, name string, targets map[string]float64) (*models.TargetAllocations, error)

	// GetTargets retrieves target allocations for a portfolio.
	GetTargets(ctx context.Context, name string) (*models.TargetAllocations, error)
}
