// Package positions builds position snapshots for the rebalancing pipeline
// by merging stored holdings with target allocations.
package positions

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/models"
)

// Compile-time interface check
var _ interfaces.PositionService = (*Service)(nil)

// Service implements PositionService
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewService creates a new position service
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

// GetSnapshot builds the current position view for a portfolio. Holdings with
// zero units are closed positions and excluded. Tickers with a target
// allocation but no holding appear as zero-value positions so they can become
// buy candidates. The snapshot is immutable for the duration of one
// rebalancing computation.
func (s *Service) GetSnapshot(ctx context.Context, portfolioName string) (*models.PositionSnapshot, error) {
	portfolio, err := s.storage.PortfolioStorage().GetPortfolio(ctx, portfolioName)
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	targets, err := s.storage.TargetStorage().GetTargets(ctx, portfolioName)
	if err != nil {
		// No targets set yet; positions carry only current allocations.
		targets = nil
	}

	open := make([]models.Holding, 0, len(portfolio.Holdings))
	totalValue := 0.0
	for _, h := range portfolio.Holdings {
		if h.Units <= 0 {
			continue
		}
		open = append(open, h)
		totalValue += h.MarketValue
	}

	positions := make([]models.Position, 0, len(open))
	held := make(map[string]bool, len(open))

	for _, h := range open {
		held[h.Ticker] = true

		p := models.Position{
			Ticker:       h.Ticker,
			Name:         h.Name,
			MarketValue:  h.MarketValue,
			Shares:       h.Units,
			CurrentPrice: h.CurrentPrice,
		}

		if totalValue > 0 {
			current := h.MarketValue / totalValue * 100
			p.CurrentAllocationPct = &current
		}

		if cost := h.Units * h.AvgCost; cost > 0 {
			p.UnrealizedPnLPct = (h.MarketValue - cost) / cost * 100
		}

		if targets != nil {
			if target, ok := targets.Targets[h.Ticker]; ok {
				t := target
				p.TargetAllocationPct = &t
			}
		}

		positions = append(positions, p)
	}

	// Target-only tickers: not held yet, pure buy candidates.
	if targets != nil {
		extra := make([]string, 0)
		for ticker := range targets.Targets {
			if !held[ticker] {
				extra = append(extra, ticker)
			}
		}
		sort.Strings(extra)

		for _, ticker := range extra {
			current := 0.0
			target := targets.Targets[ticker]
			positions = append(positions, models.Position{
				Ticker:               ticker,
				CurrentAllocationPct: &current,
				TargetAllocationPct:  &target,
			})
		}
	}

	return &models.PositionSnapshot{
		PortfolioName: portfolioName,
		Positions:     positions,
		TotalValue:    totalValue,
		CashAvailable: portfolio.CashBalance,
		TakenAt:       time.Now(),
	}, nil
}
