// Package portfolio manages stored portfolios and target allocations.
package portfolio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/models"
)

// Compile-time interface check
var _ interfaces.PortfolioService = (*Service)(nil)

// Service implements PortfolioService
type Service struct {
	storage interfaces.StorageManager
	market  interfaces.MarketService
	logger  *common.Logger
}

// NewService creates a new portfolio service. The market service is used to
// quote holdings imported without a current price; it may be nil.
func NewService(storage interfaces.StorageManager, market interfaces.MarketService, logger *common.Logger) *Service {
	return &Service{storage: storage, market: market, logger: logger}
}

// UpsertPortfolio creates or replaces a portfolio's holdings. Holdings
// imported without a current price are quoted on demand; market value is
// derived from units and price when absent.
func (s *Service) UpsertPortfolio(ctx context.Context, portfolio *models.Portfolio) (*models.Portfolio, error) {
	if portfolio.Name == "" {
		return nil, fmt.Errorf("portfolio name is required")
	}

	now := time.Now()
	existing, err := s.storage.PortfolioStorage().GetPortfolio(ctx, portfolio.Name)
	if err == nil {
		portfolio.CreatedAt = existing.CreatedAt
	} else {
		portfolio.CreatedAt = now
	}
	portfolio.UpdatedAt = now

	totalValue := 0.0
	for i := range portfolio.Holdings {
		h := &portfolio.Holdings[i]
		h.Ticker = strings.ToUpper(strings.TrimSpace(h.Ticker))
		if h.Ticker == "" {
			return nil, fmt.Errorf("holding %d: ticker is required", i)
		}

		if h.CurrentPrice <= 0 && s.market != nil {
			snapshot, err := s.market.GetSnapshot(ctx, h.Ticker)
			if err != nil {
				s.logger.Warn().Err(err).Str("ticker", h.Ticker).Msg("Import: quote unavailable")
			} else {
				h.CurrentPrice = snapshot.CurrentPrice
			}
		}

		if h.MarketValue <= 0 && h.CurrentPrice > 0 {
			h.MarketValue = h.Units * h.CurrentPrice
		}
		h.LastUpdated = now

		if h.Units > 0 {
			totalValue += h.MarketValue
		}
	}
	portfolio.TotalValue = totalValue

	if err := s.storage.PortfolioStorage().SavePortfolio(ctx, portfolio); err != nil {
		return nil, fmt.Errorf("failed to save portfolio: %w", err)
	}

	s.logger.Info().Str("portfolio", portfolio.Name).Int("holdings", len(portfolio.Holdings)).Msg("Portfolio saved")
	return portfolio, nil
}

// GetPortfolio retrieves a stored portfolio.
func (s *Service) GetPortfolio(ctx context.Context, name string) (*models.Portfolio, error) {
	return s.storage.PortfolioStorage().GetPortfolio(ctx, name)
}

// ListPortfolios returns stored portfolio names.
func (s *Service) ListPortfolios(ctx context.Context) ([]string, error) {
	return s.storage.PortfolioStorage().ListPortfolios(ctx)
}

// SetTargets replaces the target allocations for a portfolio. Weights must be
// positive and sum to at most 100.
func (s *Service) SetTargets(ctx context.Context, name string, targets map[string]float64) (*models.TargetAllocations, error) {
	if _, err := s.storage.PortfolioStorage().GetPortfolio(ctx, name); err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	normalized := make(map[string]float64, len(targets))
	total := 0.0
	for ticker, pct := range targets {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker == "" {
			return nil, fmt.Errorf("target ticker is required")
		}
		if pct <= 0 || pct > 100 {
			return nil, fmt.Errorf("target for %s must be in (0, 100], got %.2f", ticker, pct)
		}
		normalized[ticker] = pct
		total += pct
	}
	if total > 100.0001 {
		return nil, fmt.Errorf("targets sum to %.2f%%, must not exceed 100%%", total)
	}

	allocations := &models.TargetAllocations{
		PortfolioName: name,
		Targets:       normalized,
		UpdatedAt:     time.Now(),
	}

	if err := s.storage.TargetStorage().SaveTargets(ctx, allocations); err != nil {
		return nil, fmt.Errorf("failed to save targets: %w", err)
	}

	s.logger.Info().Str("portfolio", name).Int("targets", len(normalized)).Float64("total_pct", total).Msg("Targets saved")
	return allocations, nil
}

// GetTargets retrieves target allocations for a portfolio.
func (s *Service) GetTargets(ctx context.Context, name string) (*models.TargetAllocations, error) {
	return s.storage.TargetStorage().GetTargets(ctx, name)
}
