package app

import (
	"context"
	"time"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
)

// startPriceScheduler refreshes cached market snapshots on a fixed interval
// so rebalance requests find warm data.
func startPriceScheduler(ctx context.Context, portfolioService interfaces.PortfolioService, marketService interfaces.MarketService, portfolios []string, logger *common.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Price scheduler: stopped")
			return
		case <-ticker.C:
			refreshPrices(ctx, portfolioService, marketService, portfolios, logger)
		}
	}
}

func refreshPrices(ctx context.Context, portfolioService interfaces.PortfolioService, marketService interfaces.MarketService, portfolios []string, logger *common.Logger) {
	start := time.Now()

	seen := make(map[string]bool)
	var tickers []string
	for _, name := range portfolios {
		portfolio, err := portfolioService.GetPortfolio(ctx, name)
		if err != nil {
			logger.Warn().Err(err).Str("portfolio", name).Msg("Price refresh: portfolio not found in storage")
			continue
		}
		for _, h := range portfolio.Holdings {
			if h.Units > 0 && !seen[h.Ticker] {
				seen[h.Ticker] = true
				tickers = append(tickers, h.Ticker)
			}
		}
	}

	if len(tickers) == 0 {
		return
	}

	if err := marketService.RefreshTickers(ctx, tickers); err != nil {
		logger.Warn().Err(err).Msg("Price refresh: market refresh failed")
		return
	}

	logger.Info().
		Int("tickers", len(tickers)).
		Dur("elapsed", time.Since(start)).
		Msg("Price refresh: complete")
}
