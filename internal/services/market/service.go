// Package market maintains cached market snapshots: current price plus the
// trailing-year daily close history used for timing percentiles.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/models"
)

// HistoryWindow is the trailing close-history window fetched per ticker.
const HistoryWindow = 365 * 24 * time.Hour

// Compile-time interface check
var _ interfaces.MarketService = (*Service)(nil)

// Service implements MarketService
type Service struct {
	storage interfaces.MarketStorage
	client  interfaces.MarketDataClient
	logger  *common.Logger
}

// NewService creates a new market service
func NewService(storage interfaces.MarketStorage, client interfaces.MarketDataClient, logger *common.Logger) *Service {
	return &Service{storage: storage, client: client, logger: logger}
}

// GetSnapshot returns the market snapshot for one ticker. A fresh cached
// snapshot is served directly; otherwise the provider is queried and the
// cache updated. When the provider fails but a stale snapshot exists, the
// stale snapshot is returned rather than failing the caller.
func (s *Service) GetSnapshot(ctx context.Context, ticker string) (*models.MarketSnapshot, error) {
	cached, cacheErr := s.storage.GetSnapshot(ctx, ticker)
	if cacheErr == nil && common.IsFresh(cached.QuotedAt, common.FreshnessQuote) && common.IsFresh(cached.LastUpdated, common.FreshnessHistory) {
		return cached, nil
	}

	snapshot, err := s.fetch(ctx, ticker)
	if err != nil {
		if cacheErr == nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Market fetch failed, serving stale snapshot")
			return cached, nil
		}
		return nil, err
	}

	if err := s.storage.SaveSnapshot(ctx, snapshot); err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache market snapshot")
	}

	return snapshot, nil
}

// RefreshTickers re-fetches snapshots for the given tickers. Per-ticker
// failures are logged and skipped.
func (s *Service) RefreshTickers(ctx context.Context, tickers []string) error {
	refreshed := 0
	for _, ticker := range tickers {
		snapshot, err := s.fetch(ctx, ticker)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Refresh failed")
			continue
		}
		if err := s.storage.SaveSnapshot(ctx, snapshot); err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache market snapshot")
			continue
		}
		refreshed++
	}

	s.logger.Debug().Int("requested", len(tickers)).Int("refreshed", refreshed).Msg("Market refresh complete")
	return nil
}

// fetch retrieves the current quote and one year of daily closes.
func (s *Service) fetch(ctx context.Context, ticker string) (*models.MarketSnapshot, error) {
	if s.client == nil {
		return nil, fmt.Errorf("no market data client configured")
	}

	quote, err := s.client.GetQuote(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", ticker, err)
	}

	to := time.Now()
	from := to.Add(-HistoryWindow)

	eod, err := s.client.GetEOD(ctx, ticker, interfaces.WithDateRange(from, to), interfaces.WithPeriod("d"))
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", ticker, err)
	}

	return &models.MarketSnapshot{
		Ticker:       ticker,
		CurrentPrice: quote.Price,
		QuotedAt:     quote.Timestamp,
		Bars:         eod.Data,
		HistoryFrom:  from,
		HistoryTo:    to,
		LastUpdated:  time.Now(),
	}, nil
}
