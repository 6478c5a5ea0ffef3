// Package risk computes portfolio diversification and risk statistics:
// HHI concentration, trailing volatility, beta, and Sharpe ratio.
package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/models"
)

const (
	tradingDaysPerYear = 252
	maxReturnDays      = 250
)

// Compile-time interface check
var _ interfaces.RiskService = (*Service)(nil)

// Service implements RiskService
type Service struct {
	storage interfaces.StorageManager
	market  interfaces.MarketService
	logger  *common.Logger
}

// NewService creates a new risk service
func NewService(storage interfaces.StorageManager, market interfaces.MarketService, logger *common.Logger) *Service {
	return &Service{storage: storage, market: market, logger: logger}
}

// ComputeRisk calculates HHI, volatility, beta, and Sharpe for a portfolio.
// Return-based statistics need close history for at least one holding; when
// history is missing the concentration figures still come back.
func (s *Service) ComputeRisk(ctx context.Context, portfolioName string) (*models.RiskStats, error) {
	portfolio, err := s.storage.PortfolioStorage().GetPortfolio(ctx, portfolioName)
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	stats := &models.RiskStats{
		PortfolioName: portfolioName,
		ComputedAt:    time.Now(),
	}

	weights := make(map[string]float64)
	totalValue := 0.0
	for _, h := range portfolio.Holdings {
		if h.Units <= 0 {
			continue
		}
		totalValue += h.MarketValue
	}
	if totalValue <= 0 {
		stats.ConcentrationRisk = "unknown"
		return stats, nil
	}

	for _, h := range portfolio.Holdings {
		if h.Units <= 0 {
			continue
		}
		weights[h.Ticker] = h.MarketValue / totalValue
	}

	stats.HHI = round2(computeHHI(weights))
	stats.ConcentrationRisk = classifyConcentration(stats.HHI)

	// Per-ticker daily return series from cached market history.
	returns := make(map[string][]float64, len(weights))
	for ticker := range weights {
		snapshot, err := s.market.GetSnapshot(ctx, ticker)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Risk: history unavailable")
			continue
		}
		series := dailyReturns(snapshot.Closes())
		if len(series) > 0 {
			returns[ticker] = series
		}
	}

	portfolioReturns, benchmarkReturns := alignedSeries(weights, returns)
	if len(portfolioReturns) < 2 {
		return stats, nil
	}

	dailyVol := stat.StdDev(portfolioReturns, nil)
	stats.Volatility = round2(dailyVol * math.Sqrt(tradingDaysPerYear) * 100)

	benchVar := stat.Variance(benchmarkReturns, nil)
	if benchVar > 0 {
		stats.Beta = round2(stat.Covariance(portfolioReturns, benchmarkReturns, nil) / benchVar)
	}

	if dailyVol > 0 {
		meanDaily := stat.Mean(portfolioReturns, nil)
		// Risk-free rate treated as zero
		stats.SharpeRatio = round2(meanDaily * tradingDaysPerYear / (dailyVol * math.Sqrt(tradingDaysPerYear)))
	}

	return stats, nil
}

// computeHHI returns the Herfindahl-Hirschman index on the 0-10000 scale.
func computeHHI(weights map[string]float64) float64 {
	hhi := 0.0
	for _, w := range weights {
		pct := w * 100
		hhi += pct * pct
	}
	return hhi
}

// classifyConcentration buckets HHI per the usual antitrust bands.
func classifyConcentration(hhi float64) string {
	switch {
	case hhi > 2500:
		return "high"
	case hhi > 1500:
		return "medium"
	default:
		return "low"
	}
}

// dailyReturns computes simple daily returns from a descending close series.
func dailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	n := len(closes) - 1
	if n > maxReturnDays {
		n = maxReturnDays
	}
	returns := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		prev := closes[i+1]
		if prev <= 0 {
			break
		}
		returns = append(returns, closes[i]/prev-1)
	}
	return returns
}

// alignedSeries builds the weighted portfolio return series and an
// equal-weighted benchmark over the overlapping window of all tickers that
// have history. The portfolio's own universe stands in as benchmark; there is
// no external index dependency.
func alignedSeries(weights map[string]float64, returns map[string][]float64) (portfolio, benchmark []float64) {
	if len(returns) == 0 {
		return nil, nil
	}

	minLen := math.MaxInt
	coveredWeight := 0.0
	for ticker, series := range returns {
		if len(series) < minLen {
			minLen = len(series)
		}
		coveredWeight += weights[ticker]
	}
	if minLen < 2 || coveredWeight <= 0 {
		return nil, nil
	}

	portfolio = make([]float64, minLen)
	benchmark = make([]float64, minLen)
	for ticker, series := range returns {
		w := weights[ticker] / coveredWeight
		for i := 0; i < minLen; i++ {
			portfolio[i] += w * series[i]
			benchmark[i] += series[i] / float64(len(returns))
		}
	}

	return portfolio, benchmark
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
