// Package rebalance implements the portfolio rebalancing recommendation
// pipeline: candidate building, timing filtering, funding balancing, action
// scoring, the optional advisory overlay, and response assembly.
package rebalance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/models"
)

// ErrInvalidRequest marks client-side input errors, rejected before any
// computation begins.
var ErrInvalidRequest = errors.New("invalid rebalance request")

// Compile-time interface check
var _ interfaces.RebalanceService = (*Service)(nil)

// Service implements RebalanceService. Each call is a synchronous, read-only
// computation over injected collaborators; there is no shared mutable state,
// so concurrent requests need no coordination.
type Service struct {
	positions       interfaces.PositionService
	market          interfaces.MarketService
	risk            interfaces.RiskService
	advisor         interfaces.AdvisorClient
	recommendations interfaces.RecommendationStorage
	config          common.RebalanceConfig
	advisorTimeout  time.Duration
	logger          *common.Logger
}

// NewService creates a new rebalance service. The risk service, advisor
// client, and recommendation storage are optional and may be nil.
func NewService(
	positions interfaces.PositionService,
	market interfaces.MarketService,
	risk interfaces.RiskService,
	advisor interfaces.AdvisorClient,
	recommendations interfaces.RecommendationStorage,
	config common.RebalanceConfig,
	logger *common.Logger,
) *Service {
	return &Service{
		positions:       positions,
		market:          market,
		risk:            risk,
		advisor:         advisor,
		recommendations: recommendations,
		config:          config,
		advisorTimeout:  config.GetAdvisorTimeout(),
		logger:          logger,
	}
}

// Rebalance computes a recommendation plan for a portfolio.
func (s *Service) Rebalance(ctx context.Context, portfolioName string, options interfaces.RebalanceOptions) (*models.RebalancePlan, error) {
	if options.InvestmentAmount < 0 {
		return nil, fmt.Errorf("%w: investment amount must not be negative", ErrInvalidRequest)
	}
	if options.MaxActions < 0 {
		return nil, fmt.Errorf("%w: max actions must be positive", ErrInvalidRequest)
	}

	snapshot, err := s.positions.GetSnapshot(ctx, portfolioName)
	if err != nil {
		return nil, fmt.Errorf("failed to get position snapshot: %w", err)
	}

	constraints := s.buildConstraints(options, snapshot)

	// Empty portfolio or zero value: explicit neutral result, not an error.
	if len(snapshot.Positions) == 0 || snapshot.TotalValue <= 0 {
		s.logger.Info().Str("portfolio", portfolioName).Msg("Rebalance: empty portfolio, returning neutral plan")
		return s.assemblePlan(portfolioName, snapshot, constraints, nil, nil, advisorResult{}, nil), nil
	}

	// Candidate builder: allocation gaps as signed currency amounts.
	candidates := BuildCandidates(snapshot.Positions, snapshot.TotalValue, constraints.NoiseThreshold)
	rawSells, rawBuys := splitSides(candidates)

	// Timing filter over a bounded ticker subset.
	tickers := selectTimingTickers(candidates, constraints.MaxTimingTickers)
	samples := s.fetchTimingSamples(ctx, tickers)
	sellDecision, buyDecision := applyTimingFilter(rawSells, rawBuys, samples, constraints)

	if sellDecision.fallback {
		s.logger.Info().Str("portfolio", portfolioName).Msg("Rebalance: timing filter emptied sell side, using gap-only fallback")
	}
	if buyDecision.fallback {
		s.logger.Info().Str("portfolio", portfolioName).Msg("Rebalance: timing filter emptied buy side, using gap-only fallback")
	}

	positionIndex := indexPositions(snapshot.Positions)
	retainedSells := clampSellsToPosition(sellDecision.retained, positionIndex)

	// Funding balancer: sells are never reduced, buys scale to what's fundable.
	balancedSells, balancedBuys := BalanceFunding(retainedSells, buyDecision.retained, constraints.CashAvailable, constraints.NoiseThreshold)

	sellActions := ScoreActions(balancedSells, models.ActionSell, positionIndex, samples, constraints)
	buyActions := ScoreActions(balancedBuys, models.ActionBuy, positionIndex, samples, constraints)

	var riskStats *models.RiskStats
	if s.risk != nil {
		riskStats, err = s.risk.ComputeRisk(ctx, portfolioName)
		if err != nil {
			s.logger.Warn().Err(err).Str("portfolio", portfolioName).Msg("Risk statistics unavailable")
			riskStats = nil
		}
	}

	// Optional untrusted advisory overlay.
	var advisory advisorResult
	if options.UseAdvisor && s.config.AdvisorEnabled && s.advisor != nil && s.advisor.Available() {
		req := buildAdvisorRequest(snapshot, samples, balancedSells, balancedBuys, constraints, riskStats)
		advisory = s.runAdvisor(ctx, req, snapshot, samples, sumAmounts(balancedSells))
	}

	if advisory.applied {
		sellActions = advisory.sells
		buyActions = advisory.buys
	}

	plan := s.assemblePlan(portfolioName, snapshot, constraints, sellActions, buyActions, advisory, riskStats)

	if s.recommendations != nil {
		if err := s.recommendations.SavePlan(ctx, plan); err != nil {
			s.logger.Warn().Err(err).Str("portfolio", portfolioName).Msg("Failed to persist rebalance plan")
		}
	}

	s.logger.Info().
		Str("portfolio", portfolioName).
		Int("sells", len(plan.Sells)).
		Int("buys", len(plan.Buys)).
		Bool("advisor_applied", plan.AdvisorApplied).
		Float64("net_cash_flow", plan.NetCashFlow).
		Msg("Rebalance plan generated")

	return plan, nil
}

// buildConstraints merges configuration with per-request options.
func (s *Service) buildConstraints(options interfaces.RebalanceOptions, snapshot *models.PositionSnapshot) models.Constraints {
	maxActions := options.MaxActions
	if maxActions == 0 {
		maxActions = s.config.DefaultMaxActions
	}

	return models.Constraints{
		NoiseThreshold:          s.config.NoiseThreshold,
		MaxActions:              maxActions,
		SellPercentileThreshold: s.config.SellPercentileThreshold,
		BuyPercentileThreshold:  s.config.BuyPercentileThreshold,
		MaxTimingTickers:        s.config.MaxTimingTickers,
		CashAvailable:           snapshot.CashAvailable + options.InvestmentAmount,
	}
}

// clampSellsToPosition caps sell amounts at the position's market value.
// Gap-derived sells are within position value by construction; this guards
// the fallback path against recommending more than the position holds.
func clampSellsToPosition(sells []models.Candidate, positions map[string]models.Position) []models.Candidate {
	capped := make([]models.Candidate, 0, len(sells))
	for _, c := range sells {
		amount := math.Abs(c.Amount)
		if p, ok := positions[c.Ticker]; ok && p.MarketValue > 0 && amount > p.MarketValue {
			amount = p.MarketValue
		}
		capped = append(capped, models.Candidate{Ticker: c.Ticker, Amount: -amount})
	}
	return capped
}

// assemblePlan aggregates totals and produces the final recommendation set.
func (s *Service) assemblePlan(portfolioName string, snapshot *models.PositionSnapshot, constraints models.Constraints, sells, buys []models.Action, advisory advisorResult, riskStats *models.RiskStats) *models.RebalancePlan {
	if sells == nil {
		sells = []models.Action{}
	}
	if buys == nil {
		buys = []models.Action{}
	}

	totalSell := 0.0
	for _, a := range sells {
		totalSell += a.Amount
	}
	totalBuy := 0.0
	for _, a := range buys {
		totalBuy += a.Amount
	}

	return &models.RebalancePlan{
		ID:                      uuid.NewString(),
		PortfolioName:           portfolioName,
		TotalPortfolioValue:     round2(snapshot.TotalValue),
		CashAvailable:           round2(constraints.CashAvailable),
		TotalBuyAmount:          round2(totalBuy),
		TotalSellAmount:         round2(totalSell),
		NetCashFlow:             round2(totalBuy - totalSell),
		BuyPercentileThreshold:  constraints.BuyPercentileThreshold,
		SellPercentileThreshold: constraints.SellPercentileThreshold,
		GeneratedAt:             time.Now(),
		Sells:                   sells,
		Buys:                    buys,
		AdvisorApplied:          advisory.applied,
		AdvisorSummary:          advisory.summary,
		Risk:                    riskStats,
	}
}
